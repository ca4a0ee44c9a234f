package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/risk"
	"github.com/aussiebroadwan/assetflow/internal/auth/service"
	"github.com/aussiebroadwan/assetflow/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/assetflow/internal/notify"
	"github.com/aussiebroadwan/assetflow/pkg/cryptox"
	"github.com/aussiebroadwan/assetflow/pkg/idx"
	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "correct horse battery"
	testCode     = "482913"
	officeIP     = "196.201.214.10"
	fpSecret     = "fingerprint-secret"
)

// 10:00 in the organisation's UTC+3 working day.
var baseTime = time.Date(2026, time.March, 10, 7, 0, 0, 0, time.UTC)

type auditLog struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *auditLog) Enqueue(e domain.AuditEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return true
}

func (a *auditLog) actions() []domain.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

func (a *auditLog) find(action domain.AuditAction) (domain.AuditEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e.Action == action {
			return e, true
		}
	}
	return domain.AuditEvent{}, false
}

func (a *auditLog) last(action domain.AuditAction) (domain.AuditEvent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].Action == action {
			return a.events[i], true
		}
	}
	return domain.AuditEvent{}, false
}

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Notify(m notify.Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, m)
	return true
}

func (o *outbox) kinds() []notify.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]notify.Kind, 0, len(o.msgs))
	for _, m := range o.msgs {
		out = append(out, m.Kind)
	}
	return out
}

func (o *outbox) last(kind notify.Kind) (notify.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].Kind == kind {
			return o.msgs[i], true
		}
	}
	return notify.Message{}, false
}

type fixedCode string

func (c fixedCode) Generate() (string, error) { return string(c), nil }

type staticReputation struct {
	assessment risk.Assessment
}

func (r *staticReputation) Assess(context.Context, string) risk.Assessment { return r.assessment }

type fixture struct {
	t      *testing.T
	svc    *service.LoginService
	store  *sqlite.Store
	audit  *auditLog
	mail   *outbox
	rep    *staticReputation
	now    time.Time
	dept   domain.Department
	hasher *cryptox.Argon2Hasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	km, err := jwtx.NewEphemeralKeyManager("https://auth.test", 1)
	require.NoError(t, err)

	require.NoError(t, s.Roles().CreateRole(ctx, domain.Role{
		ID:          "role_officer",
		Name:        "Procurement Officer",
		Permissions: []string{"asset.view"},
	}))

	f := &fixture{
		t:      t,
		store:  s,
		audit:  &auditLog{},
		mail:   &outbox{},
		rep:    &staticReputation{},
		now:    baseTime,
		hasher: cryptox.NewArgon2Hasher("pepper"),
	}

	policy := service.DefaultPolicy()
	policy.FingerprintSecret = fpSecret

	f.svc = &service.LoginService{
		Store:  s,
		Hasher: f.hasher,
		Tokens: &service.TokenService{
			KeyManager:     km,
			Issuer:         "https://auth.test",
			AccessTTL:      15 * time.Minute,
			RefreshTTL:     7 * 24 * time.Hour,
			TempSessionTTL: 30 * time.Minute,
			UnlockTTL:      24 * time.Hour,
		},
		Reputation: f.rep,
		Roles:      service.NewRoleLabeler(map[string]string{"role_officer": "officer"}),
		Codes:      fixedCode(testCode),
		Auditor:    f.audit,
		Notifier:   f.mail,
		Templates:  notify.Templates{Product: "Assets", UnlockURL: "https://assets.test/unlock"},
		Policy:     policy,
		Now:        func() time.Time { return f.now },
	}
	km.Verifier = jwtx.NewVerifierEdDSA(km.KeySet, "https://auth.test", nil).WithClock(func() time.Time { return f.now })

	head := f.seedAccount("head@county.go.ke", func(a *domain.Account) { a.FirstName = "Amina" })
	deputy := f.seedAccount("deputy@county.go.ke", func(a *domain.Account) { a.FirstName = "Otieno" })
	f.dept = domain.Department{ID: "dept_finance", Name: "Finance", HeadID: head.ID, DeputyHeadID: deputy.ID}
	require.NoError(t, s.Departments().CreateDepartment(ctx, f.dept))

	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

// seedAccount creates an active officer who logged in yesterday and changed
// their password last week.
func (f *fixture) seedAccount(email string, opts ...func(*domain.Account)) domain.Account {
	f.t.Helper()
	hash, err := f.hasher.Hash(testPassword)
	require.NoError(f.t, err)

	lastLogin := f.now.Add(-24 * time.Hour)
	changed := f.now.Add(-7 * 24 * time.Hour)
	a := domain.Account{
		ID:                 idx.New().String(),
		FirstName:          "Wanjiru",
		Email:              email,
		PasswordHash:       hash,
		Status:             domain.StatusActive,
		LastLogin:          &lastLogin,
		LastPasswordChange: &changed,
		RoleID:             "role_officer",
		PositionTitle:      "Procurement Officer",
		CreatedAt:          f.now.Add(-30 * 24 * time.Hour),
	}
	for _, o := range opts {
		o(&a)
	}
	require.NoError(f.t, f.store.Accounts().CreateAccount(context.Background(), a))
	return a
}

func (f *fixture) trustDevice(a domain.Account, fingerprint string) {
	f.t.Helper()
	require.NoError(f.t, f.store.Devices().CreateDevice(context.Background(), domain.Device{
		ID:              idx.New().String(),
		AccountID:       a.ID,
		FingerprintHash: risk.HashFingerprint(fingerprint, fpSecret),
		FirstSeen:       f.now.Add(-48 * time.Hour),
		LastSeen:        f.now.Add(-24 * time.Hour),
		Trusted:         true,
	}))
}

func (f *fixture) account(id string) domain.Account {
	f.t.Helper()
	a, err := f.store.Accounts().GetAccountByID(context.Background(), id)
	require.NoError(f.t, err)
	return a
}

func loginRequest(email, password, fingerprint string) service.LoginRequest {
	return service.LoginRequest{
		Email:       email,
		Password:    password,
		Fingerprint: fingerprint,
		Timezone:    "EAT",
		Language:    "en",
		IPAddress:   officeIP,
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	}
}
