package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/service"
	"github.com/aussiebroadwan/assetflow/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestWhitelistIP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.seedAccount("wanjiru@county.go.ke")
	const homeIP = "41.90.64.12"

	first, err := f.svc.Login(ctx, loginRequest(a.Email, testPassword, "fp-phone"))
	require.NoError(t, err)

	t.Run("wrong code", func(t *testing.T) {
		err := f.svc.WhitelistIP(ctx, a.ID, "000000", homeIP)
		require.ErrorIs(t, err, service.ErrInvalidCode)
	})

	t.Run("adds a manual entry and consumes the code", func(t *testing.T) {
		require.NoError(t, f.svc.WhitelistIP(ctx, a.ID, testCode, homeIP))

		listed, err := f.store.IPWhitelist().IsWhitelisted(ctx, a.ID, homeIP)
		require.NoError(t, err)
		require.True(t, listed)

		ev, ok := f.audit.find(domain.ActionCreate)
		require.True(t, ok)
		require.Equal(t, "manual", ev.Details["type"])

		_, err = f.svc.VerifyMFA(ctx, first.Challenge.TempSessionToken, testCode, officeIP)
		require.ErrorIs(t, err, service.ErrChallengeNotFound)
	})

	t.Run("already whitelisted leaves the code unused", func(t *testing.T) {
		second, err := f.svc.Login(ctx, loginRequest(a.Email, testPassword, "fp-tablet"))
		require.NoError(t, err)

		err = f.svc.WhitelistIP(ctx, a.ID, testCode, homeIP)
		require.ErrorIs(t, err, service.ErrAlreadyWhitelisted)

		_, err = f.svc.VerifyMFA(ctx, second.Challenge.TempSessionToken, testCode, officeIP)
		require.NoError(t, err)
	})

	t.Run("expired code", func(t *testing.T) {
		_, err := f.svc.Login(ctx, loginRequest(a.Email, testPassword, "fp-desktop"))
		require.NoError(t, err)
		f.advance(21 * time.Minute)

		err = f.svc.WhitelistIP(ctx, a.ID, testCode, "41.90.64.13")
		require.ErrorIs(t, err, service.ErrChallengeExpired)
	})
}

func TestDevices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.seedAccount("wanjiru@county.go.ke")
	other := f.seedAccount("kamau@county.go.ke")
	f.trustDevice(a, "fp-laptop")
	f.trustDevice(other, "fp-laptop")

	devices, err := f.svc.Devices(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	otherDevices, err := f.svc.Devices(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, otherDevices, 1)

	t.Run("cannot forget another account's device", func(t *testing.T) {
		err := f.svc.ForgetDevice(ctx, a.ID, otherDevices[0].ID, officeIP)
		require.ErrorIs(t, err, service.ErrDeviceNotFound)
	})

	t.Run("forget", func(t *testing.T) {
		require.NoError(t, f.svc.ForgetDevice(ctx, a.ID, devices[0].ID, officeIP))

		left, err := f.svc.Devices(ctx, a.ID)
		require.NoError(t, err)
		require.Empty(t, left)

		ev, ok := f.audit.find(domain.ActionDelete)
		require.True(t, ok)
		require.Equal(t, "device_fingerprints", ev.TargetTable)
		require.Equal(t, devices[0].ID, ev.TargetID)

		err = f.svc.ForgetDevice(ctx, a.ID, devices[0].ID, officeIP)
		require.ErrorIs(t, err, service.ErrDeviceNotFound)
	})

	t.Run("forgotten device is new again", func(t *testing.T) {
		out, err := f.svc.Login(ctx, loginRequest(a.Email, testPassword, "fp-laptop"))
		require.NoError(t, err)
		require.NotNil(t, out.Challenge)
		require.Equal(t, []string{service.ReasonNewDevice}, out.Challenge.Reasons)
	})
}

func TestLoginHistoryLimits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.seedAccount("wanjiru@county.go.ke")

	for i := 0; i < service.MaxHistoryLimit+5; i++ {
		at := f.now.Add(time.Duration(i) * time.Second)
		require.NoError(t, f.store.LoginAttempts().RecordAttempt(ctx, domain.LoginAttempt{
			ID:        idx.NewAt(at).String(),
			AccountID: a.ID,
			Email:     a.Email,
			IPAddress: officeIP,
			Success:   true,
			Timestamp: at,
		}))
	}

	for _, tc := range []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, service.DefaultHistoryLimit},
		{"explicit", 5, 5},
		{"clamped", 1000, service.MaxHistoryLimit},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.LoginHistory(ctx, a.ID, tc.limit)
			require.NoError(t, err)
			require.Len(t, got, tc.want)
			require.True(t, got[0].Timestamp.After(got[len(got)-1].Timestamp))
		})
	}
}

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.seedAccount("wanjiru@county.go.ke")

	challenge := func(expires time.Time, used bool) domain.MFAChallenge {
		c := domain.MFAChallenge{
			ID:               idx.New().String(),
			AccountID:        a.ID,
			Code:             testCode,
			TempSessionToken: idx.New().String(),
			ExpiresAt:        expires,
			CreatedAt:        f.now,
		}
		require.NoError(t, f.store.MFAChallenges().CreateChallenge(ctx, c))
		if used {
			require.NoError(t, f.store.MFAChallenges().ConsumeChallenge(ctx, c.ID))
		}
		return c
	}
	challenge(f.now.Add(-2*time.Hour), false)
	fresh := challenge(f.now.Add(10*time.Minute), false)
	redeemed := challenge(f.now.Add(10*time.Minute), true)

	hk := service.NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, time.Hour)
	hk.Now = func() time.Time { return f.now }

	require.EqualValues(t, 1, hk.Cleanup(ctx))

	got, err := f.store.MFAChallenges().GetUnusedChallengeByToken(ctx, fresh.TempSessionToken)
	require.NoError(t, err)
	require.Equal(t, fresh.ID, got.ID)

	// A redeemed challenge outlives its use so a pending password change can
	// still see that the code was verified.
	got, err = f.store.MFAChallenges().GetChallengeByToken(ctx, redeemed.TempSessionToken)
	require.NoError(t, err)
	require.True(t, got.Verified)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := &service.BootstrapService{Store: f.store, Hasher: f.hasher, Now: func() time.Time { return f.now }}

	data := service.BootstrapData{
		AdminEmail:     "admin@county.go.ke",
		AdminPassword:  "bootstrap password",
		AdminFirstName: "Admin",
		AdminRoleID:    "role_superadmin",
		Roles: []domain.Role{
			{ID: "role_superadmin", Name: "Super Admin", Permissions: []string{domain.WildcardPermission}},
			{ID: "role_officer", Name: "Procurement Officer"},
		},
	}

	t.Run("missing admin role", func(t *testing.T) {
		bad := data
		bad.AdminRoleID = "role_nobody"
		_, err := b.Bootstrap(ctx, bad)
		require.ErrorIs(t, err, service.ErrBootstrapMissingRole)
	})

	t.Run("creates an admin that can log in", func(t *testing.T) {
		id, err := b.Bootstrap(ctx, data)
		require.NoError(t, err)

		got := f.account(id)
		require.Equal(t, domain.StatusActive, got.Status)
		require.Equal(t, "role_superadmin", got.RoleID)
		require.JSONEq(t, `{"departments":["*"],"geographic":["*"],"asset_categories":["*"]}`, string(got.AccessScope))

		role, err := f.store.Roles().GetRoleByID(ctx, "role_superadmin")
		require.NoError(t, err)
		require.Equal(t, []string{domain.WildcardPermission}, role.Permissions)

		require.NoError(t, f.hasher.Verify(data.AdminPassword, got.PasswordHash))
	})

	t.Run("second run is refused", func(t *testing.T) {
		_, err := b.Bootstrap(ctx, data)
		require.ErrorIs(t, err, service.ErrBootstrapAlready)
	})
}
