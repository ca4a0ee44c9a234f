package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/pkg/idx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"
)

var (
	ErrBootstrapAlready             = errors.New("system already bootstrapped")
	ErrBootstrapMissingRole         = errors.New("bootstrap admin role is not defined")
	ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin account")
)

// unrestrictedScope lifts the own-department default, since the first
// administrator belongs to no department.
var unrestrictedScope = json.RawMessage(`{"departments":["*"],"geographic":["*"],"asset_categories":["*"]}`)

// BootstrapData describes the first administrator and the roles seeded with
// it.
type BootstrapData struct {
	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminRoleID    string
	Roles          []domain.Role
}

// BootstrapService seeds an empty deployment so somebody can log in.
type BootstrapService struct {
	Store  store.Store
	Hasher PasswordHasher
	Now    func() time.Time
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context, email string) (bool, error) {
	_, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Bootstrap creates any missing roles and an active admin account holding
// AdminRoleID. Roles that already exist are left alone.
func (s *BootstrapService) Bootstrap(ctx context.Context, req BootstrapData) (string, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	if done, err := s.IsBootstrapped(ctx, req.AdminEmail); err != nil {
		return "", err
	} else if done {
		return "", ErrBootstrapAlready
	}

	found := false
	for _, r := range req.Roles {
		if r.ID == req.AdminRoleID {
			found = true
		}
	}
	if !found {
		if _, err := s.Store.Roles().GetRoleByID(ctx, req.AdminRoleID); err != nil {
			return "", ErrBootstrapMissingRole
		}
	}

	hash, err := s.Hasher.Hash(req.AdminPassword)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return "", ErrBootstrapFailedToCreateAdmin
	}

	adminID := idx.NewAt(now).String()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, r := range req.Roles {
			err := tx.Roles().CreateRole(ctx, r)
			if errors.Is(err, store.ErrAlreadyExists) {
				continue
			}
			if err != nil {
				return fmt.Errorf("create role %s: %w", r.ID, err)
			}
		}

		err := tx.Accounts().CreateAccount(ctx, domain.Account{
			ID:                 adminID,
			FirstName:          req.AdminFirstName,
			Email:              req.AdminEmail,
			PasswordHash:       hash,
			Status:             domain.StatusActive,
			LastLogin:          &now,
			LastPasswordChange: &now,
			RoleID:             req.AdminRoleID,
			PositionTitle:      "administrator",
			AccessScope:        unrestrictedScope,
			CreatedAt:          now,
		})
		if err != nil {
			l.Error("failed to create admin account", slog.Any("error", err))
			return ErrBootstrapFailedToCreateAdmin
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	l.Info("bootstrapped admin account", slog.String("account_id", adminID))
	return adminID, nil
}
