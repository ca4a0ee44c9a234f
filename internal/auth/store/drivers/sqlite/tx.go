package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/assetflow/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // caller commits/rolls back; the outer DB stays open

// Ping is a no-op for transactions. The connection is already established
// when the transaction is created.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Accounts() store.Accounts               { return &accountsRepo{db: t.tx} }
func (t *txStore) Devices() store.Devices                 { return &devicesRepo{db: t.tx} }
func (t *txStore) IPWhitelist() store.IPWhitelist         { return &ipWhitelistRepo{db: t.tx} }
func (t *txStore) LoginAttempts() store.LoginAttempts     { return &loginAttemptsRepo{db: t.tx} }
func (t *txStore) MFAChallenges() store.MFAChallenges     { return &mfaChallengesRepo{db: t.tx} }
func (t *txStore) TempDisableLogs() store.TempDisableLogs { return &tempDisableLogsRepo{db: t.tx} }
func (t *txStore) Roles() store.Roles                     { return &rolesRepo{db: t.tx} }
func (t *txStore) Policies() store.Policies               { return &policiesRepo{db: t.tx} }
func (t *txStore) Departments() store.Departments         { return &departmentsRepo{db: t.tx} }
func (t *txStore) AuditLogs() store.AuditLogs             { return &auditLogsRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations are applied before any tx is opened
