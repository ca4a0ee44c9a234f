package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so repos work unchanged
// inside and outside transactions.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens the database. File databases should carry
// `_txlock=immediate` so write transactions take the lock up front and
// concurrent failure bookkeeping for one account is serialised.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Every pooled connection to :memory: would see its own empty database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewStoreFromDB(db, dsn), nil
}

// NewStoreFromDB wraps an already opened handle.
func NewStoreFromDB(db *sql.DB, dsn string) *Store {
	return &Store{db: db, dsn: dsn}
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Accounts() store.Accounts               { return &accountsRepo{db: s.db} }
func (s *Store) Devices() store.Devices                 { return &devicesRepo{db: s.db} }
func (s *Store) IPWhitelist() store.IPWhitelist         { return &ipWhitelistRepo{db: s.db} }
func (s *Store) LoginAttempts() store.LoginAttempts     { return &loginAttemptsRepo{db: s.db} }
func (s *Store) MFAChallenges() store.MFAChallenges     { return &mfaChallengesRepo{db: s.db} }
func (s *Store) TempDisableLogs() store.TempDisableLogs { return &tempDisableLogsRepo{db: s.db} }
func (s *Store) Roles() store.Roles                     { return &rolesRepo{db: s.db} }
func (s *Store) Policies() store.Policies               { return &policiesRepo{db: s.db} }
func (s *Store) Departments() store.Departments         { return &departmentsRepo{db: s.db} }
func (s *Store) AuditLogs() store.AuditLogs             { return &auditLogsRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConstraint turns unique/primary key violations into ErrAlreadyExists.
func mapConstraint(err error) error {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrAlreadyExists
		}
	}
	return err
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func mapNullMillisPtr(n sql.NullInt64) *time.Time {
	if n.Valid {
		val := fromMillis(n.Int64)
		return &val
	}
	return nil
}

func mapOptionalMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeDetails(v map[string]any) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeDetails(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
