package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
)

type auditLogsRepo struct {
	db dbtx
}

// InsertBatch is expected to run inside a transaction; the audit sink
// wraps it in WithTx so a failing row discards the whole batch.
func (r *auditLogsRepo) InsertBatch(ctx context.Context, events []domain.AuditEvent) error {
	for _, e := range events {
		details, err := encodeDetails(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO activity_logs (id, actor_id, action, target_table, target_id, log_level, details, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, mapStringNull(e.ActorID), string(e.Action), e.TargetTable, e.TargetID,
			string(e.Level), details, toMillis(e.CreatedAt)); err != nil {
			return fmt.Errorf("insert audit event %s: %w", e.ID, err)
		}
	}
	return nil
}

func (r *auditLogsRepo) ListByActor(ctx context.Context, actorID string, limit int) ([]domain.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_id, action, target_table, target_id, log_level, details, created_at
		FROM activity_logs
		WHERE actor_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e         domain.AuditEvent
			actor     sql.NullString
			action    string
			level     string
			details   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &actor, &action, &e.TargetTable, &e.TargetID, &level, &details, &createdAt); err != nil {
			return nil, err
		}
		e.ActorID = mapNullString(actor)
		e.Action = domain.AuditAction(action)
		e.Level = domain.AuditLevel(level)
		e.CreatedAt = fromMillis(createdAt)
		if e.Details, err = decodeDetails(details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
