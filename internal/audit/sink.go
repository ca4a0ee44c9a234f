package audit

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/assetflow/internal/auth/domain"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
)

// StoreSink writes batches to the activity log in a single transaction.
type StoreSink struct {
	Store store.Store
}

func (s StoreSink) Write(ctx context.Context, events []domain.AuditEvent) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.AuditLogs().InsertBatch(ctx, events)
	})
	if err != nil {
		return fmt.Errorf("audit: write batch: %w", err)
	}
	return nil
}
