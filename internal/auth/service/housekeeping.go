package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/store"
)

// HousekeepingService periodically prunes MFA challenges that can no longer
// be redeemed.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	// Retention keeps expired challenges around for a while so a late
	// verification still reports "expired" rather than "invalid session".
	Retention time.Duration

	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:     store,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the cleanup loop in the background until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes challenges that expired more than Retention ago and
// returns how many were removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	n, err := s.Store.MFAChallenges().DeleteExpiredChallenges(ctx, now.Add(-s.Retention))
	if err != nil {
		s.Logger.Error("failed to delete expired mfa challenges", "error", err)
		return 0
	}
	s.Logger.Debug("housekeeping cleanup completed", "mfa_challenges_deleted", n)
	return n
}
