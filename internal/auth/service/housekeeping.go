package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/northquay/tokend/internal/auth/store"
)

// HousekeepingService periodically deletes refresh token records whose
// window has long closed, preventing unbounded table growth. Validity is
// enforced at validation time; this is purely hygiene.
type HousekeepingService struct {
	Store      store.Store
	Logger     *slog.Logger
	Interval   time.Duration
	RefreshTTL time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. If interval is 0
// or negative, defaults to 1 hour.
func NewHousekeepingService(s store.Store, logger *slog.Logger, interval, refreshTTL time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:      s,
		Logger:     logger,
		Interval:   interval,
		RefreshTTL: refreshTTL,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut it
// down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-s.RefreshTTL)

	deleted, err := s.Store.RefreshTokens().DeleteRefreshTokensBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to delete stale refresh tokens", "error", err)
		return
	}

	s.Logger.Info("housekeeping sweep completed", "deleted", deleted, "cutoff", cutoff)
}
