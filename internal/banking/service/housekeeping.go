package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hoope/openbanking/internal/banking/store"
)

// ConsentRetention is how long terminal consents are kept for audit
// before housekeeping removes them.
const ConsentRetention = 30 * 24 * time.Hour

// HousekeepingService periodically expires lapsed consents and purges
// terminal ones so the consents table does not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut
// it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the worker, blocking until any in-progress sweep
// finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup
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

// sweep performs one housekeeping pass. Each step is independent;
// a failure in one does not stop the others.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Store.Consents().ExpireConsentsBefore(ctx, now); err != nil {
		s.Logger.Error("failed to expire lapsed consents", "error", err)
	}

	if err := s.Store.Consents().DeleteConsentsBefore(ctx, now.Add(-ConsentRetention)); err != nil {
		s.Logger.Error("failed to purge terminal consents", "error", err)
	}

	// A token record with no refresh token and a lapsed access token can
	// never become valid again; drop it so readiness reflects reality.
	rec, err := s.Store.Tokens().GetCurrent(ctx)
	switch {
	case err == nil:
		if rec.RefreshToken == "" && !rec.Valid(now) {
			if err := s.Store.Tokens().DeleteCurrent(ctx); err != nil {
				s.Logger.Error("failed to drop dead token record", "error", err)
			} else {
				s.Logger.Info("dropped dead token record")
			}
		}
	case errors.Is(err, store.ErrNotFound):
		// nothing stored
	default:
		s.Logger.Error("failed to inspect token record", "error", err)
	}

	s.Logger.Debug("housekeeping sweep completed")
}
