package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"orgsetup/internal/executor"
	"orgsetup/internal/store"
)

// RunTracker reports which runs the executor is still working on.
type RunTracker interface {
	IsRunning(runID string) bool
}

// StatusSyncService fixes history rows left "running" by a run that is no
// longer in the executor, for instance after a crash or restart.
type StatusSyncService struct {
	Store    store.RunStore
	Tracker  RunTracker
	Interval time.Duration
	// Grace skips rows younger than this; the observer may not have written
	// the final state yet.
	Grace time.Duration
	// Timeout fails any row running longer than this, tracked or not.
	Timeout time.Duration
}

func NewStatusSyncService(s store.RunStore, tracker RunTracker, timeout time.Duration) *StatusSyncService {
	return &StatusSyncService{
		Store:    s,
		Tracker:  tracker,
		Interval: 30 * time.Second,
		Grace:    30 * time.Second,
		Timeout:  timeout,
	}
}

// Start runs the sync loop until ctx is done.
func (s *StatusSyncService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	log.Info().Dur("interval", s.Interval).Dur("timeout", s.Timeout).Msg("✅ Status sync service started")

	s.Sync(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("🛑 Status sync service stopped")
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}

// Sync makes one pass and returns how many rows it fixed.
func (s *StatusSyncService) Sync(ctx context.Context) int {
	fixed := s.failOrphans(ctx)

	if s.Timeout > 0 {
		n, err := s.Store.MarkStale(ctx, time.Now().Add(-s.Timeout), "run timed out after "+s.Timeout.String())
		if err != nil {
			log.Error().Err(err).Msg("❌ Failed to time out long running runs")
		} else if n > 0 {
			log.Warn().Int64("count", n).Msg("⏱️ Timed out long running runs")
			fixed += int(n)
		}
	}
	if fixed > 0 {
		log.Info().Int("fixed", fixed).Msg("🔧 Status sync fixed stuck runs")
	}
	return fixed
}

func (s *StatusSyncService) failOrphans(ctx context.Context) int {
	runs, _, err := s.Store.List(ctx, store.ListOptions{Status: string(executor.StatusRunning), PageSize: 100})
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to query running runs")
		return 0
	}

	fixed := 0
	for _, listed := range runs {
		if s.Tracker.IsRunning(listed.RunID) || time.Since(listed.StartTime) < s.Grace {
			continue
		}
		// list rows come without the JSON columns
		run, err := s.Store.Get(ctx, listed.RunID)
		if err != nil {
			log.Error().Err(err).Str("run_id", listed.RunID).Msg("❌ Failed to load stuck run")
			continue
		}
		now := time.Now()
		run.Status = string(executor.StatusFailed)
		run.ErrorMessage = "run is no longer tracked by the executor"
		run.EndTime = &now
		run.Duration = int(now.Sub(run.StartTime).Milliseconds())
		if err := s.Store.Save(ctx, run); err != nil {
			log.Error().Err(err).Str("run_id", run.RunID).Msg("❌ Failed to fix stuck run")
			continue
		}
		log.Warn().Str("run_id", run.RunID).Msg("🔧 Marked orphaned run as failed")
		fixed++
	}
	return fixed
}
