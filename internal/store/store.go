// Package store keeps the run history serve mode lists. Nothing in a run
// reads it back: every reconciliation looks at the console afresh.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"orgsetup/internal/executor"
	"orgsetup/internal/models"
)

var ErrNotFound = errors.New("run not found")

type ListOptions struct {
	Page     int
	PageSize int
	Status   string
	Kind     string
}

func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 || o.PageSize > 100 {
		o.PageSize = 20
	}
	return o
}

// RunStore persists models.Run rows keyed by RunID.
type RunStore interface {
	Save(ctx context.Context, run *models.Run) error
	Get(ctx context.Context, runID string) (*models.Run, error)
	List(ctx context.Context, opts ListOptions) ([]models.Run, int64, error)
	// MarkStale fails every run still running that started before cutoff.
	MarkStale(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// FromResult converts a run result into its history row.
func FromResult(r *executor.Result) (*models.Run, error) {
	run := &models.Run{
		RunID:        r.RunID,
		Kind:         string(r.Kind),
		Trigger:      r.Trigger,
		Status:       string(r.Status),
		StartTime:    r.Started,
		CreatedCount: r.Created,
		UpdatedCount: r.Updated,
		SkippedCount: r.Skipped,
		FailedCount:  r.Failed,
		AbortedCount: r.Aborted,
		ErrorMessage: r.Error,
	}
	if !r.Finished.IsZero() {
		end := r.Finished
		run.EndTime = &end
		run.Duration = int(r.Finished.Sub(r.Started).Milliseconds())
	}
	if err := models.SetJSON(&run.Records, r.Records); err != nil {
		return nil, err
	}
	if err := models.SetJSON(&run.ExecutionLogs, r.Events); err != nil {
		return nil, err
	}
	if err := models.SetJSON(&run.Screenshots, r.Screenshots); err != nil {
		return nil, err
	}
	return run, nil
}

// Observer writes every run start and finish to a RunStore. Write failures
// are logged; history never fails a run.
type Observer struct {
	Store RunStore
}

func (o Observer) RunStarted(r *executor.Result) { o.save(r) }

func (o Observer) RunFinished(r *executor.Result) { o.save(r) }

func (o Observer) save(r *executor.Result) {
	run, err := FromResult(r)
	if err == nil {
		err = o.Store.Save(context.Background(), run)
	}
	if err != nil {
		log.Warn().Err(err).Str("run_id", r.RunID).Msg("⚠️ Failed to save run history")
	}
}

// Memory is a RunStore for deployments without a database.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]models.Run
	next uint
}

func NewMemory() *Memory {
	return &Memory{runs: make(map[string]models.Run)}
}

func (m *Memory) Save(_ context.Context, run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.runs[run.RunID]; ok {
		run.ID = existing.ID
		run.CreatedAt = existing.CreatedAt
	} else {
		m.next++
		run.ID = m.next
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	m.runs[run.RunID] = *run
	return nil
}

func (m *Memory) Get(_ context.Context, runID string) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return &run, nil
}

func (m *Memory) List(_ context.Context, opts ListOptions) ([]models.Run, int64, error) {
	opts = opts.normalize()
	m.mu.RLock()
	var matched []models.Run
	for _, run := range m.runs {
		if opts.Status != "" && run.Status != opts.Status {
			continue
		}
		if opts.Kind != "" && run.Kind != opts.Kind {
			continue
		}
		matched = append(matched, run)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := int64(len(matched))
	start := (opts.Page - 1) * opts.PageSize
	if start >= len(matched) {
		return []models.Run{}, total, nil
	}
	end := start + opts.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *Memory) MarkStale(_ context.Context, cutoff time.Time, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for id, run := range m.runs {
		if run.Status != string(executor.StatusRunning) || !run.StartTime.Before(cutoff) {
			continue
		}
		run.Status = string(executor.StatusFailed)
		run.ErrorMessage = reason
		run.EndTime = &now
		run.UpdatedAt = now
		m.runs[id] = run
		n++
	}
	return n, nil
}
