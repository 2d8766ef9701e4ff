// Package store keeps the canonical pipeline, execution and audit records.
//
// A Repository holds the full data set in memory and rewrites it through a
// Backend after every mutation. Backends decide where the snapshot lives
// (JSON files, PostgreSQL, Redis or memory). Persistence failures are logged
// and swallowed: callers always get the in-memory result.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// ErrNilBackend is returned when a repository is built without a backend.
var ErrNilBackend = errors.New("store backend is required")

// Snapshot is the complete persisted data set.
type Snapshot struct {
	Pipelines  []connector.Pipeline   `json:"pipelines"`
	Executions []connector.Execution  `json:"executions"`
	Audit      []connector.AuditEntry `json:"audit"`
}

// Backend loads and persists whole snapshots.
type Backend interface {
	Name() string
	Load(ctx context.Context) (*Snapshot, error)
	Persist(ctx context.Context, snap *Snapshot) error
	Close() error
}

// Repository is the single owner of pipeline records. Readers get deep copies.
type Repository struct {
	mu         sync.RWMutex
	backend    Backend
	pipelines  map[string]connector.Pipeline
	executions []connector.Execution
	audit      []connector.AuditEntry
	now        func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository builds a repository and loads the backend snapshot. A load
// failure is logged and the repository starts empty.
func NewRepository(ctx context.Context, backend Backend, opts ...Option) (*Repository, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	r := &Repository{
		backend:   backend,
		pipelines: make(map[string]connector.Pipeline),
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	snap, err := backend.Load(ctx)
	if err != nil {
		logger.Error("loading store snapshot failed, starting empty",
			slog.String("backend", backend.Name()),
			slog.String("error", err.Error()),
		)
		return r, nil
	}
	if snap != nil {
		for _, p := range snap.Pipelines {
			r.pipelines[p.ID] = p
		}
		r.executions = snap.Executions
		r.audit = snap.Audit
	}
	logger.Debug("store loaded",
		slog.String("backend", backend.Name()),
		slog.Int("pipelines", len(r.pipelines)),
		slog.Int("executions", len(r.executions)),
	)
	return r, nil
}

// Close releases the backend.
func (r *Repository) Close() error {
	return r.backend.Close()
}

// Get returns a copy of the pipeline with the given id.
func (r *Repository) Get(id string) (connector.Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[id]
	if !ok {
		return connector.Pipeline{}, false
	}
	return p.Clone(), true
}

// List returns all pipelines, most recently updated first.
func (r *Repository) List() []connector.Pipeline {
	r.mu.RLock()
	out := make([]connector.Pipeline, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		out = append(out, p.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Save upserts a pipeline. An existing record gets version+1 and a fresh
// UpdatedAt; a new record is inserted at version 1.
func (r *Repository) Save(ctx context.Context, p connector.Pipeline) connector.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	rec := p.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if prev, ok := r.pipelines[rec.ID]; ok {
		rec.Version = prev.Version + 1
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = prev.CreatedAt
		}
		if now.Before(prev.UpdatedAt) {
			now = prev.UpdatedAt
		}
	} else {
		rec.Version = 1
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = connector.StatusDraft
	}
	if rec.Trigger == "" {
		rec.Trigger = connector.TriggerManual
	}
	if rec.Steps == nil {
		rec.Steps = []connector.Step{}
	}

	r.pipelines[rec.ID] = rec
	r.persistLocked(ctx)
	return rec.Clone()
}

// Delete removes a pipeline and all of its executions.
func (r *Repository) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pipelines[id]; !ok {
		return false
	}
	delete(r.pipelines, id)

	kept := r.executions[:0]
	for _, e := range r.executions {
		if e.PipelineID != id {
			kept = append(kept, e)
		}
	}
	r.executions = kept
	r.persistLocked(ctx)
	return true
}

// SaveExecution appends an execution record. Records are insert-only: a
// second save with the same id is ignored.
func (r *Repository) SaveExecution(ctx context.Context, e connector.Execution) connector.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := e.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	for _, existing := range r.executions {
		if existing.ID == rec.ID {
			logger.Warn("execution already recorded, ignoring duplicate save",
				slog.String("execution_id", rec.ID),
				slog.String("pipeline_id", rec.PipelineID),
			)
			return existing.Clone()
		}
	}
	if rec.Logs == nil {
		rec.Logs = []string{}
	}
	r.executions = append(r.executions, rec)
	r.persistLocked(ctx)
	return rec.Clone()
}

// GetExecution returns a copy of the execution with the given id.
func (r *Repository) GetExecution(id string) (connector.Execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.executions {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return connector.Execution{}, false
}

// ListExecutions returns executions, newest first. An empty pipelineID
// returns all of them.
func (r *Repository) ListExecutions(pipelineID string) []connector.Execution {
	r.mu.RLock()
	out := make([]connector.Execution, 0, len(r.executions))
	for i := len(r.executions) - 1; i >= 0; i-- {
		e := r.executions[i]
		if pipelineID == "" || e.PipelineID == pipelineID {
			out = append(out, e.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// AppendAudit records an audit entry.
func (r *Repository) AppendAudit(ctx context.Context, entry connector.AuditEntry) connector.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	r.audit = append(r.audit, entry)
	r.persistLocked(ctx)
	return entry
}

// ListAudit returns audit entries, newest first.
func (r *Repository) ListAudit() []connector.AuditEntry {
	r.mu.RLock()
	out := make([]connector.AuditEntry, 0, len(r.audit))
	for i := len(r.audit) - 1; i >= 0; i-- {
		out = append(out, r.audit[i])
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// ReconcileRunning marks pipelines left in the running status as failed.
// Runs are committed once at the end, so a running record can only come
// from an interrupted process or older tooling.
func (r *Repository) ReconcileRunning(ctx context.Context) int {
	var stale []connector.Pipeline
	for _, p := range r.List() {
		if p.Status == connector.StatusRunning {
			stale = append(stale, p)
		}
	}
	for _, p := range stale {
		p.Status = connector.StatusFailed
		r.Save(ctx, p)
		logger.Warn("pipeline left in running status marked failed", slog.String("pipeline_id", p.ID))
	}
	return len(stale)
}

// persistLocked writes the full data set. Caller holds r.mu.
func (r *Repository) persistLocked(ctx context.Context) {
	snap := &Snapshot{
		Pipelines:  make([]connector.Pipeline, 0, len(r.pipelines)),
		Executions: append([]connector.Execution(nil), r.executions...),
		Audit:      append([]connector.AuditEntry(nil), r.audit...),
	}
	for _, p := range r.pipelines {
		snap.Pipelines = append(snap.Pipelines, p)
	}
	sort.Slice(snap.Pipelines, func(i, j int) bool {
		return snap.Pipelines[i].CreatedAt.Before(snap.Pipelines[j].CreatedAt)
	})

	if err := r.backend.Persist(ctx, snap); err != nil {
		logger.Error("persisting store snapshot failed",
			slog.String("backend", r.backend.Name()),
			slog.String("error", err.Error()),
		)
	}
}
