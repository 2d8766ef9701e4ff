// Package scheduler runs pipelines whose trigger is "scheduled" on their cron
// expression. A tick is skipped while a run of the same pipeline is in flight.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// Scheduler errors.
var (
	ErrNilPipeline     = errors.New("pipeline is nil")
	ErrNotScheduled    = errors.New("pipeline trigger is not scheduled")
	ErrEmptySchedule   = errors.New("pipeline schedule is empty")
	ErrInvalidSchedule = errors.New("invalid cron expression")
	ErrNotFound        = errors.New("pipeline not registered")
	ErrAlreadyStarted  = errors.New("scheduler already started")
)

// Standard five-field expressions, an optional leading seconds field, and
// descriptors such as @hourly.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateCronExpression reports whether expr is a usable schedule.
func ValidateCronExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return ErrEmptySchedule
	}
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, expr, err)
	}
	return nil
}

// Executor runs a pipeline by id.
type Executor interface {
	Run(ctx context.Context, pipelineID string) (*connector.Execution, error)
}

type entry struct {
	id       cron.EntryID
	schedule string
}

// Scheduler owns a cron instance and one entry per registered pipeline.
type Scheduler struct {
	executor Executor
	cron     *cron.Cron

	mu      sync.Mutex
	entries map[string]entry
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler that runs pipelines through executor.
func New(executor Executor) *Scheduler {
	s := &Scheduler{
		executor: executor,
		entries:  make(map[string]entry),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})),
	)
	return s
}

// Register adds the pipeline or replaces its existing entry.
func (s *Scheduler) Register(p *connector.Pipeline) error {
	if p == nil {
		return ErrNilPipeline
	}
	if p.Trigger != connector.TriggerScheduled {
		return fmt.Errorf("%w: %s has trigger %q", ErrNotScheduled, p.ID, p.Trigger)
	}
	if err := ValidateCronExpression(p.Schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[p.ID]; ok {
		if old.schedule == p.Schedule {
			return nil
		}
		s.cron.Remove(old.id)
	}
	id, err := s.cron.AddJob(p.Schedule, s.job(p.ID))
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, p.Schedule, err)
	}
	s.entries[p.ID] = entry{id: id, schedule: p.Schedule}
	logger.Info("pipeline scheduled",
		slog.String("pipeline_id", p.ID),
		slog.String("schedule", p.Schedule),
	)
	return nil
}

// Unregister removes the pipeline's entry.
func (s *Scheduler) Unregister(pipelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[pipelineID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, pipelineID)
	}
	s.cron.Remove(e.id)
	delete(s.entries, pipelineID)
	return nil
}

// Sync makes the registered set match the scheduled pipelines in ps. It
// returns how many pipelines are registered afterwards.
func (s *Scheduler) Sync(ps []connector.Pipeline) int {
	want := make(map[string]bool)
	for i := range ps {
		p := &ps[i]
		if p.Trigger != connector.TriggerScheduled {
			continue
		}
		if err := s.Register(p); err != nil {
			logger.Warn("skipping pipeline schedule",
				slog.String("pipeline_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		want[p.ID] = true
	}
	for _, id := range s.PipelineIDs() {
		if !want[id] {
			_ = s.Unregister(id)
		}
	}
	return s.PipelineCount()
}

// Refresh registers p when it is scheduled and drops its entry otherwise.
func (s *Scheduler) Refresh(p connector.Pipeline) {
	if p.Trigger == connector.TriggerScheduled {
		err := s.Register(&p)
		if err == nil {
			return
		}
		logger.Warn("pipeline schedule rejected",
			slog.String("pipeline_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
	if s.HasPipeline(p.ID) {
		_ = s.Unregister(p.ID)
	}
}

// Start begins firing entries. Runs use a context that is cancelled when ctx
// is done or Stop gives up waiting.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	runCtx, cancel := s.ctx, s.cancel
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()
	s.cron.Start()
	logger.Info("scheduler started", slog.Int("pipelines", len(s.entries)))
	return nil
}

// Stop stops firing, waits for running jobs until ctx is done and clears the
// registered entries. Stopping a scheduler that never started is not an
// error.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	cancel := s.cancel
	s.started = false
	for id, e := range s.entries {
		s.cron.Remove(e.id)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if !started {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		cancel()
		logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("waiting for scheduled runs: %w", ctx.Err())
	}
}

// IsStarted reports whether the scheduler is firing entries.
func (s *Scheduler) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// HasPipeline reports whether the pipeline has an entry.
func (s *Scheduler) HasPipeline(pipelineID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[pipelineID]
	return ok
}

// PipelineCount returns the number of registered pipelines.
func (s *Scheduler) PipelineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// PipelineIDs returns the registered pipeline ids, sorted.
func (s *Scheduler) PipelineIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NextRun returns the next fire time of the pipeline. Before Start it is
// computed from the schedule.
func (s *Scheduler) NextRun(pipelineID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[pipelineID]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, pipelineID)
	}
	if next := s.cron.Entry(e.id).Next; !next.IsZero() {
		return next, nil
	}
	sched, err := parser.Parse(e.schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(time.Now()), nil
}

func (s *Scheduler) job(pipelineID string) cron.Job {
	return cron.FuncJob(func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		exec, err := s.executor.Run(ctx, pipelineID)
		switch {
		case errhandling.IsConflict(err):
			logger.Info("scheduled run skipped, pipeline already running", slog.String("pipeline_id", pipelineID))
		case errhandling.IsNotFound(err):
			logger.Warn("scheduled pipeline no longer exists", slog.String("pipeline_id", pipelineID))
			_ = s.Unregister(pipelineID)
		case err != nil:
			logger.Error("scheduled run failed to start",
				slog.String("pipeline_id", pipelineID),
				slog.String("error", err.Error()),
			)
		default:
			logger.Info("scheduled run finished",
				slog.String("pipeline_id", pipelineID),
				slog.String("execution_id", exec.ID),
				slog.String("status", string(exec.Status)),
			)
		}
	})
}

// cronLogger routes cron's own logging into the package logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
