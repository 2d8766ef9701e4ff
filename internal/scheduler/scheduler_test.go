package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// mockExecutor rejects a run while another run of the same pipeline is in
// flight, like the orchestrator does.
type mockExecutor struct {
	delay    time.Duration
	missing  bool
	calls    int32
	started  int32
	rejected int32

	mu       sync.Mutex
	inFlight map[string]bool
	ids      []string
}

func (m *mockExecutor) Run(ctx context.Context, id string) (*connector.Execution, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.missing {
		return nil, errhandling.NotFound("runtime.run", "pipeline "+id+" not found")
	}
	m.mu.Lock()
	if m.inFlight == nil {
		m.inFlight = map[string]bool{}
	}
	if m.inFlight[id] {
		m.mu.Unlock()
		atomic.AddInt32(&m.rejected, 1)
		return nil, errhandling.Conflict("runtime.run", "already running", errors.New("busy"))
	}
	m.inFlight[id] = true
	m.ids = append(m.ids, id)
	m.mu.Unlock()
	atomic.AddInt32(&m.started, 1)

	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
	}

	m.mu.Lock()
	delete(m.inFlight, id)
	m.mu.Unlock()
	return &connector.Execution{ID: "e-" + id, PipelineID: id, Status: connector.ExecutionSucceeded}, nil
}

func scheduled(id, expr string) *connector.Pipeline {
	return &connector.Pipeline{ID: id, Name: id, Trigger: connector.TriggerScheduled, Schedule: expr}
}

func TestValidateCronExpression(t *testing.T) {
	valid := []string{"* * * * *", "0 9 * * 1-5", "*/5 * * * *", "*/30 * * * * *", "@hourly"}
	for _, expr := range valid {
		t.Run("valid "+expr, func(t *testing.T) {
			if err := ValidateCronExpression(expr); err != nil {
				t.Errorf("ValidateCronExpression(%q) error = %v", expr, err)
			}
		})
	}

	invalid := []string{"", "not a cron", "* * *", "a b c d e", "60 * * * *", "* 25 * * *", "* * * * * * *", "60 * * * * *"}
	for _, expr := range invalid {
		t.Run("invalid "+expr, func(t *testing.T) {
			if err := ValidateCronExpression(expr); err == nil {
				t.Errorf("ValidateCronExpression(%q) should fail", expr)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		p       *connector.Pipeline
		wantErr error
	}{
		{"valid", scheduled("p1", "*/5 * * * *"), nil},
		{"nil", nil, ErrNilPipeline},
		{"manual trigger", &connector.Pipeline{ID: "p2", Trigger: connector.TriggerManual, Schedule: "* * * * *"}, ErrNotScheduled},
		{"empty schedule", scheduled("p3", ""), ErrEmptySchedule},
		{"invalid schedule", scheduled("p4", "not valid"), ErrInvalidSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&mockExecutor{})
			err := s.Register(tt.p)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Register() error = %v", err)
				}
				if !s.HasPipeline(tt.p.ID) {
					t.Error("pipeline not registered")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegister_ReplacesSchedule(t *testing.T) {
	s := New(&mockExecutor{})
	if err := s.Register(scheduled("p", "0 * * * *")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Register(scheduled("p", "@daily")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if s.PipelineCount() != 1 {
		t.Errorf("PipelineCount() = %d, want 1", s.PipelineCount())
	}
	next, err := s.NextRun("p")
	if err != nil {
		t.Fatalf("NextRun() error = %v", err)
	}
	if next.Hour() != 0 || next.Minute() != 0 {
		t.Errorf("NextRun() = %v, want midnight", next)
	}
}

func TestUnregister(t *testing.T) {
	s := New(&mockExecutor{})
	_ = s.Register(scheduled("p", "* * * * *"))
	if err := s.Unregister("p"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if s.HasPipeline("p") {
		t.Error("pipeline still registered")
	}
	if err := s.Unregister("p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Unregister() error = %v, want ErrNotFound", err)
	}
	if _, err := s.NextRun("p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("NextRun() error = %v, want ErrNotFound", err)
	}
}

func TestSyncAndRefresh(t *testing.T) {
	s := New(&mockExecutor{})
	_ = s.Register(scheduled("stale", "* * * * *"))

	n := s.Sync([]connector.Pipeline{
		*scheduled("a", "*/5 * * * *"),
		*scheduled("bad", "nope"),
		{ID: "manual", Trigger: connector.TriggerManual},
		*scheduled("b", "@hourly"),
	})
	if n != 2 {
		t.Fatalf("Sync() = %d, want 2", n)
	}
	ids := s.PipelineIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("PipelineIDs() = %v", ids)
	}

	s.Refresh(connector.Pipeline{ID: "a", Trigger: connector.TriggerManual})
	if s.HasPipeline("a") {
		t.Error("Refresh() should drop a pipeline that is no longer scheduled")
	}
	s.Refresh(*scheduled("c", "@daily"))
	if !s.HasPipeline("c") {
		t.Error("Refresh() should register a scheduled pipeline")
	}
}

func TestStart_RunsPipelines(t *testing.T) {
	exec := &mockExecutor{}
	s := New(exec)
	if err := s.Register(scheduled("p", "* * * * * *")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v", err)
	}
	if !s.IsStarted() {
		t.Error("IsStarted() = false")
	}

	time.Sleep(1500 * time.Millisecond)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if atomic.LoadInt32(&exec.started) < 1 {
		t.Error("expected at least one scheduled run")
	}
	if s.IsStarted() || s.PipelineCount() != 0 {
		t.Error("Stop() should clear the scheduler")
	}
}

func TestStart_SkipsTickWhileRunning(t *testing.T) {
	exec := &mockExecutor{delay: 2500 * time.Millisecond}
	s := New(exec)
	_ = s.Register(scheduled("p", "* * * * * *"))
	_ = s.Start(context.Background())

	time.Sleep(3200 * time.Millisecond)
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Stop(stopCtx)

	if got := atomic.LoadInt32(&exec.started); got > 2 {
		t.Errorf("started %d runs, want at most 2", got)
	}
	if atomic.LoadInt32(&exec.rejected) == 0 {
		t.Error("expected overlapping ticks to be skipped")
	}
}

func TestJob_UnregistersMissingPipeline(t *testing.T) {
	s := New(&mockExecutor{missing: true})
	_ = s.Register(scheduled("gone", "* * * * *"))
	s.job("gone").Run()
	if s.HasPipeline("gone") {
		t.Error("a deleted pipeline should be unregistered")
	}
}

func TestStop(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		s := New(&mockExecutor{})
		_ = s.Register(scheduled("p", "* * * * *"))
		if err := s.Stop(context.Background()); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
		if s.PipelineCount() != 0 {
			t.Error("Stop() should clear entries")
		}
	})

	t.Run("deadline while a run is in flight", func(t *testing.T) {
		exec := &mockExecutor{delay: time.Minute}
		s := New(exec)
		_ = s.Register(scheduled("p", "* * * * * *"))
		_ = s.Start(context.Background())
		for atomic.LoadInt32(&exec.started) == 0 {
			time.Sleep(50 * time.Millisecond)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := s.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Stop() error = %v, want deadline exceeded", err)
		}
	})
}
