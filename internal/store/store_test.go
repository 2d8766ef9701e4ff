package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/config"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// steppingClock returns a clock that advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func newRepo(t *testing.T, backend Backend, opts ...Option) *Repository {
	t.Helper()
	repo, err := NewRepository(context.Background(), backend, opts...)
	require.NoError(t, err)
	return repo
}

func TestNewRepository_NilBackend(t *testing.T) {
	_, err := NewRepository(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestSave_InsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, NewMemoryBackend(nil), WithClock(steppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)))

	created := repo.Save(ctx, connector.Pipeline{Name: "Sales sync", Version: 7})
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version, "new pipelines start at version 1")
	assert.Equal(t, connector.StatusDraft, created.Status)
	assert.Equal(t, connector.TriggerManual, created.Trigger)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	edit := created
	edit.Description = "nightly"
	edit.CreatedAt = time.Time{}
	updated := repo.Save(ctx, edit)

	assert.Greater(t, updated.Version, created.Version)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt, "zero CreatedAt keeps the original")

	got, ok := repo.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "nightly", got.Description)
	assert.Equal(t, 2, got.Version)
}

func TestSave_UpdatedAtNeverGoesBackwards(t *testing.T) {
	ctx := context.Background()
	times := []time.Time{
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	i := 0
	clock := func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
	repo := newRepo(t, NewMemoryBackend(nil), WithClock(clock))

	first := repo.Save(ctx, connector.Pipeline{ID: "p1", Name: "a"})
	second := repo.Save(ctx, first)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
	assert.Equal(t, 2, second.Version)
}

func TestGet_ReturnsDeepCopy(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, NewMemoryBackend(nil))
	saved := repo.Save(ctx, connector.Pipeline{
		ID:    "p1",
		Name:  "a",
		Steps: []connector.Step{{ID: "s", Type: connector.StepSource, Config: map[string]any{"range": "A1"}}},
	})

	saved.Steps[0].Config["range"] = "mutated"
	got, _ := repo.Get("p1")
	got.Steps[0].Config["range"] = "mutated too"

	again, _ := repo.Get("p1")
	assert.Equal(t, "A1", again.Steps[0].Config["range"])
}

func TestList_OrderedByUpdatedAtDesc(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, NewMemoryBackend(nil), WithClock(steppingClock(time.Now(), time.Minute)))

	repo.Save(ctx, connector.Pipeline{ID: "a", Name: "a"})
	repo.Save(ctx, connector.Pipeline{ID: "b", Name: "b"})
	repo.Save(ctx, connector.Pipeline{ID: "a", Name: "a2"})

	list := repo.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestDelete_CascadesExecutions(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, NewMemoryBackend(nil))
	repo.Save(ctx, connector.Pipeline{ID: "p1", Name: "a"})
	repo.Save(ctx, connector.Pipeline{ID: "p2", Name: "b"})
	repo.SaveExecution(ctx, connector.Execution{ID: "e1", PipelineID: "p1"})
	repo.SaveExecution(ctx, connector.Execution{ID: "e2", PipelineID: "p2"})

	assert.True(t, repo.Delete(ctx, "p1"))
	assert.False(t, repo.Delete(ctx, "p1"))

	for _, p := range repo.List() {
		assert.NotEqual(t, "p1", p.ID)
	}
	for _, e := range repo.ListExecutions("") {
		assert.NotEqual(t, "p1", e.PipelineID)
	}
	assert.Len(t, repo.ListExecutions(""), 1)
}

func TestExecutions_InsertOnlyAndOrdered(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, NewMemoryBackend(nil))
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	repo.SaveExecution(ctx, connector.Execution{ID: "old", PipelineID: "p", StartedAt: base, Status: connector.ExecutionSucceeded})
	repo.SaveExecution(ctx, connector.Execution{ID: "new", PipelineID: "p", StartedAt: base.Add(time.Hour)})
	repo.SaveExecution(ctx, connector.Execution{ID: "other", PipelineID: "q", StartedAt: base.Add(2 * time.Hour)})
	dup := repo.SaveExecution(ctx, connector.Execution{ID: "old", PipelineID: "p", Status: connector.ExecutionFailed})

	assert.Equal(t, connector.ExecutionSucceeded, dup.Status, "duplicate save returns the stored record")

	forP := repo.ListExecutions("p")
	require.Len(t, forP, 2)
	assert.Equal(t, "new", forP[0].ID)
	assert.Equal(t, "old", forP[1].ID)

	all := repo.ListExecutions("")
	require.Len(t, all, 3)
	assert.Equal(t, "other", all[0].ID)

	got, ok := repo.GetExecution("old")
	require.True(t, ok)
	assert.NotNil(t, got.Logs)
}

func TestAudit_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, NewMemoryBackend(nil), WithClock(steppingClock(time.Now(), time.Second)))

	repo.AppendAudit(ctx, connector.AuditEntry{Action: "created pipeline", TargetType: connector.AuditPipeline})
	repo.AppendAudit(ctx, connector.AuditEntry{Action: "executed pipeline", TargetType: connector.AuditExecution})

	entries := repo.ListAudit()
	require.Len(t, entries, 2)
	assert.Equal(t, "executed pipeline", entries[0].Action)
	assert.NotEmpty(t, entries[0].ID)
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(nil)
	backend.Err = errors.New("disk full")
	repo := newRepo(t, backend)

	saved := repo.Save(ctx, connector.Pipeline{Name: "x"})
	_, ok := repo.Get(saved.ID)
	assert.True(t, ok, "in-memory state survives a persist failure")
	assert.Equal(t, 1, backend.PersistCount())
}

func TestReconcileRunning(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, NewMemoryBackend(&Snapshot{Pipelines: []connector.Pipeline{
		{ID: "stuck", Name: "a", Status: connector.StatusRunning, Version: 3},
		{ID: "fine", Name: "b", Status: connector.StatusSucceeded, Version: 1},
	}}))

	assert.Equal(t, 1, repo.ReconcileRunning(ctx))
	p, _ := repo.Get("stuck")
	assert.Equal(t, connector.StatusFailed, p.Status)
	assert.Equal(t, 4, p.Version)
}

func TestFileBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	repo := newRepo(t, NewFileBackend(dir))

	p := repo.Save(ctx, connector.Pipeline{Name: "Sales", Steps: []connector.Step{{ID: "s", Type: connector.StepSource, Name: "Sheet"}}})
	repo.SaveExecution(ctx, connector.Execution{ID: "e1", PipelineID: p.ID, Logs: []string{"Step 1"}})
	repo.AppendAudit(ctx, connector.AuditEntry{Action: "created"})

	for _, name := range []string{"pipelines.json", "executions.json", "audit.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		_, err = os.Stat(filepath.Join(dir, name+".tmp"))
		assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
	}

	reopened := newRepo(t, NewFileBackend(dir))
	got, ok := reopened.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "Sales", got.Name)
	assert.Equal(t, 1, got.Version)
	assert.Len(t, reopened.ListExecutions(p.ID), 1)
	assert.Len(t, reopened.ListAudit(), 1)
}

func TestFileBackend_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipelines.json"), []byte("{not json"), 0o644))

	backend := NewFileBackend(dir)
	_, err := backend.Load(context.Background())
	require.Error(t, err)

	repo := newRepo(t, backend)
	assert.Empty(t, repo.List())
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	b, err := OpenBackend(ctx, &config.Settings{StoreBackend: config.BackendMemory})
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name())

	b, err = OpenBackend(ctx, &config.Settings{StoreBackend: config.BackendFile, DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "file", b.Name())

	_, err = OpenBackend(ctx, &config.Settings{StoreBackend: "mongo"})
	assert.Error(t, err)
}
