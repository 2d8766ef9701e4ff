// Package runtime provides the pipeline execution engine.
// It picks a strategy for a stored pipeline, runs its steps and records the
// outcome as an Execution.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/connectors"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/scriptrunner"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/transform"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// ErrRunInProgress is returned when the pipeline is already running.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// PipelineStore is the part of the repository the orchestrator needs.
type PipelineStore interface {
	Get(id string) (connector.Pipeline, bool)
	Save(ctx context.Context, p connector.Pipeline) connector.Pipeline
	SaveExecution(ctx context.Context, e connector.Execution) connector.Execution
}

// ArtifactChecker reports whether a pipeline has a generated script.
type ArtifactChecker interface {
	Exists(pipelineID string) bool
}

// ScriptRunner runs a pipeline's generated script.
type ScriptRunner interface {
	Run(ctx context.Context, pipelineID string) scriptrunner.Result
}

// Orchestrator runs stored pipelines. Runs of different pipelines may proceed
// concurrently; a second run of the same pipeline is rejected.
type Orchestrator struct {
	store       PipelineStore
	registry    *connectors.Registry
	artifacts   ArtifactChecker
	runner      ScriptRunner
	interpreter *transform.Interpreter
	now         func() time.Time
	newID       func() string

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides execution id generation.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// New creates an Orchestrator.
func New(store PipelineStore, registry *connectors.Registry, artifacts ArtifactChecker, runner ScriptRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		registry:    registry,
		artifacts:   artifacts,
		runner:      runner,
		interpreter: transform.NewInterpreter(),
		now:         time.Now,
		newID:       uuid.NewString,
		inFlight:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether a run of pipelineID is in flight.
func (o *Orchestrator) Running(pipelineID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[pipelineID]
	return ok
}

func (o *Orchestrator) acquire(pipelineID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inFlight[pipelineID]; ok {
		return false
	}
	o.inFlight[pipelineID] = struct{}{}
	return true
}

func (o *Orchestrator) release(pipelineID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, pipelineID)
}

// run is the mutable state of one execution.
type run struct {
	pipeline connector.Pipeline
	ectx     logger.ExecutionContext
	logs     []string
	metrics  connector.Metrics
	failed   bool
}

func (r *run) logf(format string, args ...any) {
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

// Run executes the pipeline and returns the recorded Execution. Only a
// missing pipeline or a run already in flight produce an error; every other
// outcome, including step failures, is reported through the Execution.
func (o *Orchestrator) Run(ctx context.Context, pipelineID string) (*connector.Execution, error) {
	const op = "runtime.run"
	p, ok := o.store.Get(pipelineID)
	if !ok {
		return nil, errhandling.NotFound(op, fmt.Sprintf("pipeline %s not found", pipelineID))
	}
	if !o.acquire(pipelineID) {
		return nil, errhandling.Conflict(op, fmt.Sprintf("pipeline %s is already running", pipelineID), ErrRunInProgress)
	}
	defer o.release(pipelineID)

	started := o.now()
	wall := time.Now()
	r := &run{pipeline: p}

	strategy := SelectStrategy(p, o.registry, o.artifacts.Exists(p.ID))
	execID := o.newID()
	r.ectx = logger.ExecutionContext{
		PipelineID:   p.ID,
		PipelineName: p.Name,
		ExecutionID:  execID,
		Strategy:     string(strategy),
	}
	logger.LogExecutionStart(r.ectx)

	r.logf("Starting pipeline execution: %q", p.Name)
	r.logf("Total steps: %d", len(p.Steps))
	r.logf("Started at: %s", started.UTC().Format(time.RFC3339))
	r.logf("Strategy: %s", strategy)

	switch strategy {
	case connector.StrategySimulated:
		o.simulate(r)
	case connector.StrategyExternalScript:
		o.runScript(ctx, r)
	default:
		o.interpret(ctx, r)
	}

	return o.finalize(ctx, r, execID, strategy, started, time.Since(wall)), nil
}

// simulate records one line per step without touching any connector.
func (o *Orchestrator) simulate(r *run) {
	r.logf("Pipeline uses a connector without a live adapter, simulating execution")
	for i, s := range r.pipeline.Steps {
		r.logf("Step %d: %s (%s) simulated, not executed", i+1, s.Name, s.Type)
	}
}

func (o *Orchestrator) runScript(ctx context.Context, r *run) {
	res := o.runner.Run(ctx, r.pipeline.ID)
	r.logs = append(r.logs, res.Notes...)
	r.logf("--- Script output ---")
	if out := strings.TrimRight(res.Output, "\n"); out != "" {
		r.logs = append(r.logs, out)
	}
	r.logf("--- Script output end ---")
	if res.Succeeded {
		r.logf("Generated code executed successfully")
		return
	}
	r.failed = true
	r.logf("Script execution failed: %s", res.Diagnostic)
	logger.LogError("script execution failed", logger.ErrorContext{
		ExecutionContext: r.ectx,
		Category:         string(errhandling.CategoryProcess),
		Err:              errors.New(res.Diagnostic),
		Duration:         res.Duration,
		Extra:            map[string]any{"exit_code": res.ExitCode, "log_file": res.LogFile},
	})
}

// interpret runs the steps in stored order, threading one row-set through
// them. The first failing step stops the run.
func (o *Orchestrator) interpret(ctx context.Context, r *run) {
	var rows *connector.RowSet
	for i, step := range r.pipeline.Steps {
		sctx := r.ectx.ForStep(i+1, string(step.Type), step.Name)
		logger.LogStageStart(sctx)
		r.logf("Step %d: %s (%s)", i+1, step.Name, step.Type)

		start := time.Now()
		var err error
		switch step.Type {
		case connector.StepSource:
			rows, err = o.readSource(ctx, r, step, rows)
		case connector.StepTransform:
			rows, err = o.applyTransform(ctx, r, step, rows)
		case connector.StepDestination:
			err = o.writeDestination(ctx, r, step, rows)
		default:
			r.logf("Step skipped: unknown step type %q", step.Type)
		}
		logger.LogStageEnd(sctx, rows.Len(), time.Since(start), err)

		if err != nil {
			r.failed = true
			r.logf("Error: %v", err)
			logger.LogError("step failed", logger.ErrorContext{
				ExecutionContext: sctx,
				Category:         string(errhandling.CategoryOf(err)),
				Err:              err,
				Duration:         time.Since(start),
			})
			return
		}
	}
}

func (o *Orchestrator) readSource(ctx context.Context, r *run, step connector.Step, current *connector.RowSet) (*connector.RowSet, error) {
	kind := connectors.ResolveKind(step)
	adapter, ok := o.registry.Get(kind)
	if !ok || !adapter.Live() {
		r.logf("Step completed (simulated)")
		return current, nil
	}
	cfg, err := connectors.DecodeSourceConfig(kind, step.Config)
	if err != nil {
		return current, errhandling.Validation("runtime.source", "invalid source config", err)
	}
	r.logf("Fetching data from %s", kind)
	res, err := adapter.Read(ctx, cfg)
	if err != nil {
		return current, err
	}
	r.metrics.RowsProcessed = res.RowCount
	r.logf("Fetched %d rows", res.RowCount)
	if len(res.Schema) > 0 {
		r.logf("Columns: %s", strings.Join(res.Schema, ", "))
	}
	return res.Rows, nil
}

func (o *Orchestrator) applyTransform(ctx context.Context, r *run, step connector.Step, rows *connector.RowSet) (*connector.RowSet, error) {
	if rows.Empty() {
		r.logf("Step completed (no data to transform)")
		return rows, nil
	}
	cfg, err := transform.DecodeConfig(step.Config)
	if err != nil {
		return rows, errhandling.Validation("runtime.transform", "invalid transform config", err)
	}
	r.logf("Processing %d records", rows.Len())
	out, reports, err := o.interpreter.ApplyReport(ctx, rows, cfg)
	if err != nil {
		return rows, err
	}
	for _, rep := range reports {
		r.logf("  %s", rep.Detail)
	}
	r.metrics.TransformationsApplied++
	r.logf("Transformation completed: %d records", out.Len())
	return out, nil
}

func (o *Orchestrator) writeDestination(ctx context.Context, r *run, step connector.Step, rows *connector.RowSet) error {
	kind := connectors.ResolveKind(step)
	adapter, ok := o.registry.Get(kind)
	if !ok || !adapter.Live() {
		r.logf("Step completed (simulated)")
		return nil
	}
	if rows == nil {
		r.logf("No data to write (no source data available)")
		return nil
	}
	cfg, err := connectors.DecodeDestinationConfig(kind, step.Config)
	if err != nil {
		return errhandling.Validation("runtime.destination", "invalid destination config", err)
	}
	cfg.DefaultSheetName = fmt.Sprintf("Pipeline_%s_Output", r.pipeline.Name)
	r.logf("Writing %d rows to %s", rows.Len(), kind)
	res, err := adapter.Write(ctx, cfg, rows)
	if err != nil {
		return err
	}
	r.metrics.RowsWritten = res.RowsWritten
	r.logf("Wrote %d rows (%d cells) to %s", res.RowsWritten, res.UpdatedCells, res.Location)
	return nil
}

// finalize saves the pipeline with its terminal status, then appends the
// execution. Persistence runs even when ctx is already cancelled. The status
// is applied to the stored record so edits made during the run are kept; a
// pipeline deleted during the run is not recreated and its execution is not
// recorded.
func (o *Orchestrator) finalize(ctx context.Context, r *run, execID string, strategy connector.Strategy, started time.Time, elapsed time.Duration) *connector.Execution {
	ctx = context.WithoutCancel(ctx)
	status := connector.ExecutionSucceeded
	pstatus := connector.StatusSucceeded
	if r.failed {
		status = connector.ExecutionFailed
		pstatus = connector.StatusFailed
		r.logf("Pipeline execution failed")
	} else {
		r.logf("Pipeline execution completed successfully")
	}
	r.metrics.DurationMs = elapsed.Milliseconds()

	exec := connector.Execution{
		ID:         execID,
		PipelineID: r.pipeline.ID,
		StartedAt:  started,
		FinishedAt: o.now(),
		Status:     status,
		Strategy:   strategy,
		Logs:       r.logs,
		Metrics:    r.metrics,
	}

	if current, ok := o.store.Get(r.pipeline.ID); ok {
		current.Status = pstatus
		o.store.Save(ctx, current)
		exec = o.store.SaveExecution(ctx, exec)
	} else {
		logger.Warn("pipeline deleted during execution; results not saved",
			slog.String("pipeline_id", r.pipeline.ID),
			slog.String("execution_id", execID),
		)
	}

	logger.LogMetrics(r.ectx, logger.RunMetrics{
		RowsProcessed:          r.metrics.RowsProcessed,
		TransformationsApplied: r.metrics.TransformationsApplied,
		RowsWritten:            r.metrics.RowsWritten,
		Duration:               elapsed,
	})
	logger.LogExecutionEnd(r.ectx, string(status), r.metrics.RowsProcessed, elapsed)
	return &exec
}
