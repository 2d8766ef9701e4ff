// Package logger provides structured logging for the pipeline service.
// It wraps log/slog behind a package-level Logger so every component logs
// with the same handler, level and field names (snake_case).
//
// Two console formats are supported:
//   - JSON (default): machine-readable structured logging
//   - Human: readable console output with level prefixes
//
// When a log file is configured, records are also written as JSON to a
// size-rotated file.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the default logger instance.
var Logger *slog.Logger

// OutputFormat represents the console output format.
type OutputFormat int

const (
	// FormatJSON is the default machine-readable JSON format
	FormatJSON OutputFormat = iota
	// FormatHuman is a human-readable console format
	FormatHuman
)

// Options configures the package logger.
type Options struct {
	Level  slog.Level
	Format OutputFormat
	// File enables a rotating JSON log file in addition to the console.
	File string
	// MaxSizeMB, MaxBackups and MaxAgeDays control file rotation.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	current           = Options{Level: slog.LevelInfo, Format: FormatJSON}
	console io.Writer = os.Stdout
	rotator *lumberjack.Logger
)

func init() {
	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Configure rebuilds the package logger from opts.
func Configure(opts Options) error {
	CloseLogFile()
	current = opts

	consoleHandler := newConsoleHandler(console, opts.Level, opts.Format)
	if opts.File == "" {
		Logger = slog.New(consoleHandler)
		return nil
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 30
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		Logger = slog.New(consoleHandler)
		return fmt.Errorf("opening log file: %w", err)
	}
	_ = f.Close()

	rotator = &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	fileHandler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: opts.Level})
	Logger = slog.New(&dualHandler{console: consoleHandler, file: fileHandler})

	Info("log file opened",
		slog.String("path", opts.File),
		slog.String("console_format", formatName(opts.Format)),
	)
	return nil
}

// SetLevel changes the logging level, keeping the configured format and file.
func SetLevel(level slog.Level) {
	opts := current
	opts.Level = level
	if err := Configure(opts); err != nil {
		Warn("reconfiguring logger failed", slog.String("error", err.Error()))
	}
}

// SetOutput redirects console output. Used by tests.
func SetOutput(w io.Writer) {
	console = w
	opts := current
	opts.File = ""
	_ = Configure(opts)
}

// CloseLogFile closes the rotating log file if one is open.
func CloseLogFile() {
	if rotator != nil {
		if err := rotator.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
		}
		rotator = nil
	}
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat converts a format name to an OutputFormat.
func ParseFormat(name string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(name), "human") {
		return FormatHuman
	}
	return FormatJSON
}

func newConsoleHandler(w io.Writer, level slog.Level, format OutputFormat) slog.Handler {
	if format == FormatHuman {
		return NewHumanHandler(w, &HumanHandlerOptions{Level: level, UseColors: isTerminal(w)})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// WithPipeline returns a logger with pipeline context.
func WithPipeline(pipelineID string) *slog.Logger {
	return Logger.With(slog.String("pipeline_id", pipelineID))
}

// =============================================================================
// Execution Context
// =============================================================================

// ExecutionContext carries the identifiers attached to run-level log lines.
type ExecutionContext struct {
	PipelineID   string
	PipelineName string
	ExecutionID  string
	Strategy     string
	// StepIndex is the 1-based step position, 0 outside a step
	StepIndex int
	StepType  string
	StepName  string
}

// ForStep returns a copy of the context scoped to one step.
func (c ExecutionContext) ForStep(index int, stepType, name string) ExecutionContext {
	c.StepIndex = index
	c.StepType = stepType
	c.StepName = name
	return c
}

// ErrorContext contains structured context for error logging.
type ErrorContext struct {
	ExecutionContext
	Category string
	Err      error
	Duration time.Duration
	Extra    map[string]any
}

// RunMetrics mirrors the counters recorded on an execution.
type RunMetrics struct {
	RowsProcessed          int
	TransformationsApplied int
	RowsWritten            int
	Duration               time.Duration
}

// WithExecution returns a logger with execution context attached.
func WithExecution(ctx ExecutionContext) *slog.Logger {
	return Logger.With(buildContextAttrs(ctx)...)
}

// LogExecutionStart logs the start of a pipeline run.
func LogExecutionStart(ctx ExecutionContext) {
	Logger.Info("execution started", buildContextAttrs(ctx)...)
}

// LogExecutionEnd logs the terminal status of a pipeline run.
func LogExecutionEnd(ctx ExecutionContext, status string, rowsProcessed int, duration time.Duration) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.String("status", status),
		slog.Int("rows_processed", rowsProcessed),
		slog.Duration("duration", duration),
	)
	if status == "failed" {
		Logger.Warn("execution failed", attrs...)
		return
	}
	Logger.Info("execution completed", attrs...)
}

// LogStageStart logs the start of a step.
func LogStageStart(ctx ExecutionContext) {
	Logger.Debug("step started", buildContextAttrs(ctx)...)
}

// LogStageEnd logs the completion of a step. A non-nil err logs at error level.
func LogStageEnd(ctx ExecutionContext, rowCount int, duration time.Duration, err error) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.Int("row_count", rowCount),
		slog.Duration("duration", duration),
	)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		Logger.Error("step failed", attrs...)
		return
	}
	Logger.Info("step completed", attrs...)
}

// LogMetrics logs the counters of a finished run.
func LogMetrics(ctx ExecutionContext, m RunMetrics) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.Int("rows_processed", m.RowsProcessed),
		slog.Int("transformations_applied", m.TransformationsApplied),
		slog.Int("rows_written", m.RowsWritten),
		slog.Duration("total_duration", m.Duration),
	)
	if m.Duration > 0 && m.RowsProcessed > 0 {
		attrs = append(attrs, slog.Float64("rows_per_second", float64(m.RowsProcessed)/m.Duration.Seconds()))
	}
	Logger.Info("execution metrics", attrs...)
}

// LogError logs an error with its execution context and unwrap chain.
func LogError(message string, errCtx ErrorContext) {
	attrs := buildContextAttrs(errCtx.ExecutionContext)
	if errCtx.Category != "" {
		attrs = append(attrs, slog.String("error_category", errCtx.Category))
	}
	if errCtx.Err != nil {
		attrs = append(attrs,
			slog.String("error", errCtx.Err.Error()),
			slog.String("error_type", fmt.Sprintf("%T", errCtx.Err)),
		)
		chain := []string{errCtx.Err.Error()}
		for e := errors.Unwrap(errCtx.Err); e != nil; e = errors.Unwrap(e) {
			chain = append(chain, e.Error())
		}
		if len(chain) > 1 {
			attrs = append(attrs, slog.String("error_chain", strings.Join(chain, " -> ")))
		}
	}
	if errCtx.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", errCtx.Duration))
	}
	for k, v := range errCtx.Extra {
		attrs = append(attrs, slog.Any(k, v))
	}
	Logger.Error(message, attrs...)
}

// buildContextAttrs builds slog attributes from an ExecutionContext.
// Only non-empty fields are included.
func buildContextAttrs(ctx ExecutionContext) []any {
	attrs := make([]any, 0, 8)
	if ctx.PipelineID != "" {
		attrs = append(attrs, slog.String("pipeline_id", ctx.PipelineID))
	}
	if ctx.PipelineName != "" {
		attrs = append(attrs, slog.String("pipeline_name", ctx.PipelineName))
	}
	if ctx.ExecutionID != "" {
		attrs = append(attrs, slog.String("execution_id", ctx.ExecutionID))
	}
	if ctx.Strategy != "" {
		attrs = append(attrs, slog.String("strategy", ctx.Strategy))
	}
	if ctx.StepIndex > 0 {
		attrs = append(attrs, slog.Int("step_index", ctx.StepIndex))
	}
	if ctx.StepType != "" {
		attrs = append(attrs, slog.String("step_type", ctx.StepType))
	}
	if ctx.StepName != "" {
		attrs = append(attrs, slog.String("step_name", ctx.StepName))
	}
	return attrs
}

// isTerminal returns true if the writer is a terminal (supports colors)
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return false
		}
		return (fi.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func formatName(f OutputFormat) string {
	if f == FormatHuman {
		return "human"
	}
	return "json"
}

// dualHandler writes every record to both the console and the file handler.
type dualHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (d *dualHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return d.console.Enabled(ctx, level) || d.file.Enabled(ctx, level)
}

func (d *dualHandler) Handle(ctx context.Context, r slog.Record) error {
	if d.console.Enabled(ctx, r.Level) {
		if err := d.console.Handle(ctx, r); err != nil {
			return err
		}
	}
	if d.file.Enabled(ctx, r.Level) {
		if err := d.file.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (d *dualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dualHandler{console: d.console.WithAttrs(attrs), file: d.file.WithAttrs(attrs)}
}

func (d *dualHandler) WithGroup(name string) slog.Handler {
	return &dualHandler{console: d.console.WithGroup(name), file: d.file.WithGroup(name)}
}
