// Package scriptrunner executes a pipeline's generated script as a child
// process inside its artifact directory.
package scriptrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/artifacts"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
)

// Defaults.
const (
	DefaultInterpreter = "python3"
	DefaultTimeout     = 30 * time.Minute
	DefaultMaxOutput   = 10 * 1024 * 1024
	waitDelay          = 5 * time.Second
)

var errOutputOverflow = errors.New("output limit exceeded")

// Options configures a Runner.
type Options struct {
	Interpreter           string
	Timeout               time.Duration
	SharedCredentialsPath string
	MaxOutput             int
}

// Result is the outcome of one script run. A run never returns an error;
// failures are reported through Succeeded and Diagnostic.
type Result struct {
	Succeeded  bool
	Output     string
	LogFile    string
	ExitCode   int
	Diagnostic string
	Notes      []string
	Duration   time.Duration
}

// Runner runs generated scripts.
type Runner struct {
	layout *artifacts.Layout
	opts   Options
	now    func() time.Time
}

// New creates a Runner over an artifact layout.
func New(layout *artifacts.Layout, opts Options) *Runner {
	if opts.Interpreter == "" {
		opts.Interpreter = DefaultInterpreter
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = DefaultMaxOutput
	}
	return &Runner{layout: layout, opts: opts, now: time.Now}
}

// Run executes the pipeline script with the artifact directory as working
// directory. Combined stdout and stderr are captured and written to a log
// file under logs/.
func (r *Runner) Run(ctx context.Context, pipelineID string) Result {
	var res Result
	dir, err := r.layout.Dir(pipelineID)
	if err != nil {
		res.Diagnostic = err.Error()
		return res
	}
	if !r.layout.Exists(pipelineID) {
		res.Diagnostic = fmt.Sprintf("no %s artifact for pipeline %s", artifacts.ScriptFile, pipelineID)
		return res
	}

	if note := r.copyCredentials(dir); note != "" {
		res.Notes = append(res.Notes, note)
	}

	logsDir, err := r.layout.LogsPath(pipelineID)
	if err != nil {
		res.Diagnostic = err.Error()
		return res
	}
	res.LogFile = filepath.Join(logsDir, fmt.Sprintf("execution_%d.log", r.now().UnixMilli()))
	res.Notes = append(res.Notes,
		"Python script: "+filepath.Join(dir, artifacts.ScriptFile),
		"Log output: "+res.LogFile,
	)

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	runCtx, cancelCause := context.WithCancelCause(runCtx)
	defer cancelCause(nil)

	out := &boundedBuffer{max: r.opts.MaxOutput, onOverflow: func() { cancelCause(errOutputOverflow) }}
	cmd := exec.CommandContext(runCtx, r.opts.Interpreter, artifacts.ScriptFile)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay

	logger.Info("script run started",
		slog.String("pipeline_id", pipelineID),
		slog.String("interpreter", r.opts.Interpreter),
		slog.Duration("timeout", r.opts.Timeout),
	)
	start := time.Now()
	runErr := cmd.Run()
	res.Duration = time.Since(start)
	res.Output = out.String()
	res.ExitCode = exitCode(cmd, runErr)

	switch {
	case out.Overflowed():
		res.Diagnostic = fmt.Sprintf("script output exceeded %d bytes and the process was stopped", r.opts.MaxOutput)
	case runErr != nil && errors.Is(context.Cause(runCtx), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Diagnostic = fmt.Sprintf("script timed out after %s", r.opts.Timeout)
	case runErr != nil && ctx.Err() != nil:
		res.Diagnostic = "script run cancelled: " + ctx.Err().Error()
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.Diagnostic = fmt.Sprintf("script exited with code %d", res.ExitCode)
		} else {
			res.Diagnostic = "script could not be started: " + runErr.Error()
		}
	default:
		res.Succeeded = true
	}

	if err := os.MkdirAll(logsDir, 0o755); err == nil {
		err = os.WriteFile(res.LogFile, []byte(res.Output), 0o644)
		if err != nil {
			res.Notes = append(res.Notes, "Warning: could not write log file: "+err.Error())
		}
	} else {
		res.Notes = append(res.Notes, "Warning: could not create logs directory: "+err.Error())
	}

	attrs := []any{
		slog.String("pipeline_id", pipelineID),
		slog.Bool("succeeded", res.Succeeded),
		slog.Int("exit_code", res.ExitCode),
		slog.Int("output_bytes", len(res.Output)),
		slog.Duration("duration", res.Duration),
	}
	if res.Succeeded {
		logger.Info("script run completed", attrs...)
	} else {
		logger.Warn("script run failed", append(attrs, slog.String("diagnostic", res.Diagnostic))...)
	}
	return res
}

// copyCredentials copies the shared service-account key next to the script.
// A missing source is not worth a note.
func (r *Runner) copyCredentials(dir string) string {
	src := r.opts.SharedCredentialsPath
	if src == "" {
		return ""
	}
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		return "Warning: could not copy credentials: " + err.Error()
	}
	defer in.Close()

	dst := filepath.Join(dir, artifacts.CredentialsFile)
	if abs, err := filepath.Abs(src); err == nil {
		if absDst, err := filepath.Abs(dst); err == nil && abs == absDst {
			return ""
		}
	}
	outFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "Warning: could not copy credentials: " + err.Error()
	}
	if _, err := io.Copy(outFile, in); err != nil {
		_ = outFile.Close()
		return "Warning: could not copy credentials: " + err.Error()
	}
	if err := outFile.Close(); err != nil {
		return "Warning: could not copy credentials: " + err.Error()
	}
	return "Credentials copied to pipeline directory"
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// boundedBuffer collects up to max bytes. Past the limit it discards input
// and calls onOverflow once.
type boundedBuffer struct {
	mu         sync.Mutex
	sb         strings.Builder
	max        int
	overflow   bool
	onOverflow func()
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.overflow {
		return len(p), nil
	}
	room := b.max - b.sb.Len()
	if len(p) > room {
		b.sb.Write(p[:max(room, 0)])
		b.overflow = true
		if b.onOverflow != nil {
			b.onOverflow()
		}
		return len(p), nil
	}
	b.sb.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

// Overflowed reports whether the limit was hit.
func (b *boundedBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}
