// Package cli provides the terminal output of the pipeassist commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/logger"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/validation"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
}

// Printer writes command output. Errors always go to Err, even in quiet mode.
type Printer struct {
	Out  io.Writer
	Err  io.Writer
	Opts OutputOptions
}

// NewPrinter returns a Printer on stdout and stderr.
func NewPrinter(opts OutputOptions) *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr, Opts: opts}
}

// Infof prints a progress line unless quiet.
func (p *Printer) Infof(format string, args ...any) {
	if p.Opts.Quiet {
		return
	}
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// PrintExecution displays the outcome of a run. Logs are shown for failed
// runs and in verbose mode.
func (p *Printer) PrintExecution(exec *connector.Execution) {
	if exec == nil {
		fmt.Fprintln(p.Err, "✗ No execution result available")
		return
	}
	failed := exec.Status == connector.ExecutionFailed
	if failed {
		fmt.Fprintln(p.Err, "✗ Pipeline execution failed")
	} else if !p.Opts.Quiet {
		fmt.Fprintln(p.Out, "✓ Pipeline executed successfully")
	}
	if p.Opts.Quiet && !failed {
		return
	}

	w := p.Out
	if failed {
		w = p.Err
	}
	fmt.Fprintf(w, "  Execution: %s\n", exec.ID)
	fmt.Fprintf(w, "  Strategy: %s\n", exec.Strategy)
	fmt.Fprintf(w, "  Rows processed: %d\n", exec.Metrics.RowsProcessed)
	if exec.Metrics.TransformationsApplied > 0 {
		fmt.Fprintf(w, "  Transformations applied: %d\n", exec.Metrics.TransformationsApplied)
	}
	if exec.Metrics.RowsWritten > 0 {
		fmt.Fprintf(w, "  Rows written: %d\n", exec.Metrics.RowsWritten)
	}
	if p.Opts.Verbose {
		fmt.Fprintf(w, "  Duration: %s\n", logger.FormatDuration(time.Duration(exec.Metrics.DurationMs)*time.Millisecond))
	}
	if failed || p.Opts.Verbose {
		printLogs(w, exec.Logs, p.Opts.Verbose)
	}
}

// printLogs prints the execution log, only the tail unless verbose.
func printLogs(w io.Writer, logs []string, verbose bool) {
	const tail = 10
	if len(logs) == 0 {
		return
	}
	start := 0
	if !verbose && len(logs) > tail {
		start = len(logs) - tail
		fmt.Fprintf(w, "  Logs (last %d of %d, use --verbose for all):\n", tail, len(logs))
	} else {
		fmt.Fprintln(w, "  Logs:")
	}
	for _, line := range logs[start:] {
		for _, l := range strings.Split(line, "\n") {
			fmt.Fprintf(w, "    %s\n", l)
		}
	}
}

// PrintPipelines lists pipelines as a table.
func (p *Printer) PrintPipelines(ps []connector.Pipeline) {
	if len(ps) == 0 {
		p.Infof("No pipelines")
		return
	}
	tw := tabwriter.NewWriter(p.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tTRIGGER\tVERSION\tSTEPS\tUPDATED")
	for _, pl := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			pl.ID, pl.Name, pl.Status, pl.Trigger, pl.Version, len(pl.Steps), pl.UpdatedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

// PrintExecutions lists executions as a table.
func (p *Printer) PrintExecutions(es []connector.Execution) {
	if len(es) == 0 {
		p.Infof("No executions")
		return
	}
	tw := tabwriter.NewWriter(p.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPIPELINE\tSTATUS\tSTRATEGY\tROWS\tSTARTED")
	for _, e := range es {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID, e.PipelineID, e.Status, e.Strategy, e.Metrics.RowsProcessed, e.StartedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

// PrintPipelineSummary prints the shape of a converted definition.
func (p *Printer) PrintPipelineSummary(pl connector.Pipeline) {
	if p.Opts.Quiet {
		return
	}
	fmt.Fprintf(p.Out, "  Pipeline: %s\n", pl.Name)
	fmt.Fprintf(p.Out, "  Trigger: %s\n", pl.Trigger)
	if pl.Schedule != "" {
		fmt.Fprintf(p.Out, "  Schedule: %s\n", pl.Schedule)
	}
	for i, s := range pl.Steps {
		fmt.Fprintf(p.Out, "  Step %d: %s (%s)\n", i+1, s.Name, s.Type)
	}
}

// PrintChecklist prints the advisory checklist.
func (p *Printer) PrintChecklist(r validation.Report) {
	for _, c := range r.Checks {
		if p.Opts.Quiet && c.Status == validation.CheckPass {
			continue
		}
		mark := "✓"
		switch c.Status {
		case validation.CheckWarn:
			mark = "⚠"
		case validation.CheckFail:
			mark = "✗"
		}
		fmt.Fprintf(p.Out, "  %s %s: %s\n", mark, c.Name, c.Message)
		if p.Opts.Verbose && c.Details != "" {
			fmt.Fprintf(p.Out, "      %s\n", c.Details)
		}
	}
	fmt.Fprintln(p.Out, r.Summary)
}
