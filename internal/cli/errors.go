package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/config"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/validation"
)

// PrintParseErrors prints parse errors with their location.
func (p *Printer) PrintParseErrors(errs []config.ParseError) {
	fmt.Fprintln(p.Err, "✗ Parse errors:")
	for _, err := range errs {
		if loc := formatErrorLocation(err.Path, err.Line, err.Column); loc != "" {
			fmt.Fprintf(p.Err, "  %s: %s\n", loc, err.Message)
		} else {
			fmt.Fprintf(p.Err, "  %s\n", err.Message)
		}
		if p.Opts.Verbose && err.Type != "" {
			fmt.Fprintf(p.Err, "    Type: %s\n", err.Type)
		}
	}
}

// formatErrorLocation formats path:line:column.
func formatErrorLocation(path string, line, column int) string {
	if path == "" {
		return ""
	}
	location := path
	if line > 0 {
		location += fmt.Sprintf(":%d", line)
		if column > 0 {
			location += fmt.Sprintf(":%d", column)
		}
	}
	return location
}

// PrintValidationErrors prints schema violations.
func (p *Printer) PrintValidationErrors(errs []config.ValidationError) {
	fmt.Fprintln(p.Err, "✗ Validation errors:")
	for _, err := range errs {
		path := err.Path
		if path == "" {
			path = "/"
		}
		if p.Opts.Verbose {
			fmt.Fprintf(p.Err, "  %s:\n", path)
			fmt.Fprintf(p.Err, "    Message: %s\n", err.Message)
			if err.Type != "" {
				fmt.Fprintf(p.Err, "    Type: %s\n", err.Type)
			}
			continue
		}
		msg := err.Message
		if len(msg) > 80 {
			msg = msg[:77] + "..."
		}
		fmt.Fprintf(p.Err, "  %s: %s\n", path, msg)
	}
	p.hint()
}

// PrintStepErrors prints step configuration failures, one per step.
func (p *Printer) PrintStepErrors(err error) {
	fmt.Fprintln(p.Err, "✗ Step configuration errors:")
	var joined interface{ Unwrap() []error }
	var se *validation.StepError
	switch {
	case errors.As(err, &joined):
		for _, e := range joined.Unwrap() {
			fmt.Fprintf(p.Err, "  %s\n", e)
		}
	case errors.As(err, &se):
		fmt.Fprintf(p.Err, "  %s\n", se)
	default:
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(p.Err, "  %s\n", line)
		}
	}
	p.hint()
}

// Errorf prints an error line.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintf(p.Err, "✗ "+format+"\n", args...)
}

func (p *Printer) hint() {
	if !p.Opts.Quiet && !p.Opts.Verbose {
		fmt.Fprintln(p.Err, "")
		fmt.Fprintln(p.Err, "Hint: Use --verbose for detailed error information")
	}
}
