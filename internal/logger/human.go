package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// HumanHandlerOptions configures the human-readable log handler.
type HumanHandlerOptions struct {
	Level     slog.Level
	UseColors bool
}

// HumanHandler is a slog handler that prints one short line per record:
// time, level marker, message and up to maxInlineAttrs attributes.
type HumanHandler struct {
	opts   HumanHandlerOptions
	writer io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	group  string
}

const maxInlineAttrs = 6

// NewHumanHandler creates a new human-readable log handler.
func NewHumanHandler(w io.Writer, opts *HumanHandlerOptions) *HumanHandler {
	if opts == nil {
		opts = &HumanHandlerOptions{Level: slog.LevelInfo}
	}
	return &HumanHandler{opts: *opts, writer: w, mu: &sync.Mutex{}}
}

// Enabled reports whether the level is at or above the configured minimum.
func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// Handle writes a record.
func (h *HumanHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("15:04:05"))
	sb.WriteByte(' ')
	sb.WriteString(h.prefix(r.Level, r.Message))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	parts := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		parts = append(parts, h.formatAttr(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, h.formatAttr(a))
		return true
	})
	if len(parts) > 0 {
		n := len(parts)
		if n > maxInlineAttrs {
			n = maxInlineAttrs
		}
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(parts[:n], " "))
		if len(parts) > maxInlineAttrs {
			fmt.Fprintf(&sb, " (+%d more)", len(parts)-maxInlineAttrs)
		}
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

// WithAttrs returns a new handler with the given attributes added.
func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup returns a new handler that prefixes later attribute keys.
func (h *HumanHandler) WithGroup(name string) slog.Handler {
	next := *h
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return &next
}

func (h *HumanHandler) prefix(level slog.Level, message string) string {
	const (
		reset  = "\033[0m"
		red    = "\033[31m"
		yellow = "\033[33m"
		green  = "\033[32m"
		cyan   = "\033[36m"
	)
	msg := strings.ToLower(message)
	success := strings.Contains(msg, "completed") || strings.Contains(msg, "succeeded")

	var prefix, color string
	switch {
	case level >= slog.LevelError:
		prefix, color = "✗", red
	case level >= slog.LevelWarn:
		prefix, color = "⚠", yellow
	case level >= slog.LevelInfo && success:
		prefix, color = "✓", green
	case level >= slog.LevelInfo:
		prefix, color = "ℹ", cyan
	default:
		prefix, color = "·", reset
	}
	if h.opts.UseColors {
		return color + prefix + reset
	}
	return prefix
}

func (h *HumanHandler) formatAttr(a slog.Attr) string {
	switch v := a.Value.Any().(type) {
	case time.Duration:
		return fmt.Sprintf("%s=%s", a.Key, FormatDuration(v))
	case float64:
		return fmt.Sprintf("%s=%.2f", a.Key, v)
	default:
		return fmt.Sprintf("%s=%v", a.Key, v)
	}
}

// FormatDuration formats a duration for people.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}
