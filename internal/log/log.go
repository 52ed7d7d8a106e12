// Package log builds the process logger: a text slog handler that
// splits records between stdout and stderr, an extra trace level below
// debug for wire-format noise, and an optional log file fan-out.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug and carries per-packet detail.
const LevelTrace = slog.Level(-8)

// ParseLevel maps a CLI level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// SetupLogger builds the process logger. Records below Error go to
// stdout, Error and above to stderr. When file is non-empty every record
// is also appended there; the returned closers own the opened files.
func SetupLogger(level, file string) (*slog.Logger, []io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	handler := newSplitHandler(os.Stdout, os.Stderr, lvl)

	var closers []io.Closer
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		closers = append(closers, f)
		handler = newMultiHandler(handler, newTextHandler(f, lvl))
	}

	return slog.New(handler), closers, nil
}

// Trace logs msg at LevelTrace.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

func newTextHandler(w io.Writer, min slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       min,
		ReplaceAttr: nameTraceLevel,
	})
}

// nameTraceLevel renders the custom level as TRACE instead of DEBUG-4.
func nameTraceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// splitHandler routes Error and above to one handler and everything
// else to the other.
type splitHandler struct {
	min slog.Level
	out slog.Handler
	err slog.Handler
}

func newSplitHandler(out, errw io.Writer, min slog.Level) slog.Handler {
	return &splitHandler{
		min: min,
		out: newTextHandler(out, min),
		err: newTextHandler(errw, min),
	}
}

func (s *splitHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= s.min
}

func (s *splitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return s.err.Handle(ctx, r)
	}
	return s.out.Handle(ctx, r)
}

func (s *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{min: s.min, out: s.out.WithAttrs(attrs), err: s.err.WithAttrs(attrs)}
}

func (s *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{min: s.min, out: s.out.WithGroup(name), err: s.err.WithGroup(name)}
}

// multiHandler fans every record out to all handlers that accept its
// level.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) slog.Handler {
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
