package helper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

// PrettyHandlerOptions wraps the standard slog handler options for the
// human-readable console handler used outside of production JSON logging.
type PrettyHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

// PrettyHandler renders log records as a single colored line per record,
// suitable for local development and the service's console output.
type PrettyHandler struct {
	slog.Handler
	l    *log_std
	mu   *sync.Mutex
	w    io.Writer
	opts PrettyHandlerOptions
}

// log_std avoids importing the standard "log" package under its own name
// so PrettyHandler keeps a tiny, dependency-free writer beneath slog.Handler.
type log_std struct {
	out io.Writer
	mu  *sync.Mutex
}

func (l *log_std) Println(v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, v...)
}

// NewPrettyHandler builds a PrettyHandler writing to w.
func NewPrettyHandler(w io.Writer, opts PrettyHandlerOptions) *PrettyHandler {
	mu := &sync.Mutex{}
	h := &PrettyHandler{
		Handler: slog.NewJSONHandler(w, &opts.SlogOpts),
		l:       &log_std{out: w, mu: mu},
		mu:      mu,
		w:       w,
		opts:    opts,
	}
	return h
}

// Handle formats one record as "[HH:MM:SS.mmm] LEVEL: message {attrs-json}".
func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	fields := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("pretty handler: marshal attrs: %w", err)
	}

	timeStr := r.Time.Format("[15:04:05.000]")
	msg := color.CyanString(r.Message)

	h.l.Println(timeStr, level, msg, string(b))
	return nil
}

// WithAttrs satisfies slog.Handler by delegating to the embedded handler.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PrettyHandler{
		Handler: h.Handler.WithAttrs(attrs),
		l:       h.l,
		mu:      h.mu,
		w:       h.w,
		opts:    h.opts,
	}
}

// WithGroup satisfies slog.Handler by delegating to the embedded handler.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return &PrettyHandler{
		Handler: h.Handler.WithGroup(name),
		l:       h.l,
		mu:      h.mu,
		w:       h.w,
		opts:    h.opts,
	}
}

// NewPrettyLogger is a convenience wrapper returning a ready-to-use *slog.Logger.
func NewPrettyLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewPrettyHandler(w, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
	}))
}
