package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Attribute keys HostLogHandler looks for.
const (
	RunIDKey = "run_id"
	HostKey  = "host"
)

// HostLogHandler wraps an slog.Handler and additionally appends records that
// carry both a run_id and a host attribute to that host's log file for the
// run. After a fan-out each host's story can be read on its own.
//
// Attrs added via With() are tracked so the keys are found no matter where
// they were attached.
type HostLogHandler struct {
	slog.Handler
	logPathFunc func(runID, host string) string
	preAttrs    []slog.Attr
}

// NewHostLogHandler wraps h. logPathFunc returns the log file for a host of a run.
func NewHostLogHandler(wrapped slog.Handler, logPathFunc func(runID, host string) string) *HostLogHandler {
	return &HostLogHandler{
		Handler:     wrapped,
		logPathFunc: logPathFunc,
	}
}

// Handle passes the record on, then mirrors it to the host log when both keys are present.
func (h *HostLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}

	var runID, host string
	find := func(a slog.Attr) {
		switch a.Key {
		case RunIDKey:
			runID = a.Value.String()
		case HostKey:
			host = a.Value.String()
		}
	}
	for _, a := range h.preAttrs {
		find(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		find(a)
		return true
	})

	if runID != "" && host != "" {
		h.writeToHostLog(runID, host, r)
	}
	return nil
}

// writeToHostLog opens, appends and closes on every record; a fan-out
// touches few enough hosts that caching handles is not worth it.
func (h *HostLogHandler) writeToHostLog(runID, host string, r slog.Record) {
	logPath := h.logPathFunc(runID, host)
	if logPath == "" {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", r.Time.Format(time.RFC3339), r.Level, r.Message)
	write := func(a slog.Attr) {
		if a.Key == RunIDKey || a.Key == HostKey {
			return
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	for _, a := range h.preAttrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	b.WriteByte('\n')

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		// Package-level slog, not this handler, to avoid recursion.
		slog.Warn("failed to create host log directory", "path", dir, "error", err)
		return
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Warn("failed to open host log file", "path", logPath, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		slog.Warn("failed to write host log file", "path", logPath, "error", err)
	}
}

// WithAttrs returns a new handler with the given attributes.
func (h *HostLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	preAttrs := make([]slog.Attr, len(h.preAttrs), len(h.preAttrs)+len(attrs))
	copy(preAttrs, h.preAttrs)
	preAttrs = append(preAttrs, attrs...)

	return &HostLogHandler{
		Handler:     h.Handler.WithAttrs(attrs),
		logPathFunc: h.logPathFunc,
		preAttrs:    preAttrs,
	}
}

// WithGroup returns a new handler with the given group name. Groups are not
// searched for run_id or host.
func (h *HostLogHandler) WithGroup(name string) slog.Handler {
	return &HostLogHandler{
		Handler:     h.Handler.WithGroup(name),
		logPathFunc: h.logPathFunc,
		preAttrs:    h.preAttrs,
	}
}
