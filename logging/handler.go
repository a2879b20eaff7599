// Package logging installs the process-wide slog handler: tint-colored
// output with the originating module spliced into the message as a
// "[module]" prefix, so the narrated bridge text and the ingest chatter
// stay tellable apart in one terminal.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type modulePrefixHandler struct {
	handler slog.Handler
	module  string
}

func (h *modulePrefixHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *modulePrefixHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	module := h.module
	kept := make([]slog.Attr, 0, len(attrs))

	for _, attr := range attrs {
		if attr.Key == "module" {
			module = attr.Value.String()
			continue
		}
		kept = append(kept, attr)
	}

	return &modulePrefixHandler{
		handler: h.handler.WithAttrs(kept),
		module:  module,
	}
}

func (h *modulePrefixHandler) WithGroup(name string) slog.Handler {
	return &modulePrefixHandler{
		handler: h.handler.WithGroup(name),
		module:  h.module,
	}
}

func (h *modulePrefixHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.module == "" {
		return h.handler.Handle(ctx, r)
	}
	prefixed := slog.NewRecord(r.Time, r.Level, "["+h.module+"] "+r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		prefixed.AddAttrs(a)
		return true
	})
	return h.handler.Handle(ctx, prefixed)
}

// levelFromEnv maps BROVAKT_LOG_LEVEL to a slog level, defaulting to Info.
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("BROVAKT_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	// Installed at init, so it is in place before main runs; main pulls
	// this package in with a blank import for that reason.
	handler := &modulePrefixHandler{
		handler: tint.NewHandler(os.Stderr, &tint.Options{
			Level:      levelFromEnv(),
			TimeFormat: time.Kitchen,
		}),
	}
	slog.SetDefault(slog.New(handler))
}
