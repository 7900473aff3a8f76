package logger

import (
	"context"
	"log/slog"
	"os"
)

// New returns a JSON structured logger for the given APP_ENV.
// local and dev log at debug level; everything else at info.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "call-assistant")
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// ForCall narrows a logger to one call. Empty values are omitted.
func ForCall(l *slog.Logger, callID, tenantID string) *slog.Logger {
	if callID != "" {
		l = l.With("call_id", callID)
	}
	if tenantID != "" {
		l = l.With("tenant_id", tenantID)
	}
	return l
}
