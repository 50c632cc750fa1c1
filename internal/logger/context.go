package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithRequestID derives a request-scoped logger tagged with id and stores it
// in the context. An empty id leaves base untagged.
func WithRequestID(ctx context.Context, base *zap.Logger, id string) (context.Context, *zap.Logger) {
	l := base
	if id != "" {
		l = base.With(zap.String("request_id", id))
	}
	return ContextWithLogger(ctx, l), l
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
