package render

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

var loggerCtxKey = ctxKey{}

// WithLogger returns a context carrying the logger Render reports failures
// to.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

func loggerFrom(ctx context.Context) *zap.Logger {
	logger, ok := ctx.Value(loggerCtxKey).(*zap.Logger)
	if !ok || logger == nil {
		return zap.NewNop()
	}
	return logger
}
