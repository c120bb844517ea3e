package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func handlerLogger(ctx context.Context, logger *slog.Logger, handler, operation string) *slog.Logger {
	base := LoggerFromContext(ctx)
	if base == nil {
		base = defaultLogger(logger)
	}
	return base.With(
		slog.String("handler", handler),
		slog.String("operation", operation),
	)
}
