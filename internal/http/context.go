package http

import (
	"context"
	"log/slog"

	"github.com/example/microwave-booking/internal/application"
	"github.com/example/microwave-booking/internal/logging"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	deviceIDContextKey  contextKey = "deviceID"
	userIDContextKey    contextKey = "userID"
)

// ContextWithPrincipal stores the authenticated principal for downstream handlers.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext retrieves the authenticated principal, if present.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithDeviceID stores the device identifier extracted from the request path.
func ContextWithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey, id)
}

// DeviceIDFromContext retrieves the device identifier extracted from the request path.
func DeviceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceIDContextKey).(string)
	return id, ok
}

// ContextWithUserID stores the user identifier extracted from the request path.
func ContextWithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDContextKey, id)
}

// UserIDFromContext retrieves the user identifier extracted from the request path.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}

// ContextWithLogger stores a request-scoped logger on the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext retrieves the request-scoped logger, falling back to the
// process default when none was attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
