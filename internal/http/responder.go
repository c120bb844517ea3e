package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/microwave-booking/internal/application"
)

type errorResponse struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) *responder {
	return &responder{logger: defaultLogger(logger)}
}

func (r *responder) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("failed to encode response payload", slog.String("error", err.Error()))
	}
}

func (r *responder) writeError(w http.ResponseWriter, status int, code, message string, fieldErrors map[string]string) {
	r.writeJSON(w, status, errorResponse{
		ErrorCode: code,
		Message:   message,
		Errors:    fieldErrors,
	})
}

// handleServiceError translates service sentinel errors into HTTP responses.
func (r *responder) handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *application.ValidationError
	switch {
	case errors.As(err, &validationErr):
		r.writeError(w, http.StatusUnprocessableEntity, "validation_failed", "The request contains invalid fields.", validationErr.FieldErrors)
	case errors.Is(err, application.ErrUnauthorized):
		r.writeError(w, http.StatusForbidden, "forbidden", "You are not allowed to perform this action.", nil)
	case errors.Is(err, application.ErrNotFound):
		r.writeError(w, http.StatusNotFound, "not_found", "The requested resource was not found.", nil)
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeError(w, http.StatusConflict, "already_exists", "A resource with the same identity already exists.", nil)
	case errors.Is(err, application.ErrConflict):
		r.writeError(w, http.StatusConflict, "conflict", "An active reservation conflicts with this operation.", nil)
	case errors.Is(err, application.ErrInvalidState):
		r.writeError(w, http.StatusConflict, "invalid_state", "The device state does not allow this operation.", nil)
	case errors.Is(err, application.ErrInvalidTransition):
		r.writeError(w, http.StatusConflict, "invalid_transition", "The requested state transition is not allowed.", nil)
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeError(w, http.StatusUnauthorized, "invalid_credentials", "Email address or password is incorrect.", nil)
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeError(w, http.StatusUnauthorized, "account_disabled", "This account has been disabled.", nil)
	case errors.Is(err, application.ErrSessionExpired):
		r.writeError(w, http.StatusUnauthorized, "session_expired", "The session has expired. Please sign in again.", nil)
	case errors.Is(err, application.ErrSessionRevoked):
		r.writeError(w, http.StatusUnauthorized, "session_revoked", "The session has been revoked. Please sign in again.", nil)
	default:
		r.logger.Error("unexpected service error", slog.String("error", err.Error()))
		r.writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred.", nil)
	}
}
