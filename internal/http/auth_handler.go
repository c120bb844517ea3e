package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/microwave-booking/internal/application"
	"github.com/example/microwave-booking/internal/metrics"
)

const sessionCookieName = "session_token"

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	RevokeSession(ctx context.Context, token string) error
}

// AuthHandler serves login and logout requests.
type AuthHandler struct {
	service   authService
	responder *responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:   service,
		responder: newResponder(logger),
		logger:    defaultLogger(logger),
	}
}

func (h *AuthHandler) log(ctx context.Context, operation string) *slog.Logger {
	return handlerLogger(ctx, h.logger, "auth", operation)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      userDTO `json:"user"`
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(w, http.StatusBadRequest, "invalid_request", "The request body could not be parsed.", nil)
		return
	}

	result, err := h.service.Authenticate(r.Context(), application.AuthenticateParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		metrics.IncLogin(metrics.ResultError)
		h.responder.handleServiceError(w, err)
		return
	}

	metrics.IncLogin(metrics.ResultSuccess)
	h.log(r.Context(), "login").Info("user signed in", slog.String("user_id", result.User.ID))

	setSessionCookie(w, result.Session.Token, result.Session.ExpiresAt)
	w.Header().Set("X-Session-Token", result.Session.Token)
	h.responder.writeJSON(w, http.StatusCreated, loginResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt.Format(time.RFC3339Nano),
		User:      toUserDTO(result.User),
	})
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := extractTokenFromRequest(r)
	if err := h.service.RevokeSession(r.Context(), token); err != nil {
		h.responder.handleServiceError(w, err)
		return
	}

	h.log(r.Context(), "logout").Info("user signed out")

	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// extractTokenFromRequest reads the session token from the Authorization
// header, the X-Session-Token header, or the session cookie, in that order.
func extractTokenFromRequest(r *http.Request) string {
	if authorization := r.Header.Get("Authorization"); authorization != "" {
		if token, found := strings.CutPrefix(authorization, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	if token := r.Header.Get("X-Session-Token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
