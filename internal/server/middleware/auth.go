package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/faucetdb/warden/internal/model"
	"github.com/faucetdb/warden/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
	// SessionTokenKey is the context key for the raw session token.
	SessionTokenKey contextKeyAuth = "session_token"
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "sessionToken"

// authRequiredMessage is returned for every missing, unknown, or expired token
// so a client cannot tell them apart.
const authRequiredMessage = "Authentication required"

// SessionLookup resolves a raw session token.
type SessionLookup interface {
	Lookup(ctx context.Context, token string) (*model.ActiveSession, error)
}

// Authenticate returns an HTTP middleware that requires a valid session. The
// token is read from the Authorization header as a Bearer token, or failing
// that from the session cookie.
//
// On success the principal and the raw token are attached to the request
// context. A missing or invalid token yields 401; a storage failure yields 500.
func Authenticate(sessions SessionLookup, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cookieName)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, authRequiredMessage)
				return
			}

			sess, err := sessions.Lookup(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrSessionNotFound) {
					writeAuthError(w, http.StatusUnauthorized, authRequiredMessage)
					return
				}
				logger.Error("session lookup failed",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				writeAuthError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			principal := sess.Principal()
			setLoggedUser(r.Context(), principal.Username)

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			ctx = context.WithValue(ctx, SessionTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the session token, preferring the Authorization
// header over the cookie. Returns "" if neither is present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if token := strings.TrimSpace(authHeader[7:]); token != "" {
				return token
			}
		}
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*model.Principal); ok {
		return p
	}
	return nil
}

// GetSessionToken returns the raw token the request authenticated with.
func GetSessionToken(ctx context.Context) string {
	if t, ok := ctx.Value(SessionTokenKey).(string); ok {
		return t
	}
	return ""
}

// writeAuthError writes the standard error envelope. The handler package
// owns the shared writer, but it imports this package, so the envelope is
// built here directly.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
