package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/faucetdb/warden/internal/password"
	"github.com/faucetdb/warden/internal/server/middleware"
	"github.com/faucetdb/warden/internal/service"
)

// writeServiceError maps an error from the service layer to an HTTP response.
// Unexpected errors are logged in full and reported generically; in dev mode
// the detail is included in the response context.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dev bool, err error) {
	var (
		validationErr  *service.ValidationError
		policyErr      *password.PolicyError
		lockedErr      *service.LockedError
		credentialsErr *service.CredentialsError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Message)

	case errors.As(err, &policyErr):
		writeError(w, http.StatusBadRequest, policyErr.Reason, map[string]interface{}{
			"rule": policyErr.Rule.String(),
		})

	case errors.Is(err, service.ErrSamePassword):
		writeError(w, http.StatusBadRequest, "New password must be different from the current password")

	case errors.As(err, &lockedErr):
		writeError(w, http.StatusLocked, "Account is locked due to too many failed login attempts", map[string]interface{}{
			"lockedUntil": lockedErr.Until.UTC().Format(time.RFC3339),
		})

	case errors.As(err, &credentialsErr):
		writeError(w, http.StatusUnauthorized, "Invalid password", map[string]interface{}{
			"remainingAttempts": credentialsErr.Remaining,
		})

	case errors.Is(err, service.ErrNotBootstrapped):
		writeError(w, http.StatusUnauthorized, "Admin password has not been set up")

	case errors.Is(err, service.ErrAlreadyBootstrapped):
		writeError(w, http.StatusBadRequest, "Admin password is already set up")

	case errors.Is(err, service.ErrAuthRequired), errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "Authentication required")

	default:
		logger.Error("request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		if dev {
			writeError(w, http.StatusInternalServerError, "Internal server error", map[string]interface{}{
				"detail": err.Error(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
