package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/faucetdb/warden/internal/model"
	"github.com/faucetdb/warden/internal/server/middleware"
	"github.com/faucetdb/warden/internal/service"
)

// CookieOptions controls the session cookie set on setup and login.
type CookieOptions struct {
	Name string
	// Secure forces the Secure attribute even on plain-HTTP requests, for
	// deployments behind a TLS-terminating proxy.
	Secure bool
}

// AuthHandler serves the admin authentication endpoints.
type AuthHandler struct {
	flow   *service.LoginFlow
	cookie CookieOptions
	dev    bool
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. In dev mode internal error
// details are included in responses.
func NewAuthHandler(flow *service.LoginFlow, cookie CookieOptions, dev bool, logger *slog.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = middleware.DefaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{flow: flow, cookie: cookie, dev: dev, logger: logger}
}

type setupRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// CheckFirstLogin reports whether the admin password still needs to be set.
// GET /api/auth/check-first-login
func (h *AuthHandler) CheckFirstLogin(w http.ResponseWriter, r *http.Request) {
	first, err := h.flow.IsFirstLogin(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, h.dev, err)
		return
	}
	writeJSON(w, http.StatusOK, model.FirstLoginResponse{IsFirstLogin: first})
}

// SetupPassword sets the admin password for the first time and opens a session.
// POST /api/auth/setup-password
func (h *AuthHandler) SetupPassword(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	sess, err := h.flow.Setup(r.Context(), req.Password, req.ConfirmPassword, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusOK, model.SessionResponse{
		SessionToken: sess.Token,
		ExpiresAt:    sess.ExpiresAt,
	})
}

// Login verifies the admin password and opens a session.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	sess, err := h.flow.Login(r.Context(), req.Password, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusOK, model.SessionResponse{
		SessionToken: sess.Token,
		ExpiresAt:    sess.ExpiresAt,
	})
}

// ChangePassword rotates the admin password. The caller's session stays valid.
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	if err := h.flow.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeServiceError(w, r, h.logger, h.dev, err)
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{
		Success: true,
		Message: "Password changed successfully",
	})
}

// Verify returns the identity behind the current session.
// GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeServiceError(w, r, h.logger, h.dev, service.ErrAuthRequired)
		return
	}
	writeJSON(w, http.StatusOK, model.VerifyResponse{User: principal})
}

// Logout ends the current session and clears the cookie.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.flow.Logout(r.Context(), middleware.GetSessionToken(r.Context())); err != nil {
		writeServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, model.MessageResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure || r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func clientInfo(r *http.Request) service.ClientInfo {
	return service.ClientInfo{IP: clientIP(r), UserAgent: userAgent(r)}
}
