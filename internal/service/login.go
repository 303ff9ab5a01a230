package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/faucetdb/warden/internal/model"
	"github.com/faucetdb/warden/internal/password"
)

// ClientInfo describes the caller that a session is issued to.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginFlow drives first-time setup, login, password change, and logout on
// top of the credential and session services.
type LoginFlow struct {
	creds    *Credentials
	sessions *Sessions
	ttl      time.Duration
	logger   *slog.Logger
}

// NewLoginFlow wires a login flow. Sessions live for SessionTTL.
func NewLoginFlow(creds *Credentials, sessions *Sessions, logger *slog.Logger) *LoginFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginFlow{creds: creds, sessions: sessions, ttl: SessionTTL, logger: logger}
}

// Credentials exposes the underlying credential service.
func (f *LoginFlow) Credentials() *Credentials { return f.creds }

// Sessions exposes the underlying session service.
func (f *LoginFlow) Sessions() *Sessions { return f.sessions }

// IsFirstLogin reports whether the admin credential still needs to be set up.
func (f *LoginFlow) IsFirstLogin(ctx context.Context) (bool, error) {
	ok, err := f.creds.Bootstrapped(ctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Setup creates the credential and opens the first session.
func (f *LoginFlow) Setup(ctx context.Context, pw, confirm string, client ClientInfo) (*model.Session, error) {
	if err := ValidateNewPassword(pw, confirm); err != nil {
		return nil, err
	}

	cred, err := f.creds.Bootstrap(ctx, pw)
	if err != nil {
		return nil, err
	}
	return f.sessions.Create(ctx, cred.ID, f.ttl, client.IP, client.UserAgent)
}

// Login verifies pw and opens a session.
func (f *LoginFlow) Login(ctx context.Context, pw string, client ClientInfo) (*model.Session, error) {
	if pw == "" {
		return nil, &ValidationError{Message: "password is required"}
	}

	cred, err := f.creds.Verify(ctx, pw)
	if err != nil {
		return nil, err
	}

	sess, err := f.sessions.Create(ctx, cred.ID, f.ttl, client.IP, client.UserAgent)
	if err != nil {
		return nil, err
	}
	f.logger.Info("admin logged in", "username", cred.Username, "ip", client.IP)
	return sess, nil
}

// ChangePassword rotates the password. Existing sessions stay valid.
func (f *LoginFlow) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if current == "" || next == "" || confirm == "" {
		return &ValidationError{Message: "current password, new password, and confirmation are required"}
	}
	if next != confirm {
		return &ValidationError{Message: "passwords do not match"}
	}
	return f.creds.Rotate(ctx, current, next)
}

// Logout ends the session for token.
func (f *LoginFlow) Logout(ctx context.Context, token string) error {
	return f.sessions.Delete(ctx, token)
}

// ValidateNewPassword checks a password and its confirmation before it is
// stored: both present, equal, and compliant with the password policy.
func ValidateNewPassword(pw, confirm string) error {
	if pw == "" || confirm == "" {
		return &ValidationError{Message: "password and confirmation are required"}
	}
	if pw != confirm {
		return &ValidationError{Message: "passwords do not match"}
	}
	return password.Validate(pw)
}
