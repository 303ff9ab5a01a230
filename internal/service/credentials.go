// Package service implements the admin credential lifecycle: bootstrap,
// verification with lockout, rotation, and the sessions issued on success.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/filecoin-project/go-clock"

	"github.com/faucetdb/warden/internal/model"
	"github.com/faucetdb/warden/internal/password"
	"github.com/faucetdb/warden/internal/store"
)

// CredentialRepository is the storage the credential service needs.
type CredentialRepository interface {
	CreateCredential(ctx context.Context, c *model.AdminCredential) error
	GetCredential(ctx context.Context) (*model.AdminCredential, error)
	RecordFailedLogin(ctx context.Context, id int64, now time.Time, threshold int, lockUntil time.Time) (*model.AdminCredential, error)
	RecordSuccessfulLogin(ctx context.Context, id int64, now time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash, salt string, now time.Time) error
	ClearLockout(ctx context.Context, id int64, now time.Time) error
}

// Credentials owns the single admin credential.
type Credentials struct {
	repo     CredentialRepository
	hasher   *password.Hasher
	clock    clock.Clock
	username string
	logger   *slog.Logger
}

// CredentialsOption configures a Credentials service.
type CredentialsOption func(*Credentials)

// WithHasher overrides the password hasher.
func WithHasher(h *password.Hasher) CredentialsOption {
	return func(c *Credentials) { c.hasher = h }
}

// WithClock overrides the time source.
func WithClock(clk clock.Clock) CredentialsOption {
	return func(c *Credentials) { c.clock = clk }
}

// WithUsername sets the username stored at bootstrap.
func WithUsername(username string) CredentialsOption {
	return func(c *Credentials) {
		if username != "" {
			c.username = username
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CredentialsOption {
	return func(c *Credentials) { c.logger = logger }
}

// NewCredentials returns a credential service backed by repo.
func NewCredentials(repo CredentialRepository, opts ...CredentialsOption) *Credentials {
	c := &Credentials{
		repo:     repo,
		hasher:   password.Default(),
		clock:    clock.New(),
		username: model.DefaultAdminUsername,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Username is the configured admin username.
func (c *Credentials) Username() string { return c.username }

// Bootstrapped reports whether the credential exists.
func (c *Credentials) Bootstrapped(ctx context.Context) (bool, error) {
	_, err := c.repo.GetCredential(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("load credential: %w", err)
	}
}

// Bootstrap creates the credential from pw. The caller is expected to have
// applied the password policy. A second bootstrap fails with
// ErrAlreadyBootstrapped.
func (c *Credentials) Bootstrap(ctx context.Context, pw string) (*model.AdminCredential, error) {
	salt, err := c.hasher.NewSalt()
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	cred := &model.AdminCredential{
		Username:     c.username,
		PasswordHash: c.hasher.Hash(pw, salt),
		Salt:         salt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.repo.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyBootstrapped
		}
		return nil, fmt.Errorf("create credential: %w", err)
	}

	c.logger.Info("admin credential created", "username", cred.Username)
	return cred, nil
}

// Verify checks pw against the stored credential and applies the lockout
// policy. A locked credential is rejected before any hashing. On success the
// failure counter and lock are cleared and the login time recorded.
func (c *Credentials) Verify(ctx context.Context, pw string) (*model.AdminCredential, error) {
	cred, err := c.repo.GetCredential(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotBootstrapped
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}

	now := c.clock.Now()
	if cred.IsLocked(now) {
		return nil, &LockedError{Until: *cred.LockedUntil}
	}

	if !c.hasher.Verify(pw, cred.Salt, cred.PasswordHash) {
		updated, err := c.repo.RecordFailedLogin(ctx, cred.ID, now, MaxLoginAttempts, now.Add(LockoutWindow))
		if err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		remaining := RemainingAttempts(updated.LoginAttempts)
		if updated.IsLocked(now) {
			c.logger.Warn("admin credential locked",
				"attempts", updated.LoginAttempts,
				"locked_until", updated.LockedUntil.Format(time.RFC3339),
			)
		} else {
			c.logger.Info("failed admin login", "attempts", updated.LoginAttempts, "remaining", remaining)
		}
		return nil, &CredentialsError{Attempts: updated.LoginAttempts, Remaining: remaining}
	}

	if err := c.repo.RecordSuccessfulLogin(ctx, cred.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	cred.LoginAttempts = 0
	cred.LockedUntil = nil
	cred.LastLoginAt = &now
	return cred, nil
}

// Rotate replaces the password. The new password must differ from the
// current one and satisfy the policy; the current password is then checked
// through Verify, so a wrong guess counts toward lockout.
func (c *Credentials) Rotate(ctx context.Context, current, next string) error {
	if next == current {
		return ErrSamePassword
	}
	if err := password.Validate(next); err != nil {
		return err
	}

	cred, err := c.Verify(ctx, current)
	if err != nil {
		return err
	}

	salt, err := c.hasher.NewSalt()
	if err != nil {
		return err
	}
	if err := c.repo.UpdatePassword(ctx, cred.ID, c.hasher.Hash(next, salt), salt, c.clock.Now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	c.logger.Info("admin password changed", "username", cred.Username)
	return nil
}

// CredentialStatus is a read-only view of the credential for operators.
type CredentialStatus struct {
	Bootstrapped      bool
	Username          string
	LoginAttempts     int
	Locked            bool
	LockedUntil       *time.Time
	LastLoginAt       *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
}

// Status returns the current credential state without modifying it.
func (c *Credentials) Status(ctx context.Context) (*CredentialStatus, error) {
	cred, err := c.repo.GetCredential(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &CredentialStatus{Username: c.username}, nil
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return &CredentialStatus{
		Bootstrapped:      true,
		Username:          cred.Username,
		LoginAttempts:     cred.LoginAttempts,
		Locked:            cred.IsLocked(c.clock.Now()),
		LockedUntil:       cred.LockedUntil,
		LastLoginAt:       cred.LastLoginAt,
		PasswordChangedAt: cred.PasswordChangedAt,
		CreatedAt:         cred.CreatedAt,
	}, nil
}

// Unlock clears the failure counter and any lock.
func (c *Credentials) Unlock(ctx context.Context) error {
	err := c.repo.ClearLockout(ctx, store.CredentialID, c.clock.Now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotBootstrapped
	}
	if err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	c.logger.Info("admin credential unlocked")
	return nil
}
