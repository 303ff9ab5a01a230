package service

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxLoginAttempts is the number of consecutive failures that locks the
	// credential.
	MaxLoginAttempts = 5
	// LockoutWindow is how long a lock lasts once MaxLoginAttempts is reached.
	LockoutWindow = 15 * time.Minute
	// SessionTTL is the lifetime of an issued session.
	SessionTTL = 7 * 24 * time.Hour
	// DefaultReapInterval is how often expired sessions are purged.
	DefaultReapInterval = time.Hour
)

var (
	ErrNotBootstrapped     = errors.New("admin credential has not been set up")
	ErrAlreadyBootstrapped = errors.New("admin credential is already set up")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account is locked")
	ErrSamePassword        = errors.New("new password must be different from the current password")
	ErrAuthRequired        = errors.New("authentication required")
	ErrSessionNotFound     = errors.New("session not found or expired")
)

// ValidationError reports malformed input such as a missing field or a
// mismatched confirmation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CredentialsError is returned for a wrong password while the credential is
// not locked. Attempts is the failure count after this attempt.
type CredentialsError struct {
	Attempts  int
	Remaining int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempts remaining", e.Remaining)
}

func (e *CredentialsError) Is(target error) bool { return target == ErrInvalidCredentials }

// LockedError is returned while the credential is locked.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// RemainingAttempts is how many more failures are allowed after attempts
// consecutive failures have been recorded.
func RemainingAttempts(attempts int) int {
	return max(0, MaxLoginAttempts-attempts)
}
