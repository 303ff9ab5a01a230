package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/warden/internal/model"
)

// CredentialID is the primary key of the one admin credential row. The
// table's CHECK constraint rejects any other id, so a second insert always
// collides.
const CredentialID int64 = 1

const credentialColumns = `id, username, password_hash, salt, login_attempts,
	locked_until, last_login_at, password_changed_at, created_at, updated_at`

// credentialRow maps 1:1 to the admin_credentials table. Timestamps are Unix
// milliseconds; nullable ones are pointers.
type credentialRow struct {
	ID                int64  `db:"id"`
	Username          string `db:"username"`
	PasswordHash      string `db:"password_hash"`
	Salt              string `db:"salt"`
	LoginAttempts     int    `db:"login_attempts"`
	LockedUntil       *int64 `db:"locked_until"`
	LastLoginAt       *int64 `db:"last_login_at"`
	PasswordChangedAt *int64 `db:"password_changed_at"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

func credentialRowFromModel(c *model.AdminCredential) credentialRow {
	return credentialRow{
		ID:                c.ID,
		Username:          c.Username,
		PasswordHash:      c.PasswordHash,
		Salt:              c.Salt,
		LoginAttempts:     c.LoginAttempts,
		LockedUntil:       nullableMillis(c.LockedUntil),
		LastLoginAt:       nullableMillis(c.LastLoginAt),
		PasswordChangedAt: nullableMillis(c.PasswordChangedAt),
		CreatedAt:         toMillis(c.CreatedAt),
		UpdatedAt:         toMillis(c.UpdatedAt),
	}
}

func (r credentialRow) toModel() *model.AdminCredential {
	return &model.AdminCredential{
		ID:                r.ID,
		Username:          r.Username,
		PasswordHash:      r.PasswordHash,
		Salt:              r.Salt,
		LoginAttempts:     r.LoginAttempts,
		LockedUntil:       nullableTime(r.LockedUntil),
		LastLoginAt:       nullableTime(r.LastLoginAt),
		PasswordChangedAt: nullableTime(r.PasswordChangedAt),
		CreatedAt:         fromMillis(r.CreatedAt),
		UpdatedAt:         fromMillis(r.UpdatedAt),
	}
}

// CreateCredential inserts the admin credential. It returns ErrConflict if
// one already exists; the check and the insert are the same statement.
// c.ID is set to CredentialID.
func (s *Store) CreateCredential(ctx context.Context, c *model.AdminCredential) error {
	c.ID = CredentialID
	row := credentialRowFromModel(c)

	const q = `INSERT INTO admin_credentials
		(id, username, password_hash, salt, login_attempts, locked_until, last_login_at,
		 password_changed_at, created_at, updated_at)
		VALUES
		(:id, :username, :password_hash, :salt, :login_attempts, :locked_until, :last_login_at,
		 :password_changed_at, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetCredential returns the admin credential, or ErrNotFound before bootstrap.
func (s *Store) GetCredential(ctx context.Context) (*model.AdminCredential, error) {
	return s.getCredential(ctx, s.db)
}

func (s *Store) getCredential(ctx context.Context, q sqlx.QueryerContext) (*model.AdminCredential, error) {
	var row credentialRow
	err := sqlx.GetContext(ctx, q, &row,
		s.rebind("SELECT "+credentialColumns+" FROM admin_credentials WHERE id = ?"), CredentialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return row.toModel(), nil
}

// HasCredential reports whether the admin credential has been bootstrapped.
func (s *Store) HasCredential(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admin_credentials"); err != nil {
		return false, fmt.Errorf("count credentials: %w", err)
	}
	return count > 0, nil
}

// RecordFailedLogin increments login_attempts and, when the incremented
// value reaches threshold, locks the credential until lockUntil. The
// increment and the lock decision are one UPDATE, so concurrent failures
// never lose a count. A lock that is still in force at now is left as is.
// The returned credential reflects the post-increment row.
func (s *Store) RecordFailedLogin(ctx context.Context, id int64, now time.Time, threshold int, lockUntil time.Time) (*model.AdminCredential, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// locked_until is assigned first: MySQL evaluates SET left to right, so
	// this keeps the CASE reading the pre-increment counter on every engine.
	const q = `UPDATE admin_credentials SET
		locked_until = CASE
			WHEN login_attempts + 1 >= ? AND (locked_until IS NULL OR locked_until <= ?) THEN ?
			ELSE locked_until
		END,
		login_attempts = login_attempts + 1,
		updated_at = ?
		WHERE id = ?`

	nowMs := toMillis(now)
	result, err := tx.ExecContext(ctx, s.rebind(q), threshold, nowMs, toMillis(lockUntil), nowMs, id)
	if err != nil {
		return nil, fmt.Errorf("record failed login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("record failed login rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	cred, err := s.getCredential(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed login: %w", err)
	}
	return cred, nil
}

// RecordSuccessfulLogin clears the failure counter and any lock and sets
// last_login_at.
func (s *Store) RecordSuccessfulLogin(ctx context.Context, id int64, now time.Time) error {
	nowMs := toMillis(now)
	return s.execOne(ctx, "record successful login",
		`UPDATE admin_credentials SET
			login_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ?
			WHERE id = ?`, nowMs, nowMs, id)
}

// UpdatePassword replaces the password hash and salt. Lockout columns are
// not touched.
func (s *Store) UpdatePassword(ctx context.Context, id int64, passwordHash, salt string, now time.Time) error {
	nowMs := toMillis(now)
	return s.execOne(ctx, "update password",
		`UPDATE admin_credentials SET
			password_hash = ?, salt = ?, password_changed_at = ?, updated_at = ?
			WHERE id = ?`, passwordHash, salt, nowMs, nowMs, id)
}

// ClearLockout resets the failure counter and removes any lock without
// recording a login.
func (s *Store) ClearLockout(ctx context.Context, id int64, now time.Time) error {
	return s.execOne(ctx, "clear lockout",
		`UPDATE admin_credentials SET
			login_attempts = 0, locked_until = NULL, updated_at = ?
			WHERE id = ?`, toMillis(now), id)
}

// execOne runs an UPDATE that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, op, q string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
