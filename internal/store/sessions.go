package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/faucetdb/warden/internal/model"
)

type sessionRow struct {
	TokenHash string `db:"token_hash"`
	UserID    int64  `db:"user_id"`
	ExpiresAt int64  `db:"expires_at"`
	IPAddress string `db:"ip_address"`
	UserAgent string `db:"user_agent"`
	CreatedAt int64  `db:"created_at"`
}

// activeSessionRow is a session joined with its owning credential.
type activeSessionRow struct {
	sessionRow
	Username    string `db:"username"`
	LastLoginAt *int64 `db:"last_login_at"`
}

func (r activeSessionRow) toModel() *model.ActiveSession {
	return &model.ActiveSession{
		Session: model.Session{
			TokenHash: r.TokenHash,
			UserID:    r.UserID,
			ExpiresAt: fromMillis(r.ExpiresAt),
			IPAddress: r.IPAddress,
			UserAgent: r.UserAgent,
			CreatedAt: fromMillis(r.CreatedAt),
		},
		Username:     r.Username,
		IsFirstLogin: r.LastLoginAt == nil,
	}
}

// CreateSession persists a session keyed by its token hash. The raw token
// is never written.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	row := sessionRow{
		TokenHash: sess.TokenHash,
		UserID:    sess.UserID,
		ExpiresAt: toMillis(sess.ExpiresAt),
		IPAddress: sess.IPAddress,
		UserAgent: sess.UserAgent,
		CreatedAt: toMillis(sess.CreatedAt),
	}

	const q = `INSERT INTO sessions (token_hash, user_id, expires_at, ip_address, user_agent, created_at)
		VALUES (:token_hash, :user_id, :expires_at, :ip_address, :user_agent, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetActiveSession returns the session with the given token hash if it
// expires strictly after now. Expired and unknown tokens both yield
// ErrNotFound.
func (s *Store) GetActiveSession(ctx context.Context, tokenHash string, now time.Time) (*model.ActiveSession, error) {
	const q = `SELECT s.token_hash, s.user_id, s.expires_at, s.ip_address, s.user_agent, s.created_at,
			c.username, c.last_login_at
		FROM sessions s
		JOIN admin_credentials c ON c.id = s.user_id
		WHERE s.token_hash = ? AND s.expires_at > ?`

	var row activeSessionRow
	if err := s.db.GetContext(ctx, &row, s.rebind(q), tokenHash, toMillis(now)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return row.toModel(), nil
}

// DeleteSession removes the session with the given token hash. Deleting an
// unknown session is not an error.
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM sessions WHERE token_hash = ?"), tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session whose expiry is at or before
// now and returns how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM sessions WHERE expires_at <= ?"), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// DeleteAllSessions removes every session regardless of expiry.
func (s *Store) DeleteAllSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions")
	if err != nil {
		return 0, fmt.Errorf("delete all sessions: %w", err)
	}
	return result.RowsAffected()
}

// CountActiveSessions returns the number of sessions still valid at now.
func (s *Store) CountActiveSessions(ctx context.Context, now time.Time) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.rebind("SELECT COUNT(*) FROM sessions WHERE expires_at > ?"), toMillis(now)); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}
