package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/filecoin-project/go-clock"

	"github.com/faucetdb/warden/internal/model"
	"github.com/faucetdb/warden/internal/store"
)

// tokenBytes is the entropy of a session token; its hex form is twice as long.
const tokenBytes = 32

// SessionRepository is the storage the session service needs.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetActiveSession(ctx context.Context, tokenHash string, now time.Time) (*model.ActiveSession, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	DeleteAllSessions(ctx context.Context) (int64, error)
	CountActiveSessions(ctx context.Context, now time.Time) (int, error)
}

// Sessions issues and resolves opaque session tokens.
type Sessions struct {
	repo   SessionRepository
	clock  clock.Clock
	logger *slog.Logger
}

// NewSessions returns a session service. A nil clock uses the wall clock.
func NewSessions(repo SessionRepository, clk clock.Clock, logger *slog.Logger) *Sessions {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{repo: repo, clock: clk, logger: logger}
}

// Create issues a session for userID that expires after ttl. The returned
// session is the only place the raw token appears.
func (s *Sessions) Create(ctx context.Context, userID int64, ttl time.Duration, ip, userAgent string) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sess := &model.Session{
		Token:     token,
		TokenHash: hashToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Lookup resolves a raw token to an unexpired session. Unknown, malformed,
// and expired tokens all return ErrSessionNotFound.
func (s *Sessions) Lookup(ctx context.Context, token string) (*model.ActiveSession, error) {
	if !wellFormedToken(token) {
		return nil, ErrSessionNotFound
	}
	sess, err := s.repo.GetActiveSession(ctx, hashToken(token), s.clock.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return sess, nil
}

// Delete removes the session for token. Unknown tokens are ignored.
func (s *Sessions) Delete(ctx context.Context, token string) error {
	if !wellFormedToken(token) {
		return nil
	}
	if err := s.repo.DeleteSession(ctx, hashToken(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ReapExpired deletes every session that has expired.
func (s *Sessions) ReapExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredSessions(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("reap sessions: %w", err)
	}
	return n, nil
}

// RevokeAll deletes every session, expired or not.
func (s *Sessions) RevokeAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAllSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	s.logger.Info("all sessions revoked", "count", n)
	return n, nil
}

// CountActive returns the number of unexpired sessions.
func (s *Sessions) CountActive(ctx context.Context) (int, error) {
	n, err := s.repo.CountActiveSessions(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// hashToken returns the SHA-256 hash of a raw token, hex-encoded.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func wellFormedToken(token string) bool {
	if len(token) != tokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
