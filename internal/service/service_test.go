package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/filecoin-project/go-clock"
	"github.com/stretchr/testify/require"

	"github.com/faucetdb/warden/internal/password"
	"github.com/faucetdb/warden/internal/store"
)

const testPassword = "Abcdef1!"

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *store.Store
	clock    *clock.Mock
	creds    *Credentials
	sessions *Sessions
	flow     *LoginFlow
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewStore("") // in-memory
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := clock.NewMock()
	mock.Set(testStart)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := NewCredentials(st,
		WithHasher(password.NewHasher(1000)),
		WithClock(mock),
		WithLogger(logger),
	)
	sessions := NewSessions(st, mock, logger)

	return &testEnv{
		store:    st,
		clock:    mock,
		creds:    creds,
		sessions: sessions,
		flow:     NewLoginFlow(creds, sessions, logger),
	}
}

// bootstrap creates the credential with testPassword.
func (e *testEnv) bootstrap(t *testing.T) {
	t.Helper()
	_, err := e.creds.Bootstrap(context.Background(), testPassword)
	require.NoError(t, err)
}
