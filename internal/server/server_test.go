package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/filecoin-project/go-clock"

	"github.com/faucetdb/warden/internal/model"
	"github.com/faucetdb/warden/internal/password"
	"github.com/faucetdb/warden/internal/service"
	"github.com/faucetdb/warden/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const testPassword = "Abcdef1!"

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server *Server
	store  *store.Store
	clock  *clock.Mock
	flow   *service.LoginFlow
	reaper *service.Reaper
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// fully wired Server. configure, if non-nil, adjusts the default config.
func newTestEnv(t *testing.T, configure func(*Config)) *testEnv {
	t.Helper()

	st, err := store.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("store.NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := service.NewCredentials(st,
		service.WithHasher(password.NewHasher(1000)),
		service.WithClock(mock),
		service.WithLogger(logger),
	)
	sessions := service.NewSessions(st, mock, logger)
	flow := service.NewLoginFlow(creds, sessions, logger)
	reaper := service.NewReaper(sessions, time.Hour, mock, logger)

	cfg := DefaultConfig()
	cfg.Version = "test"
	if configure != nil {
		configure(&cfg)
	}

	return &testEnv{
		server: New(cfg, st, flow, reaper, logger),
		store:  st,
		clock:  mock,
		flow:   flow,
		reaper: reaper,
	}
}

// request executes a request against the server from the given client address.
func (e *testEnv) request(t *testing.T, method, path string, body interface{}, remoteAddr string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	for _, fn := range mutate {
		fn(req)
	}

	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	return e.request(t, method, path, body, "", mutate...)
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(c) }
}

func setupBody(pw string) map[string]string {
	return map[string]string{"password": pw, "confirmPassword": pw}
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Global middleware and probes
// ---------------------------------------------------------------------------

func TestHealthzAndHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "GET", "/healthz", nil)
	assertStatus(t, rr, http.StatusOK)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, nil)

	assertStatus(t, env.do(t, "GET", "/readyz", nil), http.StatusOK)

	env.store.Close()
	assertStatus(t, env.do(t, "GET", "/readyz", nil), http.StatusServiceUnavailable)
}

func TestOpenAPIEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "GET", "/openapi.json", nil)
	assertStatus(t, rr, http.StatusOK)

	var doc map[string]interface{}
	decodeJSON(t, rr, &doc)
	if doc["openapi"] != "3.1.0" {
		t.Errorf("openapi = %v, want 3.1.0", doc["openapi"])
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "OPTIONS", "/api/auth/login", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://console.example.com")
		r.Header.Set("Access-Control-Request-Method", "POST")
	})
	assertStatus(t, rr, http.StatusOK)
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing Access-Control-Allow-Origin on preflight")
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	assertStatus(t, env.do(t, "GET", "/api/auth/nope", nil), http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Auth flow through the full middleware stack
// ---------------------------------------------------------------------------

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	const next = "Zyxwvu9!"

	// First login is required until the password is set.
	rr := env.do(t, "GET", "/api/auth/check-first-login", nil)
	var first model.FirstLoginResponse
	decodeJSON(t, rr, &first)
	if !first.IsFirstLogin {
		t.Fatal("isFirstLogin = false on a fresh store")
	}

	rr = env.do(t, "POST", "/api/auth/setup-password", setupBody(testPassword))
	assertStatus(t, rr, http.StatusOK)
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "sessionToken" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("setup did not set the session cookie")
	}

	// The cookie alone authenticates.
	rr = env.do(t, "GET", "/api/auth/verify", nil, withCookie(cookie))
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "POST", "/api/auth/change-password", map[string]string{
		"currentPassword": testPassword,
		"newPassword":     next,
		"confirmPassword": next,
	}, withCookie(cookie))
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "POST", "/api/auth/login", map[string]string{"password": next})
	assertStatus(t, rr, http.StatusOK)
	var sess model.SessionResponse
	decodeJSON(t, rr, &sess)

	rr = env.do(t, "POST", "/api/auth/logout", nil, withBearer(sess.SessionToken))
	assertStatus(t, rr, http.StatusOK)
	assertStatus(t, env.do(t, "GET", "/api/auth/verify", nil, withBearer(sess.SessionToken)), http.StatusUnauthorized)

	// The setup session was not affected by the other logout.
	assertStatus(t, env.do(t, "GET", "/api/auth/verify", nil, withCookie(cookie)), http.StatusOK)
}

func TestAuthenticatedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, route := range []struct{ method, path string }{
		{"POST", "/api/auth/change-password"},
		{"GET", "/api/auth/verify"},
		{"POST", "/api/auth/logout"},
	} {
		rr := env.do(t, route.method, route.path, nil)
		assertStatus(t, rr, http.StatusUnauthorized)
	}
}

func TestCustomCookieName(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.CookieName = "warden_session" })

	rr := env.do(t, "POST", "/api/auth/setup-password", setupBody(testPassword))
	assertStatus(t, rr, http.StatusOK)
	var sess model.SessionResponse
	decodeJSON(t, rr, &sess)

	cookie := &http.Cookie{Name: "warden_session", Value: sess.SessionToken}
	assertStatus(t, env.do(t, "GET", "/api/auth/verify", nil, withCookie(cookie)), http.StatusOK)

	wrong := &http.Cookie{Name: "sessionToken", Value: sess.SessionToken}
	assertStatus(t, env.do(t, "GET", "/api/auth/verify", nil, withCookie(wrong)), http.StatusUnauthorized)
}

func TestSecureCookieOption(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.SecureCookie = true })

	rr := env.do(t, "POST", "/api/auth/setup-password", setupBody(testPassword))
	assertStatus(t, rr, http.StatusOK)
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].Secure {
		t.Errorf("cookies = %+v, want one Secure cookie", cookies)
	}
}

// ---------------------------------------------------------------------------
// Throttling
// ---------------------------------------------------------------------------

func TestLoginRateLimitSharedAcrossCredentialRoutes(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.LoginRateLimit = 3
		c.LoginRateWindow = time.Minute
	})
	const client = "198.51.100.7:5000"

	rr := env.request(t, "POST", "/api/auth/setup-password", setupBody(testPassword), client)
	assertStatus(t, rr, http.StatusOK)
	assertStatus(t, env.request(t, "POST", "/api/auth/login", map[string]string{"password": "wrong"}, client), http.StatusUnauthorized)
	assertStatus(t, env.request(t, "POST", "/api/auth/login", map[string]string{"password": "wrong"}, client), http.StatusUnauthorized)

	// The budget is exhausted; even the correct password is throttled.
	rr = env.request(t, "POST", "/api/auth/login", map[string]string{"password": testPassword}, client)
	assertStatus(t, rr, http.StatusTooManyRequests)
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error.Code != http.StatusTooManyRequests {
		t.Errorf("error.code = %d, want 429", resp.Error.Code)
	}

	// Other clients and unthrottled routes are unaffected.
	assertStatus(t, env.request(t, "POST", "/api/auth/login", map[string]string{"password": testPassword}, "198.51.100.8:5000"), http.StatusOK)
	assertStatus(t, env.request(t, "GET", "/api/auth/check-first-login", nil, client), http.StatusOK)
}

func TestAPIRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.APIRateLimit = 2 })
	const client = "203.0.113.9:4000"

	assertStatus(t, env.request(t, "GET", "/api/auth/check-first-login", nil, client), http.StatusOK)
	assertStatus(t, env.request(t, "GET", "/api/auth/check-first-login", nil, client), http.StatusOK)
	assertStatus(t, env.request(t, "GET", "/api/auth/check-first-login", nil, client), http.StatusTooManyRequests)

	// Probes sit outside /api.
	assertStatus(t, env.request(t, "GET", "/healthz", nil, client), http.StatusOK)
}

func TestBodySizeLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxBodySize = 64 })

	big := map[string]string{"password": string(bytes.Repeat([]byte("a"), 256))}
	assertStatus(t, env.do(t, "POST", "/api/auth/login", big), http.StatusRequestEntityTooLarge)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestServeShutsDownOnContextCancel(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.ShutdownTimeout = 5 * time.Second })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// The reaper is stopped; a manual sweep still works.
	if _, err := env.reaper.RunOnce(context.Background()); err != nil {
		t.Errorf("RunOnce after shutdown: %v", err)
	}
}
