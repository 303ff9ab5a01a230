package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/warden/internal/handler"
	"github.com/faucetdb/warden/internal/server/middleware"
	"github.com/faucetdb/warden/internal/service"
	"github.com/faucetdb/warden/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes

	CookieName   string
	SecureCookie bool

	LoginRateLimit  int
	LoginRateWindow time.Duration
	APIRateLimit    int // requests per minute

	// Dev includes internal error details in 500 responses.
	Dev     bool
	Version string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20, // 1MB
		CookieName:      middleware.DefaultCookieName,
		LoginRateLimit:  5,
		LoginRateWindow: 15 * time.Minute,
		APIRateLimit:    100,
	}
}

// Server is the top-level HTTP server for Warden. It owns the Chi router, the
// login flow, and the background session reaper.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	flow       *service.LoginFlow
	reaper     *service.Reaper
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
// reaper may be nil, in which case expired sessions are only rejected, never
// purged.
func New(cfg Config, st *store.Store, flow *service.LoginFlow, reaper *service.Reaper, logger *slog.Logger) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = middleware.DefaultCookieName
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		store:  st,
		flow:   flow,
		reaper: reaper,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger, "/healthz", "/readyz"))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	r.Use(chimw.Compress(5))

	// --- Probes and API description (no auth required) ---
	sysHandler := handler.NewSystemHandler(s.store, s.logger)
	r.Get("/healthz", sysHandler.Health)
	r.Get("/readyz", sysHandler.Ready)
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.cfg.CookieName, s.cfg.Version).ServeSpec)

	// --- API routes ---
	authHandler := handler.NewAuthHandler(s.flow, handler.CookieOptions{
		Name:   s.cfg.CookieName,
		Secure: s.cfg.SecureCookie,
	}, s.cfg.Dev, s.logger)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.APIRateLimit > 0 {
			r.Use(middleware.RateLimit(s.cfg.APIRateLimit, time.Minute))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Get("/check-first-login", authHandler.CheckFirstLogin)

			// Credential-bearing endpoints share one per-IP budget.
			r.Group(func(r chi.Router) {
				if s.cfg.LoginRateLimit > 0 {
					r.Use(middleware.LoginRateLimit(s.cfg.LoginRateLimit, s.cfg.LoginRateWindow))
				}
				r.Post("/setup-password", authHandler.SetupPassword)
				r.Post("/login", authHandler.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(s.flow.Sessions(), s.cfg.CookieName, s.logger))
				r.Post("/change-password", authHandler.ChangePassword)
				r.Get("/verify", authHandler.Verify)
				r.Post("/logout", authHandler.Logout)
			})
		})
	})

	s.router = r
}

// ListenAndServe starts the session reaper and the HTTP server, and blocks
// until ctx is done or a SIGINT or SIGTERM is received. It then performs a
// graceful shutdown, draining in-flight requests before stopping the reaper.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like ListenAndServe but accepts connections on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.reaper != nil {
		s.reaper.Start(ctx)
		defer s.reaper.Stop()
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
