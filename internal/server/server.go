package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/keygatehq/keygate/internal/config"
	"github.com/keygatehq/keygate/internal/handler"
	"github.com/keygatehq/keygate/internal/server/middleware"
	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/store"
)

// Server is the top-level HTTP server for Keygate. It owns the Chi router,
// the key store, and the services wired over it.
type Server struct {
	cfg        config.ServerConfig
	router     chi.Router
	store      store.Store
	authSvc    *service.AuthService
	keyHandler *handler.KeyHandler
	admHandler *handler.AdminHandler
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg *config.Config, st store.Store, logger *slog.Logger) *Server {
	authSvc := service.NewAuthService(cfg.Auth.AdminSecret, cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry)
	issuer := service.NewIssuer(st, cfg.Issuer.Prefix)
	access := service.NewAccessService(st)
	delivery := service.NewDelivery(st, cfg.Payload.Path, cfg.Payload.Product)
	admin := service.NewAdminService(st)

	s := &Server{
		cfg:        cfg.Server,
		store:      st,
		authSvc:    authSvc,
		keyHandler: handler.NewKeyHandler(access, delivery, cfg.Payload.Product, logger),
		admHandler: handler.NewAdminHandler(issuer, admin, authSvc, logger),
		logger:     logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Admin-Secret"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- Payload delivery (plain text, consumed by the script runtime) ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.RateLimitPerMin))
		r.Get("/payload", s.keyHandler.Payload)
	})

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Public key endpoints, rate limited per IP.
		r.Route("/key", func(r chi.Router) {
			r.Use(middleware.RateLimit(s.cfg.RateLimitPerMin))
			r.Post("/submit", s.keyHandler.Submit)
			r.Post("/verify", s.keyHandler.Verify)
		})

		// Admin endpoints.
		r.Route("/admin", func(r chi.Router) {
			r.Post("/session", s.admHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(s.authSvc))

				r.Post("/keys", s.admHandler.IssueKeys)
				r.Get("/keys", s.admHandler.ListKeys)
				r.Delete("/keys/{token}", s.admHandler.DeleteKey)
				r.Get("/stats", s.admHandler.Stats)
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the key store is
// reachable, or 503 otherwise. The file backend has no liveness notion and
// always reports ok.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	if pinger, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("store ping failed", "error", err)
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close failed", "error", err)
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
