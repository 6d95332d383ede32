// Package server assembles the HTTP router and runs it with graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/georgemunganga/sso-users/internal/httpx"
	"github.com/georgemunganga/sso-users/internal/logger"
	"github.com/georgemunganga/sso-users/internal/metrics"
	"github.com/georgemunganga/sso-users/internal/modules/auth"
	"github.com/georgemunganga/sso-users/internal/modules/user"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Users        user.Service
	Auth         auth.Service
	Metrics      *metrics.Metrics
	Log          *zap.Logger
	LoginLimiter func(http.Handler) http.Handler
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP. Only
	// enable it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter wires every route. The user routes are served under /users and,
// for existing clients, under /ssousers.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if d.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(logger.Middleware(log))
	router.Use(recoverer(log))
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware)
		router.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Respond(w, http.StatusNotFound, httpx.ErrorBody{Error: "Not found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Respond(w, http.StatusMethodNotAllowed, httpx.ErrorBody{Error: "Method not allowed"})
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var loginMW []func(http.Handler) http.Handler
	if d.LoginLimiter != nil {
		loginMW = append(loginMW, d.LoginLimiter)
	}
	userHandler := user.NewHandler(d.Users, log)
	authHandler := auth.NewHandler(d.Auth, log, loginMW...)

	for _, prefix := range []string{"/users", "/ssousers"} {
		router.Route(prefix, func(r chi.Router) {
			authHandler.RegisterRoutes(r)
			userHandler.RegisterRoutes(r)
		})
	}
	return router
}

// Server is an http.Server that stops when its context is cancelled.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

func New(addr string, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
