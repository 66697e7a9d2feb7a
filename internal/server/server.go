// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the "composition root": the one place where the dependency
// chain is assembled —
//
//	config → sqlite.DB → services → handlers → routes
//
// Each layer only receives what it needs: services get repository
// interfaces (not *sqlite.DB), handlers get services, routes get
// handlers. main.go stays minimal: load config, call New, call Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/dead-poets-society/internal/auth"
	"github.com/sakif/dead-poets-society/internal/config"
	"github.com/sakif/dead-poets-society/internal/handler"
	"github.com/sakif/dead-poets-society/internal/middleware"
	sqliteRepo "github.com/sakif/dead-poets-society/internal/repository/sqlite"
	"github.com/sakif/dead-poets-society/internal/service"
)

// Server owns the router and the database connection. The connection is
// closed during graceful shutdown in Start.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server with its full dependency graph wired.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenServiceWithLifetime(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes(tokens)

	return s, nil
}

// Handler exposes the router, mainly so tests can drive the full stack
// through httptest without opening a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and all route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /identities                        → register            (public)
//	POST   /identities/session                → login, issue token  (public)
//	GET    /identities/me                     → caller's profile
//	GET    /identities/{id}                   → a user's profile
//	GET    /poems                             → all poems, newest first
//	GET    /poems/mine                        → caller's poems
//	GET    /poems/by/{userId}                 → one user's poems
//	POST   /poems                             → create poem
//	PUT    /poems/{id}                        → edit poem (owner)
//	DELETE /poems/{id}                        → delete poem (owner)
//	POST   /poems/{id}/likes                  → toggle like
//	POST   /poems/{id}/comments               → add comment
//	DELETE /poems/{id}/comments/{commentId}   → delete comment (author or poem owner)
//
// Everything except register/login sits behind RequireAuth — that group
// boundary is the single place authentication is enforced.
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID) // adds X-Request-ID for tracing
	s.router.Use(chimiddleware.RealIP)    // extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // recovers from panics, returns 500
	s.router.Use(middleware.Logger(s.logger))

	passwords := auth.NewPasswordService()
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	poemService := service.NewPoemService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	poemHandler := handler.NewPoemHandler(poemService, s.logger)

	// Public routes — no token needed to create an account or log in.
	s.router.Post("/identities", authHandler.HandleRegister)
	s.router.Post("/identities/session", authHandler.HandleLogin)

	// Protected routes.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/identities/me", authHandler.HandleMe)
		r.Get("/identities/{id}", authHandler.HandleGetUser)

		r.Get("/poems", poemHandler.HandleList)
		r.Get("/poems/mine", poemHandler.HandleListMine)
		r.Get("/poems/by/{userId}", poemHandler.HandleListByUser)
		r.Post("/poems", poemHandler.HandleCreate)
		r.Put("/poems/{id}", poemHandler.HandleUpdate)
		r.Delete("/poems/{id}", poemHandler.HandleDelete)
		r.Post("/poems/{id}/likes", poemHandler.HandleToggleLike)
		r.Post("/poems/{id}/comments", poemHandler.HandleAddComment)
		r.Delete("/poems/{id}/comments/{commentId}", poemHandler.HandleDeleteComment)
	})
}

// Start runs the HTTP server and handles graceful shutdown.
//
// On SIGINT/SIGTERM:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database (flushes the WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
