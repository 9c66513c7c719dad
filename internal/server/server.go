// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: New is the composition root where the
// database, token service, services and handlers are created and connected.
//
//	config.Config → sqlite.DB + RevocationList → services → handlers → routes
//
// Each layer only receives what it needs. Services get repository
// interfaces (all implemented by *sqlite.DB); handlers get services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/forum/internal/auth"
	"github.com/sakif/forum/internal/config"
	"github.com/sakif/forum/internal/handler"
	"github.com/sakif/forum/internal/middleware"
	sqliteRepo "github.com/sakif/forum/internal/repository/sqlite"
	"github.com/sakif/forum/internal/service"
)

// Options tweak New for tests. The zero value is production behaviour.
type Options struct {
	// PasswordCost overrides the bcrypt cost; 0 keeps the default.
	PasswordCost int
	// GitHub replaces the real GitHub provider when sign-in is enabled.
	GitHub handler.OAuthProvider
}

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and, when REDIS_URL is set, the
// Redis client. Both are closed by Close, which Start calls on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *auth.RedisRevocationList // nil when revocations are in memory

	auth       *service.AuthService
	users      *service.UserService
	categories *service.CategoryService
	topics     *service.TopicService
	replies    *service.ReplyService
	github     handler.OAuthProvider // nil when GitHub sign-in is off
}

// New creates a Server with the given config.
//
// WIRING ORDER:
//  1. Open the database (migrations run here)
//  2. Pick the revocation list: Redis when configured, memory otherwise
//  3. Create the token, password and domain services
//  4. Create the handlers and register routes
func New(cfg config.Config, logger *slog.Logger, opts Options) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	var revocations auth.RevocationList = auth.NewMemoryRevocationList()
	if cfg.RedisURL != "" {
		s.redis, err = auth.NewRedisRevocationList(cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		revocations = s.redis
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, revocations)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	if opts.PasswordCost > 0 {
		passwords = auth.NewPasswordServiceWithCost(opts.PasswordCost)
	}

	s.auth = service.NewAuthService(db, tokens, passwords, service.AuthConfig{
		TokenTTL:       cfg.TokenTTL,
		AdminUsernames: cfg.AdminUsernames,
	}, logger)
	s.users = service.NewUserService(db, logger)
	s.categories = service.NewCategoryService(db, db, db, logger)
	s.topics = service.NewTopicService(db, db, db, db, logger)
	s.replies = service.NewReplyService(db, db, db, db, db, logger)

	if cfg.GitHubEnabled() {
		s.github = opts.GitHub
		if s.github == nil {
			s.github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
		}
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID gives each request an id (read by the logger)
//  2. RealIP extracts the client IP from proxy headers
//  3. Logger logs each request with timing info
//  4. Recoverer turns panics into 500s
//
// Per-route auth: RequireAuth rejects anonymous callers with 401;
// OptionalAuth attaches the user if a valid token is present. Admin and
// owner checks happen in the services.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	requireAuth := auth.RequireAuth(s.auth)
	optionalAuth := auth.OptionalAuth(s.auth)

	users := handler.NewUserHandler(s.auth, s.users, s.logger)
	categories := handler.NewCategoryHandler(s.categories, s.logger)
	topics := handler.NewTopicHandler(s.topics, s.logger)
	replies := handler.NewReplyHandler(s.replies, s.logger)

	checks := map[string]handler.Pinger{"database": s.db}
	if s.redis != nil {
		checks["redis"] = s.redis
	}
	r.Get("/healthz", handler.NewHealthHandler(checks, s.logger).HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", users.HandleRegister)
			r.Post("/login", users.HandleLogin)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/logout", users.HandleLogout)
				r.Get("/me", users.HandleMe)
				r.Get("/", users.HandleList)
				r.Get("/{id}", users.HandleGet)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.With(optionalAuth).Get("/", categories.HandleList)
			r.With(optionalAuth).Get("/{id}", categories.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", categories.HandleCreate)
				r.Patch("/{id}", categories.HandleRename)
				r.Delete("/{id}", categories.HandleDelete)
				r.Post("/{id}/lock", categories.HandleToggleLock)
				r.Post("/{id}/privacy", categories.HandleTogglePrivacy)
				r.Get("/{id}/access", categories.HandleListAccess)
				r.Put("/{id}/access/{userID}", categories.HandleGrantAccess)
				r.Delete("/{id}/access/{userID}", categories.HandleRevokeAccess)
			})
		})

		r.Route("/topics", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", topics.HandleList)
			r.Post("/", topics.HandleCreate)
			r.Get("/count", topics.HandleCount)
			r.Get("/{id}", topics.HandleGet)
			r.Patch("/{id}", topics.HandleRename)
			r.Delete("/{id}", topics.HandleDelete)
			r.Post("/{id}/lock", topics.HandleToggleLock)
			r.Put("/{id}/best-reply", topics.HandleBestReply)
			r.Post("/{id}/replies", replies.HandleCreate)
		})

		r.Route("/replies", func(r chi.Router) {
			r.With(optionalAuth).Get("/", replies.HandleList)
			r.With(optionalAuth).Get("/{id}", replies.HandleGet)
			r.With(optionalAuth).Get("/{id}/score", replies.HandleScore)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Patch("/{id}", replies.HandleEdit)
				r.Delete("/{id}", replies.HandleDelete)
				r.Post("/{id}/vote", replies.HandleVote)
			})
		})
	})

	// GitHub sign-in is registered only when client credentials are set.
	if s.github != nil {
		gh := handler.NewGitHubHandler(s.github, s.auth, s.logger)
		r.Get("/auth/github/login", gh.HandleLogin)
		r.Get("/auth/github/callback", gh.HandleCallback)
	}
}

// Close releases the database and the Redis client.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections on SIGINT/SIGTERM
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database and Redis client
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("redisRevocations", s.redis != nil),
			slog.Bool("githubLogin", s.github != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
