// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/compassioncourse/ccms-go/internal/auth"
	"github.com/compassioncourse/ccms-go/internal/config"
	"github.com/compassioncourse/ccms-go/internal/handler"
	"github.com/compassioncourse/ccms-go/internal/logging"
	"github.com/compassioncourse/ccms-go/internal/middleware"
	"github.com/compassioncourse/ccms-go/internal/scheduler"
	"github.com/compassioncourse/ccms-go/internal/service"
	"github.com/compassioncourse/ccms-go/internal/store"
	"github.com/compassioncourse/ccms-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const (
	readHeaderTimeout = 10 * time.Second
	requestTimeout    = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
		fmt.Println("ccms " + info.String())
		return
	}

	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Re-wire the default logger through the event log now that the
	// database is up: WARN and above also land in the events table.
	logger = slog.New(logging.NewEventLogHandler(logger.Handler(), db))
	slog.SetDefault(logger)

	if cfg.DoSeed {
		if err := store.Seed(context.Background(), db); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	events := service.NewEventService(db)
	users := service.NewUserService(db, events)
	content := service.NewContentService(db, events)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret)

	router := buildRouter(cfg, db, tokens, users, content, events)

	sched := scheduler.New(db, logger, cfg.EventRetentionDays)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "env", cfg.Env, "version", appVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter assembles the middleware stack and all routes.
func buildRouter(cfg *config.Config, db *sql.DB, tokens *auth.TokenIssuer,
	users *service.UserService, content *service.ContentService, events *service.EventService) chi.Router {
	authHandler := handler.NewAuthHandler(users, tokens, events, !cfg.IsDevelopment())
	contentHandler := handler.NewContentHandler(content)
	adminContent := handler.NewAdminContentHandler(content)
	adminUsers := handler.NewAdminUserHandler(users, content)
	health := handler.NewHealthHandler(db, appVersion)

	requireAuth := middleware.RequireAuth(tokens, db)
	optionalAuth := middleware.OptionalAuth(tokens, db)
	loginLimiter := middleware.NewLoginRateLimiter()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	r.Get("/health", health.Health)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(loginLimiter.Middleware())
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(optionalAuth)
				r.Post("/logout", authHandler.Logout)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.Me)
				r.Put("/me", authHandler.UpdateMe)
				r.Put("/password", authHandler.ChangePassword)
				r.Post("/refresh", authHandler.Refresh)
			})
		})

		r.Route("/content", func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", contentHandler.List)
			r.Get("/section/{section}", contentHandler.BySection)
			r.Get("/key/{key}", contentHandler.ByKey)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireAdmin())

			r.Get("/stats", adminUsers.Stats)

			r.Route("/content", func(r chi.Router) {
				r.Get("/", adminContent.List)
				r.Post("/", adminContent.Create)
				r.Get("/{id}", adminContent.Get)
				r.Put("/{id}", adminContent.Update)
				r.Delete("/{id}", adminContent.Delete)
				r.Get("/{id}/history", adminContent.History)
				r.Post("/{id}/restore/{index}", adminContent.Restore)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", adminUsers.List)
				r.Get("/{id}", adminUsers.Get)
				r.Put("/{id}/toggle-status", adminUsers.ToggleStatus)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireSuperAdmin())
					r.Put("/{id}/role", adminUsers.ChangeRole)
				})
			})
		})
	})

	return r
}

// parseLogLevel maps the configured level name to a slog level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
