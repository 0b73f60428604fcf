// NeuroScanX - AI health triage server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/neuroscanx/internal/api"
	"github.com/ashureev/neuroscanx/internal/auth"
	"github.com/ashureev/neuroscanx/internal/config"
	"github.com/ashureev/neuroscanx/internal/gemini"
	"github.com/ashureev/neuroscanx/internal/identity"
	"github.com/ashureev/neuroscanx/internal/middleware"
	"github.com/ashureev/neuroscanx/internal/report"
	"github.com/ashureev/neuroscanx/internal/session"
	"github.com/ashureev/neuroscanx/internal/speech"
	"github.com/ashureev/neuroscanx/internal/store"
	"github.com/ashureev/neuroscanx/internal/triage"
	"github.com/ashureev/neuroscanx/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"auth_mode", cfg.AuthMode,
		"model", cfg.Gemini.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Model client.
	engine, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			slog.Error("Failed to close Gemini client", "error", closeErr)
		}
	}()
	analyzer := triage.NewAnalyzer(engine, cfg.AnalysisTimeout, logger)

	// Authentication.
	var authenticator auth.Authenticator = auth.Stub{}
	var db api.Pinger
	if cfg.AuthMode == config.AuthModeAccounts {
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()

		if err := repo.Ping(ctx); err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Database connected", "path", cfg.DBPath)

		authenticator = auth.NewAccounts(repo)
		db = repo
	}

	// Sessions and speech streams.
	sessions := session.NewRegistry(authenticator)
	streams := speech.NewManager()
	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	sessions.StartSweeper(ctx, cfg.SweepInterval, cfg.SessionTTL, streams.Close)

	// Initialize handlers.
	handler := api.NewHandler(sessions, analyzer, report.NewPDFRenderer(cfg.PDFFontPaths), streams, limiter, cfg)
	healthHandler := api.NewHealthHandler(db, sessions, engine.Model())
	speechHandler := speech.NewHandler(sessions, streams, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	handler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/speech", speechHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Analyses can outlast any fixed write deadline when ANALYSIS_TIMEOUT is 0.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
