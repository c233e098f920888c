// Readiness - AI knowledge assessment engine server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/praxislabs/readiness/internal/agent"
	"github.com/praxislabs/readiness/internal/api"
	"github.com/praxislabs/readiness/internal/config"
	"github.com/praxislabs/readiness/internal/identity"
	"github.com/praxislabs/readiness/internal/middleware"
	"github.com/praxislabs/readiness/internal/project"
	"github.com/praxislabs/readiness/internal/session"
	"github.com/praxislabs/readiness/internal/store"
)

// assessmentKind identifies the one assessment this deployment serves.
const assessmentKind = "ai-knowledge"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
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

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Remote multi-agent analysis service client.
	analyzer := agent.NewClient(agent.ClientConfig{
		BaseURL:        cfg.Analysis.BaseURL,
		RequestTimeout: cfg.Analysis.RequestTimeout,
	}, logger)
	defer analyzer.Close()
	slog.Info("Analysis service client initialized", "base_url", cfg.Analysis.BaseURL)

	// Project integration is best-effort and optional.
	var integrator project.Integrator = project.Noop{}
	if cfg.Project.BaseURL != "" {
		integrator = project.NewHTTPAdapter(cfg.Project.BaseURL, cfg.Project.RequestTimeout, logger)
		slog.Info("Project integration enabled", "base_url", cfg.Project.BaseURL)
	} else {
		slog.Info("Project integration disabled (PROJECT_SERVICE_URL not set)")
	}

	// Session controllers and their event stream.
	sessions := session.NewManager(assessmentKind, session.Deps{
		Analyzer:      analyzer,
		Repo:          repo,
		Projects:      integrator,
		Events:        session.NewBroadcaster(),
		AutosaveDelay: cfg.AutosaveDelay,
		Logger:        logger,
	})

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions, cfg.FrontendURL)
	assessmentHandler := api.NewAssessmentHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := api.NewWebSocketHandler(repo, sessions, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	assessmentHandler.RegisterRoutes(r)

	// WebSocket endpoint for live session events.
	r.Get("/ws/assessment", wsHandler.ServeHTTP)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartCleanupWorker(ctx, repo, cfg.SessionTTL)
	slog.Info("Session cleanup worker started", "session_ttl", cfg.SessionTTL)

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

	// Persist any session state still waiting on a coalesced write.
	sessions.FlushAll(shutdownCtx)

	slog.Info("Server stopped successfully")
}
