package main

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
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/viper"

	"github.com/siddhartha-04/itcprj/internal/api"
	"github.com/siddhartha-04/itcprj/internal/boards"
	"github.com/siddhartha-04/itcprj/internal/chat"
	"github.com/siddhartha-04/itcprj/internal/config"
	"github.com/siddhartha-04/itcprj/internal/llm"
	"github.com/siddhartha-04/itcprj/internal/mcptools"
	"github.com/siddhartha-04/itcprj/internal/middleware"
	"github.com/siddhartha-04/itcprj/internal/probe"
	"github.com/siddhartha-04/itcprj/internal/socket"
	"github.com/siddhartha-04/itcprj/internal/sprints"
	"github.com/siddhartha-04/itcprj/internal/store"
	"github.com/siddhartha-04/itcprj/web"
)

const idleSweepInterval = 10 * time.Minute

func newCache(cfg *config.Config, client *boards.Client, logger *slog.Logger) *sprints.Cache {
	return sprints.New(client, sprints.Options{
		MaxBuckets:    cfg.Sprints.MaxBuckets,
		FallbackItems: cfg.Sprints.FallbackItems,
		Logger:        logger,
	})
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func runServe(parent context.Context, v *viper.Viper) error {
	cfg, logger, err := loadConfig(v, os.Stdout)
	if err != nil {
		return err
	}
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "project", cfg.Boards.Project)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	client := boards.NewClient(cfg.Boards, logger)
	cache := newCache(cfg, client, logger)

	var (
		recorder chat.Recorder
		db       api.Pinger
	)
	if cfg.Transcript.Enabled {
		repo, err := store.NewSQLite(cfg.Transcript.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			return err
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		slog.Info("Transcript database connected", "path", cfg.Transcript.DBPath)
		recorder, db = repo, repo
		store.StartPruneWorker(ctx, repo, store.PruneInterval, cfg.Transcript.Retention)
	}

	var querier llm.Querier
	if cfg.LLM.Enabled() {
		lc, err := llm.New(cfg.LLM, logger)
		if err != nil {
			slog.Warn("Failed to initialize LLM client, AI fallback disabled", "error", err)
		} else {
			querier = lc
			slog.Info("AI fallback enabled", "model", cfg.LLM.Model)
		}
	} else {
		slog.Info("AI fallback disabled (OPENROUTER_API_KEY not set)")
	}

	engine := chat.NewEngine(chat.Deps{
		Cache:    cache,
		Backend:  client,
		LLM:      querier,
		Recorder: recorder,
		Logger:   logger,
	})
	engine.StartIdleSweeper(ctx, idleSweepInterval, cfg.SessionIdleTimeout)

	if cfg.GRPCHealthAddr != "" {
		hp := probe.New(logger)
		hp.Watch(cache)
		go func() {
			if err := hp.Serve(ctx, cfg.GRPCHealthAddr); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// The first load runs in the background; chats answer "still loading" until it lands.
	go func() {
		_ = cache.Refresh(ctx)
	}()
	sprints.StartRefreshWorker(ctx, cache, cfg.Sprints.RefreshInterval)

	limiter := socket.NewRateLimiter(socket.DefaultMessageLimit, socket.DefaultMessageWindow)
	limiter.StartEviction(ctx)
	sm := socket.NewSessionManager()
	wsHandler := socket.NewHandler(engine, sm, socket.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		OriginPatterns: cfg.OriginHosts(),
		IsDev:          cfg.IsDevelopment(),
		StatusDelay:    cfg.StatusDelay,
		Limiter:        limiter,
	})

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	api.NewHealthHandler(cache, db).RegisterHealth(r)
	api.NewHandler(engine, cache).RegisterRoutes(r)
	r.Get("/ws/chat", wsHandler.ServeHTTP)
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // chat turns may wait on Boards retries
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("Server failed", "error", err)
		return fmt.Errorf("listen: %w", err)
	}
	stop()

	slog.Info("Shutting down gracefully...")
	sm.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}

// runMCP serves the Boards tools on stdio. Logs go to stderr to keep stdout for the protocol.
func runMCP(parent context.Context, v *viper.Viper) error {
	cfg, logger, err := loadConfig(v, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := boards.NewClient(cfg.Boards, logger)
	cache := newCache(cfg, client, logger)
	if err := cache.Refresh(ctx); err != nil {
		slog.Warn("Initial sprint load failed, tools will report no data until the next refresh", "error", err)
	}
	sprints.StartRefreshWorker(ctx, cache, cfg.Sprints.RefreshInterval)

	slog.Info("MCP server starting on stdio", "name", mcptools.ServerName, "version", mcptools.Version)
	return mcptools.Serve(mcptools.New(cache, client))
}
