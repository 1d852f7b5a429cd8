// Bot Console - admin web console for the chat bot core.
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

	"github.com/ashureev/bot-console/internal/api"
	"github.com/ashureev/bot-console/internal/config"
	"github.com/ashureev/bot-console/internal/identity"
	"github.com/ashureev/bot-console/internal/liveness"
	"github.com/ashureev/bot-console/internal/proxy"
	"github.com/ashureev/bot-console/internal/store"
	"github.com/ashureev/bot-console/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "bot_core", cfg.BotCore.URL)

	// Initialize dependencies.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	repo, err := store.Open(startupCtx, store.Options{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		AutoMigrate: cfg.Database.AutoMigrate,
	}, logger)
	cancelStartup()
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "driver", cfg.Database.Driver)

	prober := liveness.NewRedisProber(liveness.RedisConfig{
		Addr:     cfg.Heartbeat.Addr,
		DB:       cfg.Heartbeat.DB,
		Password: cfg.Heartbeat.Password,
		Key:      cfg.Heartbeat.Key,
		Timeout:  cfg.Heartbeat.Timeout,
		MaxAge:   cfg.Heartbeat.MaxAge,
	}, logger)
	defer func() {
		if closeErr := prober.Close(); closeErr != nil {
			slog.Error("Failed to close heartbeat client", "error", closeErr)
		}
	}()

	watcher, err := liveness.NewWatcher(prober, cfg.Heartbeat.PollInterval, logger)
	if err != nil {
		slog.Error("Failed to initialize liveness watcher", "error", err)
		os.Exit(1)
	}
	if err := watcher.Start(); err != nil {
		slog.Error("Failed to start liveness watcher", "error", err)
		os.Exit(1)
	}
	slog.Info("Liveness watcher started", "interval", cfg.Heartbeat.PollInterval, "key", cfg.Heartbeat.Key)

	transcript, err := proxy.NewTranscript(proxy.TranscriptConfig{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript", "error", err)
		os.Exit(1)
	}

	botCore, err := proxy.NewClient(proxy.Config{
		URL:              cfg.BotCore.URL,
		Timeout:          cfg.BotCore.Timeout,
		ConnectTimeout:   cfg.BotCore.ConnectTimeout,
		MaxResponseBytes: cfg.BotCore.MaxResponseBytes,
		DefaultSettings:  cfg.BotCore.DefaultSettings,
	}, transcript, logger)
	if err != nil {
		slog.Error("Failed to initialize bot core client", "error", err)
		os.Exit(1)
	}

	checker, err := identity.NewChecker(cfg.Session.AuthMode, cfg.Session.Credentials)
	if err != nil {
		slog.Error("Failed to initialize credential checker", "error", err)
		os.Exit(1)
	}
	sessions, err := identity.NewManager(identity.Options{
		Secret:  []byte(cfg.Session.Secret),
		MaxAge:  cfg.Session.MaxAge,
		Secure:  !cfg.IsDevelopment(),
		Checker: checker,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize session manager", "error", err)
		os.Exit(1)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		slog.Error("Failed to parse templates", "error", err)
		os.Exit(1)
	}

	var limiter *api.RateLimiter
	if cfg.Chat.RateLimit > 0 {
		limiter = api.NewRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateWindow)
		defer limiter.Stop()
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(prober, renderer, logger)
	router := api.NewRouter(api.Routes{
		Identity: sessions.Middleware,
		Pages:    api.NewPageHandler(baseHandler, repo, sessions.Require),
		Chat: api.NewChatHandler(baseHandler, botCore, api.ChatOptions{
			RequireSession: cfg.Chat.RequireSession,
			Limiter:        limiter,
		}),
		Auth:           api.NewAuthHandler(baseHandler, sessions, cfg.Session.AuthMode == config.AuthModePassword),
		Status:         api.NewStatusHandler(baseHandler, watcher, cfg.AllowedOrigins),
		Health:         api.NewHealthHandler(baseHandler, repo, prober, 5*time.Second),
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      true,
	})

	// Create server.
	// WriteTimeout stays off: /chat/ask may legitimately wait BOT_CORE_TIMEOUT and
	// /bot-status/ws is long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	// Closing subscribers first lets status websockets finish before Shutdown waits on them.
	if err := watcher.Stop(); err != nil {
		slog.Error("Failed to stop liveness watcher", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	botCore.Close()
	if err := transcript.Close(); err != nil {
		slog.Error("Failed to flush transcript", "error", err)
	}

	slog.Info("Server stopped successfully")
}
