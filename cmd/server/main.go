// Package main is the entry point for the FormTrack server. It loads
// configuration, establishes database, cache, and object storage
// connections, wires together all modules, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/formtrack/formtrack/internal/app"
	"github.com/formtrack/formtrack/internal/auth"
	"github.com/formtrack/formtrack/internal/config"
	"github.com/formtrack/formtrack/internal/database"
	"github.com/formtrack/formtrack/internal/storage"
)

func main() {
	// Optional .env for local development; environment wins in containers.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", slog.Any("error", err))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting FormTrack",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	// --- Connect to MariaDB ---
	db, err := database.NewMariaDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to MariaDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to MariaDB")

	if err := database.RunMigrations(db, "db/migrations"); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Connect to Redis ---
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	// --- Connect to Object Storage ---
	st, err := storage.NewS3(context.Background(), cfg.Storage)
	if err != nil {
		slog.Error("failed to configure object storage", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("object storage configured", slog.String("bucket", cfg.Storage.Bucket))

	// --- Create Application ---
	application := app.New(cfg, db, rdb, st)
	application.RegisterRoutes(auth.StaticVerifier{Token: cfg.Auth.StaticToken}, nil)

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel),
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel),
		})
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel maps a config log level string to a slog level, defaulting to
// info on unknown values.
func parseLevel(level string) slog.Level {
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
