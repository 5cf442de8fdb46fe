package main

import (
	"alcyxob/workout-sync/internal/api"
	"alcyxob/workout-sync/internal/config"
	"alcyxob/workout-sync/internal/reconcile"
	"alcyxob/workout-sync/internal/repository"
	"alcyxob/workout-sync/internal/repository/mongo"
	"alcyxob/workout-sync/internal/repository/sqlite"
	"alcyxob/workout-sync/internal/service"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// @title Workout Sync API
// @version 1.0
// @description API for editing workouts, their exercises and sets.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting.")
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connection ---
	repos, closeDB, err := openRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	// --- Initialize Services ---
	authService := service.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.Expiration)
	workoutService := service.NewWorkoutService(repos, reconcile.New(repos, logger), logger)

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))
	api.SetupRoutes(router, logger, authService, workoutService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Serve until a signal arrives, then shut down gracefully ---
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "address", cfg.Server.Address, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// openRepositories connects the configured driver and returns its repositories
// with a func releasing the connection.
func openRepositories(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (repository.Repositories, func(), error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := mongo.ConnectDB(cfg.URI)
		if err != nil {
			return repository.Repositories{}, nil, fmt.Errorf("could not connect to MongoDB: %w", err)
		}
		db := client.Database(cfg.Name)

		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		mongo.EnsureIndexes(indexCtx, db, logger)
		cancel()

		logger.Info("Database connection established.", "driver", cfg.Driver, "database", cfg.Name)
		return mongo.NewRepositories(client, db, cfg.Transactions), func() {
			logger.Info("Disconnecting MongoDB...")
			if err := mongo.DisconnectDB(client); err != nil {
				logger.Error("failed to disconnect MongoDB", "error", err)
			}
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return repository.Repositories{}, nil, fmt.Errorf("could not open SQLite database: %w", err)
		}
		logger.Info("Database connection established.", "driver", cfg.Driver, "path", cfg.Path)
		return store.Repositories(), func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close SQLite database", "error", err)
			}
		}, nil
	}
	return repository.Repositories{}, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
