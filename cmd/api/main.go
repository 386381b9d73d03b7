package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/config"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/database"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/logger"
	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 30 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close server resources
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

// connectRedis returns nil when Redis is unreachable, so caching and rate limiting switch off
func connectRedis(cfg config.RedisConfig, log *zap.Logger) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, query cache and rate limiting disabled",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		client.Close()
		return nil
	}

	log.Info("Connected to redis", zap.String("addr", cfg.Addr()))
	return client
}

func main() {
	migrationsDir := flag.String("migrations", "migrations", "directory holding the goose migrations")
	migrationStatus := flag.Bool("migrate-status", false, "print the migration status and exit")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	log.Info("Starting storefront",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize database
	dbService, err := database.New(cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	db := dbService.DB()

	if *migrationStatus {
		if err := database.GetMigrationStatus(db, *migrationsDir); err != nil {
			log.Fatal("Failed to read migration status", zap.Error(err))
		}
		dbService.Close()
		return
	}

	// Check database health
	health := dbService.Health()
	log.Info("Database health check", zap.Any("health", health))

	// Run migrations
	if err := database.RunMigrations(db, *migrationsDir, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations completed successfully")

	deps := server.Dependencies{DB: dbService}
	if client := connectRedis(cfg.Redis, log); client != nil {
		deps.Redis = client
	}

	deps.Media, err = server.NewMediaStore(context.Background(), cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize media store", zap.Error(err))
	}

	// Create server
	srv, err := server.NewServer(cfg, log, deps)
	if err != nil {
		log.Fatal("Failed to build server", zap.Error(err))
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
}
