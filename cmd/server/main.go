/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rental engine server.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve    Run the HTTP API (default when no command is given)
  migrate  Create or update the database schema and exit

STARTUP SEQUENCE (serve):
  1. Load configuration (.env + environment)
  2. Open the store (SQLite or Postgres), migrating the schema
  3. Pick the unit lock (Redis when REDIS_ADDR is set, in-process otherwise)
  4. Wire activity listeners (Prometheus, Kafka when KAFKA_BROKERS is set)
  5. Create API handler, authenticator and router
  6. Start the stats refresher and the server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Stop the refresher, flush the publisher, close the store
  4. Exit

EXAMPLES:
  # Local SQLite with demo scenarios
  DEMO_SCENARIOS=true ./server serve

  # Postgres + Redis + Kafka
  DB_DRIVER=postgres POSTGRES_URL=postgres://... REDIS_ADDR=localhost:6379 \
    KAFKA_BROKERS=localhost:9092 ./server serve

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite, store/postgres: Database implementations
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/warp/rental-engine/api"
	"github.com/warp/rental-engine/booking"
	"github.com/warp/rental-engine/config"
	"github.com/warp/rental-engine/events"
	"github.com/warp/rental-engine/lock"
	"github.com/warp/rental-engine/rental"
	"github.com/warp/rental-engine/store/postgres"
	"github.com/warp/rental-engine/store/sqlite"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rental-engine",
		Short: "Booking, pricing and employee performance API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	rootCmd.AddCommand(
		ServeCmd(),
		MigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ServeCmd runs the HTTP API.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// MigrateCmd creates the schema and exits. Both stores migrate on open.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			log.Printf("Schema is up to date (%s)", cfg.DBDriver)
			return store.Close()
		},
	}
}

type closableStore interface {
	api.Store
	Close() error
}

func openStore(ctx context.Context, cfg config.Config) (closableStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.DBDriver == config.DriverPostgres {
		store, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Unit lock
	var locker booking.Locker = lock.NewKeyed()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		locker = lock.NewRedis(client, "rental:", cfg.LockTTL)
		log.Printf("Using Redis unit locks at %s", cfg.RedisAddr)
	}

	// Activity listeners
	listeners := rental.ActivityListeners{api.ActivityMetrics{}}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		listeners = append(listeners, publisher)
		log.Printf("Publishing activity to Kafka topic %s", cfg.KafkaTopic)
	}

	handler := api.NewHandler(store, api.Config{
		Booking:     cfg.Booking(),
		Performance: cfg.Performance(),
		Locker:      locker,
		Listener:    listeners,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		Auth:            api.NewAuthenticator(api.AuthConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, store),
		CORSOrigins:     cfg.CORSOrigins,
		EnableScenarios: cfg.DemoScenarios,
	})

	refresher := api.NewStatsRefresher(handler, cfg.StatsInterval)
	refresher.Start()
	defer refresher.Stop()

	server := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (%s, %s)", cfg.HTTPAddress, cfg.DBDriver, cfg.Location)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
