package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ngsanogo/keneyapp/internal/api"
	"github.com/ngsanogo/keneyapp/internal/config"
	"github.com/ngsanogo/keneyapp/internal/core"
	"github.com/ngsanogo/keneyapp/internal/domain/subscription"
	"github.com/ngsanogo/keneyapp/internal/platform/db"
	"github.com/ngsanogo/keneyapp/internal/platform/delivery"
	"github.com/ngsanogo/keneyapp/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "keneyapp-server",
		Short: "FHIR R4 interoperability server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Subscription and attempt storage: PostgreSQL when configured,
	// in-memory otherwise (development only, enforced by Validate).
	ctx := context.Background()
	var subRepo subscription.Repository
	var attempts delivery.AttemptStore
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		subRepo = subscription.NewRepoPG(pool)
		attempts = delivery.NewAttemptStorePG(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set; using in-memory storage")
		subRepo = subscription.NewRepoMem()
		attempts = delivery.NewMemAttemptStore()
	}

	// Delivery pipeline. The worker implements the handshake probe the
	// registry needs, and the registry provides the status checks the
	// worker needs; the function adapter breaks the construction cycle.
	var worker *delivery.Worker
	registry := subscription.NewService(subRepo,
		subscription.HandshakerFunc(func(ctx context.Context, ch subscription.Channel) error {
			return worker.Handshake(ctx, ch)
		}),
		logger, cfg.IsProduction(), cfg.HandshakeTimeout())
	worker = delivery.NewWorker(registry, attempts, logger, cfg.WebhookTimeout())
	worker.MaxAttempts = cfg.DeliveryMaxAttempts

	queue := delivery.NewQueue(cfg.DeliveryQueueSize, worker.Run, logger)
	publisher := delivery.NewPublisher(registry, attempts, queue, logger)

	queueCtx, queueCancel := context.WithCancel(ctx)
	defer queueCancel()
	queue.Start(queueCtx)

	// Resource store with the publisher wired as its post-commit hook.
	store := core.NewMemStore()
	store.SetMutationHook(publisher.Publish)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Tenant(cfg.DefaultTenant))
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Health check
	e.GET("/health", db.HealthHandler(pool))

	// FHIR surface
	fhirGroup := e.Group("/fhir")

	subHandler := subscription.NewHandler(registry)
	subHandler.RegisterRoutes(fhirGroup)

	deliveryHandler := delivery.NewHandler(registry, attempts)
	deliveryHandler.RegisterRoutes(fhirGroup)

	apiHandler := api.NewHandler(store, cfg.BaseURL)
	apiHandler.RegisterRoutes(fhirGroup)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	queue.Stop()
	logger.Info().Msg("stopped")
	return nil
}
