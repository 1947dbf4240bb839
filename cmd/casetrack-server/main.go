package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/casetrack/casetrack/internal/config"
	"github.com/casetrack/casetrack/internal/domain/batch"
	"github.com/casetrack/casetrack/internal/domain/event"
	"github.com/casetrack/casetrack/internal/domain/handover"
	"github.com/casetrack/casetrack/internal/domain/request"
	"github.com/casetrack/casetrack/internal/domain/sequence"
	"github.com/casetrack/casetrack/internal/platform/auth"
	"github.com/casetrack/casetrack/internal/platform/db"
	"github.com/casetrack/casetrack/internal/platform/middleware"
	"github.com/casetrack/casetrack/internal/platform/notification"
	"github.com/casetrack/casetrack/internal/platform/refdata"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "casetrack-server",
		Short: "Case note custody tracking API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
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

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
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

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a forward migration instead.")
			return nil
		},
	})

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

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// Access log middleware
	e.Use(middleware.AccessLog(logger))

	// Shared platform pieces
	runner := db.NewTxRunner(pool)
	refs := refdata.NewCheckerPG(pool)
	alloc := sequence.NewAllocatorPG(pool)

	registry := event.NewRegistry()
	recorder := event.NewRecorder(event.NewRepoPG(pool), registry)

	// Notification pipeline. Outbound messages go to the log until a real
	// gateway is configured.
	templates := notification.NewTemplateEngine()
	manager := notification.NewManager(
		notification.NewLogEmailSender(logger),
		notification.NewLogSMSSender(logger),
		templates,
	)
	directory := notification.NewMemoryDirectory()
	dispatcher := notification.NewDispatcher(manager, directory, logger)

	// Domain services
	requestRepo := request.NewRepoPG(pool)
	requestSvc := request.NewService(runner, requestRepo, recorder, alloc, refs)
	requestSvc.SetNumberPrefixes(cfg.RequestNumberPrefix, cfg.FilingNumberPrefix)
	requestSvc.SetNotifier(dispatcher)

	handoverRepo := handover.NewRepoPG(pool)
	handoverSvc := handover.NewService(runner, handoverRepo, requestRepo, recorder, refs)
	handoverSvc.SetNotifier(dispatcher)

	batchSvc := batch.NewService(runner, batch.NewRepoPG(pool), requestSvc, alloc, refs)
	batchSvc.SetNumberPrefix(cfg.BatchNumberPrefix)

	// Handover SLA sweeper
	sweeper := handover.NewSweeper(
		handoverRepo,
		time.Duration(cfg.HandoverSLAHours)*time.Hour,
		time.Duration(cfg.SweepIntervalMinutes)*time.Minute,
		dispatcher,
		logger,
	)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Routes
	apiV1 := e.Group("/api/v1")
	request.NewHandler(requestSvc).RegisterRoutes(apiV1)
	handover.NewHandler(handoverSvc).RegisterRoutes(apiV1)
	batch.NewHandler(batchSvc).RegisterRoutes(apiV1)
	event.NewHandler(recorder).RegisterRoutes(apiV1)
	notification.NewHandler(manager).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
