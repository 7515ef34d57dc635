package main

import (
	"context"
	"encoding/json"
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

	"github.com/dawaii/dawaii/internal/config"
	"github.com/dawaii/dawaii/internal/domain/adherence"
	"github.com/dawaii/dawaii/internal/domain/doselog"
	"github.com/dawaii/dawaii/internal/domain/reminder"
	"github.com/dawaii/dawaii/internal/domain/schedule"
	"github.com/dawaii/dawaii/internal/platform/db"
	"github.com/dawaii/dawaii/internal/platform/middleware"
	"github.com/dawaii/dawaii/internal/platform/notification"
	"github.com/dawaii/dawaii/internal/platform/sweep"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dawaii-server",
		Short: "Medication adherence and inventory engine",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and background sweeps",
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

	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [duty]",
		Short: "Run one background sweep immediately and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

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

			eng := buildEngine(pool, cfg, logger)
			scheduler := sweep.NewScheduler(logger)
			if err := eng.registerSweeps(scheduler, cfg); err != nil {
				return err
			}

			summary, err := scheduler.RunNow(args[0])
			if err != nil {
				return fmt.Errorf("%w (registered: %v)", err, scheduler.Names())
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

// engine holds the wired services, handlers, and sweeps. serve and the sweep
// CLI share the same construction path.
type engine struct {
	notifier *notification.Manager

	schedules    *schedule.Service
	doses        *doselog.Service
	adherenceSvc *adherence.Service
	markers      reminder.Repository

	generator    *doselog.Generator
	reconciler   *doselog.Reconciler
	scanner      *reminder.Scanner
	aggregator   *adherence.Aggregator
	stockChecker *adherence.StockChecker
}

func buildEngine(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger) *engine {
	templates := notification.NewTemplateEngine()
	notifier := notification.NewManager(
		notification.NewLogPushSender(logger),
		notification.NewLogSMSSender(logger),
		templates,
		logger,
	)

	schedRepo := schedule.NewRepo(pool)
	schedSvc := schedule.NewService(schedRepo, notifier, logger)

	doseRepo := doselog.NewRepo(pool)
	doseSvc := doselog.NewService(
		doseRepo,
		schedSvc,
		schedSvc,
		notifier,
		time.Duration(cfg.OnTimeToleranceMin)*time.Minute,
		logger,
	)

	adhRepo := adherence.NewRepo(pool)
	adhSvc := adherence.NewService(adhRepo, logger)

	markerRepo := reminder.NewRepo(pool)

	return &engine{
		notifier:     notifier,
		schedules:    schedSvc,
		doses:        doseSvc,
		adherenceSvc: adhSvc,
		markers:      markerRepo,
		generator:    doselog.NewGenerator(doseRepo, schedSvc, cfg.LookaheadDays, logger),
		reconciler:   doselog.NewReconciler(doseRepo, doseSvc, time.Duration(cfg.MissedGraceHours)*time.Hour, logger),
		scanner:      reminder.NewScanner(doseRepo, markerRepo, notifier, time.Duration(cfg.ReminderWindowMin)*time.Minute, logger),
		aggregator:   adherence.NewAggregator(adhSvc, adhRepo, notifier, cfg.AdherencePeriodDays, cfg.AdherenceAlertPct, logger),
		stockChecker: adherence.NewStockChecker(schedSvc, adhRepo, notifier, cfg.LowStockDays, cfg.CriticalStockDays, logger),
	}
}

func (eng *engine) registerSweeps(scheduler *sweep.Scheduler, cfg *config.Config) error {
	duties := []struct {
		name string
		spec string
		fn   sweep.Func
	}{
		{"generate-occurrences", cfg.GenerateCron, eng.generator.Run},
		{"send-reminders", cfg.ReminderCron, eng.scanner.Run},
		{"reconcile-missed", cfg.ReconcileCron, eng.reconciler.Run},
		{"aggregate-adherence", cfg.AdherenceCron, eng.aggregator.Run},
		{"check-stock", cfg.StockCron, eng.stockChecker.Run},
	}
	for _, d := range duties {
		if err := scheduler.Register(d.name, d.spec, d.fn); err != nil {
			return err
		}
	}
	return nil
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

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
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "dawaii",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))
	apiV1.Use(middleware.BodyLimit("1M"))
	apiV1.Use(middleware.ETagMiddleware(middleware.DefaultCacheConfig()))

	eng := buildEngine(pool, cfg, logger)

	schedule.NewHandler(eng.schedules).RegisterRoutes(apiV1)
	doselog.NewHandler(eng.doses).RegisterRoutes(apiV1)
	adherence.NewHandler(eng.adherenceSvc, cfg.AdherencePeriodDays).RegisterRoutes(apiV1)
	reminder.NewHandler(eng.markers).RegisterRoutes(apiV1)
	notification.NewHandler(eng.notifier).RegisterRoutes(apiV1)

	// Background sweeps
	scheduler := sweep.NewScheduler(logger)
	if err := eng.registerSweeps(scheduler, cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to register sweeps")
	}

	// Admin surface for the sweeps: list duties and trigger one out of band.
	adminGroup := apiV1.Group("/admin/sweeps")
	adminGroup.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string][]string{"duties": scheduler.Names()})
	})
	adminGroup.POST("/:name/run", func(c echo.Context) error {
		summary, err := scheduler.RunNow(c.Param("name"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return c.JSON(http.StatusOK, summary)
	})

	scheduler.Start()

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
