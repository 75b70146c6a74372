/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the flag placement scheduler server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load config (YAML, .env, environment)
  2. Build the zap logger
  3. Initialize SQLite store behind the holiday cache
  4. Wire notifier, metrics and the schedule services
  5. Configure HTTP router and start the cron scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (default: flags.yaml, created on first run)
  -port    HTTP server port, overrides config listen address
  -db      SQLite database path, overrides config
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler, waiting for a running job
  4. Drain queued notifications
  5. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/flags.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  FLAG_LISTEN, FLAG_DB_PATH, FLAG_TIMEZONE, FLAG_LOG_LEVEL and FLAG_SMTP_*.
  See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Cron jobs
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/injoimydesign/flag-community/api"
	"github.com/injoimydesign/flag-community/config"
	"github.com/injoimydesign/flag-community/logging"
	"github.com/injoimydesign/flag-community/metrics"
	"github.com/injoimydesign/flag-community/notify"
	"github.com/injoimydesign/flag-community/schedule"
	"github.com/injoimydesign/flag-community/store/cache"
	"github.com/injoimydesign/flag-community/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "flags.yaml", "YAML config path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Listen = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, JSON: cfg.Log.JSON})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	loc := cfg.Location()

	// Initialize store
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	store := cache.New(db, cfg.HolidayCacheTTL)

	// Notifications
	var delivery schedule.Notifier = notify.NewLog(logger)
	if cfg.SMTP.Enabled() {
		delivery = notify.NewEmail(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	notifier := notify.NewAsync(delivery, 256, logger)

	recorder := metrics.New()

	// Services
	planner := schedule.NewPlanner(store, logger)
	planner.Metrics = recorder
	placements := schedule.NewPlacementService(store, notifier, logger)
	placements.Metrics = recorder
	placements.Location = loc
	subscriptions := schedule.NewSubscriptionService(store, placements, planner, logger)
	subscriptions.Location = loc

	handler := api.NewHandler(store, placements, subscriptions, planner, logger)
	handler.Location = loc
	handler.ReminderDaysAhead = cfg.Scheduler.ReminderDaysAhead
	handler.Reset = func(ctx context.Context) error {
		defer store.Invalidate()
		return db.Reset(ctx)
	}

	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     recorder.Handler(),
	})

	scheduler := api.NewPlacementScheduler(planner, placements, logger)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.GenerateSpec = cfg.Scheduler.GenerateCron
	scheduler.ReminderSpec = cfg.Scheduler.ReminderCron
	scheduler.ReminderDaysAhead = cfg.Scheduler.ReminderDaysAhead
	scheduler.Location = loc
	if err := scheduler.Start(); err != nil {
		return err
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("listen", cfg.Listen),
			zap.String("db", cfg.DBPath),
			zap.String("timezone", loc.String()),
			zap.Bool("smtp", cfg.SMTP.Enabled()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			scheduler.Stop()
			return err
		}
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop()
	if err := notifier.Close(ctx); err != nil {
		logger.Warn("notifications not drained", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
