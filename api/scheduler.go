/*
scheduler.go - Automated placement generation and reminders

PURPOSE:
  Runs the planner for every active subscription on a cron schedule and sends
  customer reminders for placements coming up soon.

DESIGN:
  - robfig/cron with SkipIfStillRunning, so a slow run never overlaps itself
  - cron's own log lines go through the zap logger
  - Generation is idempotent; a missed or repeated run is harmless
  - Each job runs with actor "system" and a bounded context

CONFIGURATION:
  - GenerateSpec: cron expression for planning (default: "0 2 * * *")
  - ReminderSpec: cron expression for reminders (default: "0 8 * * *")
  - ReminderDaysAhead: reminder horizon in days (default: 2)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPlacementScheduler(planner, placements, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - schedule/planner.go: GenerateAll
  - schedule/service.go: SendReminders
  - config/config.go: SchedulerConfig
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/injoimydesign/flag-community/schedule"
)

// PlacementScheduler runs placement generation and reminders on cron schedules.
type PlacementScheduler struct {
	Planner    *schedule.Planner
	Placements *schedule.PlacementService
	Logger     *zap.Logger

	GenerateSpec      string
	ReminderSpec      string
	ReminderDaysAhead int
	Location          *time.Location
	JobTimeout        time.Duration
	Enabled           bool

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPlacementScheduler creates a new scheduler with default schedules.
func NewPlacementScheduler(planner *schedule.Planner, placements *schedule.PlacementService, logger *zap.Logger) *PlacementScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlacementScheduler{
		Planner:           planner,
		Placements:        placements,
		Logger:            logger,
		GenerateSpec:      "0 2 * * *",
		ReminderSpec:      "0 8 * * *",
		ReminderDaysAhead: 2,
		JobTimeout:        10 * time.Minute,
		Enabled:           true,
	}
}

// Start registers both jobs and starts the cron runner.
func (ps *PlacementScheduler) Start() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.Logger.Info("scheduler disabled, not starting")
		return nil
	}
	if ps.cron != nil {
		return nil
	}

	loc := ps.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{ps.Logger.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(ps.GenerateSpec, func() { ps.job("generate", ps.runGenerate) }); err != nil {
		return fmt.Errorf("invalid generate schedule %q: %w", ps.GenerateSpec, err)
	}
	if _, err := c.AddFunc(ps.ReminderSpec, func() { ps.job("reminders", ps.runReminders) }); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", ps.ReminderSpec, err)
	}
	c.Start()
	ps.cron = c

	ps.Logger.Info("scheduler started",
		zap.String("generate", ps.GenerateSpec),
		zap.String("reminders", ps.ReminderSpec),
		zap.String("location", loc.String()))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (ps *PlacementScheduler) Stop() {
	ps.mu.Lock()
	c := ps.cron
	ps.cron = nil
	ps.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		ps.Logger.Info("scheduler stopped")
	}
}

// RunResult is what one RunNow pass did.
type RunResult struct {
	Generation    *schedule.GenerationReport
	RemindersSent int
}

// RunNow runs generation then reminders synchronously.
func (ps *PlacementScheduler) RunNow(ctx context.Context) (*RunResult, error) {
	ctx = schedule.WithActor(ctx, schedule.SystemActor)
	report, err := ps.Planner.GenerateAll(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := ps.Placements.SendReminders(ctx, ps.ReminderDaysAhead)
	if err != nil {
		return &RunResult{Generation: report}, err
	}
	return &RunResult{Generation: report, RemindersSent: sent}, nil
}

func (ps *PlacementScheduler) job(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(schedule.WithActor(context.Background(), schedule.SystemActor), ps.JobTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		ps.Logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		return
	}
	ps.Logger.Info("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

func (ps *PlacementScheduler) runGenerate(ctx context.Context) error {
	report, err := ps.Planner.GenerateAll(ctx)
	if err != nil {
		return err
	}
	ps.Logger.Info("placements generated",
		zap.Int("subscriptions", report.Subscriptions),
		zap.Int("created", len(report.Created)),
		zap.Int("existing", report.Existing),
		zap.Int("failures", len(report.Failures)))
	return nil
}

// cronLogger routes robfig/cron's own messages (skips, recovered panics) to zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

func (ps *PlacementScheduler) runReminders(ctx context.Context) error {
	_, err := ps.Placements.SendReminders(ctx, ps.ReminderDaysAhead)
	return err
}
