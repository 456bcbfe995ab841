package usecase

import (
	"context"
	"log/slog"
	"time"

	"TGEMonitor/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver      ports.Scheduler
	pipeline    *Pipeline
	summaryHour int
	logger      *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring cycles. A negative
// summaryHour disables the daily summary.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, summaryHour int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:      driver,
		pipeline:    pipeline,
		summaryHour: summaryHour,
		logger:      logger.With("component", "scheduler"),
	}
}

// Start registers the pipeline with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) { s.tick(ctx, trigger) })
}

func (s *Scheduler) tick(ctx context.Context, trigger time.Time) {
	if _, err := s.pipeline.RunCycleWithRetry(ctx); err != nil {
		s.logger.Error("cycle abandoned after retries", "error", err)
	}

	if s.summaryHour < 0 || !s.pipeline.SummaryDue(trigger, s.summaryHour) {
		return
	}
	if err := s.pipeline.SendSummary(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("daily summary failed", "error", err)
	}
}

// Stop gracefully tears down the underlying driver, waiting for a running cycle.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

// Run starts the scheduler and blocks until ctx is cancelled. It then stops
// the driver and waits for the in-flight cycle to finish however long it
// takes, logging a warning every warnEvery while it is still running.
func (s *Scheduler) Run(ctx context.Context, warnEvery time.Duration) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.logger.Info("shutdown requested, waiting for running cycle")

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.WithoutCancel(ctx)) }()
	if warnEvery <= 0 {
		return <-stopped
	}

	ticker := time.NewTicker(warnEvery)
	defer ticker.Stop()
	started := time.Now()
	for {
		select {
		case err := <-stopped:
			return err
		case <-ticker.C:
			s.logger.Warn("cycle still running, shutdown waits for it",
				"waited", time.Since(started).Round(time.Second))
		}
	}
}
