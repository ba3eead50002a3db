package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/buildledger/api/pkg/logger"
)

// SchedulerConfig holds the cron expressions for the recurring sweeps.
type SchedulerConfig struct {
	// CleanupSchedule purges long-expired invitations.
	CleanupSchedule string
	// OverdueSchedule flips sent invoices past due to overdue.
	OverdueSchedule string
}

// Validate parses both cron expressions so a bad schedule fails at
// startup, not at 3am.
func (c SchedulerConfig) Validate() error {
	if _, err := cron.ParseStandard(c.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", c.CleanupSchedule, err)
	}
	if _, err := cron.ParseStandard(c.OverdueSchedule); err != nil {
		return fmt.Errorf("invalid overdue schedule %q: %w", c.OverdueSchedule, err)
	}
	return nil
}

// Scheduler enqueues the recurring maintenance tasks on their cron
// schedules. The tasks themselves run on the worker, so the scheduler
// stays cheap and a slow sweep cannot delay the next tick.
type Scheduler struct {
	cron   *cron.Cron
	client *Client
	cfg    SchedulerConfig
	logger *logger.Logger
}

// NewScheduler creates a scheduler wired to the job client.
func NewScheduler(cfg SchedulerConfig, client *Client, log *logger.Logger) (*Scheduler, error) {
	if client == nil {
		return nil, errors.New("job client is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Scheduler{
		cron:   cron.New(),
		client: client,
		cfg:    cfg,
		logger: log.With("component", "scheduler"),
	}, nil
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.CleanupSchedule, func() {
		if err := s.client.EnqueueInvitationCleanup(context.Background()); err != nil {
			s.logger.Error("failed to enqueue invitation cleanup", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register cleanup schedule: %w", err)
	}

	_, err = s.cron.AddFunc(s.cfg.OverdueSchedule, func() {
		if err := s.client.EnqueueInvoiceOverdueSweep(context.Background()); err != nil {
			s.logger.Error("failed to enqueue invoice overdue sweep", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register overdue schedule: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"cleanup_schedule", s.cfg.CleanupSchedule,
		"overdue_schedule", s.cfg.OverdueSchedule,
	)
	return nil
}

// Stop stops the cron loop and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
