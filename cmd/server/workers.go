package main

import (
	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/internal/infra/jobs"
	"github.com/buildledger/api/pkg/logger"
)

// Workers holds the background job worker and the maintenance
// scheduler. Both are nil when the worker is disabled.
type Workers struct {
	JobWorker *jobs.Worker
	Scheduler *jobs.Scheduler
}

// NewWorkers initializes the asynq worker and the cron scheduler.
// The worker handles email delivery plus the invitation cleanup and
// overdue invoice sweeps; the scheduler only enqueues.
func NewWorkers(cfg *config.Config, jobClient *jobs.Client, svc *Services, log *logger.Logger) (*Workers, error) {
	w := &Workers{}

	if !cfg.Worker.Enabled {
		log.Info("background worker disabled")
		return w, nil
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
	}, svc.Email, log, jobs.WithMaintenance(svc.Tenant, svc.Invoice))
	if err != nil {
		return nil, err
	}
	w.JobWorker = worker

	scheduler, err := jobs.NewScheduler(jobs.SchedulerConfig{
		CleanupSchedule: cfg.Worker.CleanupSchedule,
		OverdueSchedule: cfg.Worker.OverdueSchedule,
	}, jobClient, log)
	if err != nil {
		return nil, err
	}
	w.Scheduler = scheduler

	log.Info("background worker initialized",
		"concurrency", cfg.Worker.Concurrency,
		"cleanup_schedule", cfg.Worker.CleanupSchedule,
		"overdue_schedule", cfg.Worker.OverdueSchedule,
	)
	return w, nil
}

// Start starts the worker and scheduler. Safe to call when disabled.
func (w *Workers) Start(log *logger.Logger) error {
	if w.JobWorker != nil {
		if err := w.JobWorker.Start(); err != nil {
			return err
		}
		log.Info("job worker started")
	}
	if w.Scheduler != nil {
		if err := w.Scheduler.Start(); err != nil {
			return err
		}
		log.Info("scheduler started")
	}
	return nil
}

// Stop stops the scheduler first so nothing new is enqueued while the
// worker drains in-flight tasks.
func (w *Workers) Stop(log *logger.Logger) {
	if w.Scheduler != nil {
		w.Scheduler.Stop()
		log.Info("scheduler stopped")
	}
	if w.JobWorker != nil {
		w.JobWorker.Stop()
		log.Info("job worker stopped")
	}
}
