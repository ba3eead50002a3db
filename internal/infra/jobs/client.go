package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/buildledger/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueInvitationEmail enqueues an invitation email job.
func (c *Client) EnqueueInvitationEmail(ctx context.Context, payload InvitationEmailPayload) error {
	task, err := NewInvitationEmailTask(payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue invitation email",
			"email", payload.RecipientEmail,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("invitation email queued",
		"task_id", info.ID,
		"email", payload.RecipientEmail,
		"queue", info.Queue,
	)
	return nil
}

// EnqueueWelcomeEmail enqueues a welcome email job.
func (c *Client) EnqueueWelcomeEmail(ctx context.Context, payload WelcomeEmailPayload) error {
	task, err := NewWelcomeEmailTask(payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue welcome email",
			"email", payload.UserEmail,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("welcome email queued",
		"task_id", info.ID,
		"email", payload.UserEmail,
		"queue", info.Queue,
	)
	return nil
}

// EnqueueInvitationCleanup enqueues an invitation cleanup task.
func (c *Client) EnqueueInvitationCleanup(ctx context.Context) error {
	info, err := c.client.EnqueueContext(ctx, NewInvitationCleanupTask())
	if err != nil {
		return fmt.Errorf("failed to enqueue invitation cleanup: %w", err)
	}

	c.logger.Info("invitation cleanup queued", "task_id", info.ID, "queue", info.Queue)
	return nil
}

// EnqueueInvoiceOverdueSweep enqueues an invoice overdue sweep task.
func (c *Client) EnqueueInvoiceOverdueSweep(ctx context.Context) error {
	info, err := c.client.EnqueueContext(ctx, NewInvoiceOverdueTask())
	if err != nil {
		return fmt.Errorf("failed to enqueue invoice overdue sweep: %w", err)
	}

	c.logger.Info("invoice overdue sweep queued", "task_id", info.ID, "queue", info.Queue)
	return nil
}
