package jobs

import (
	"context"

	"github.com/buildledger/api/internal/app"
)

// Enqueuer adapts the asynq client to the app layer's EmailJobEnqueuer
// interface, translating app payloads into task payloads.
type Enqueuer struct {
	client *Client
}

// NewEnqueuer wraps a Client for use by application services.
func NewEnqueuer(client *Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueInvitationEmail queues an invitation email job.
func (e *Enqueuer) EnqueueInvitationEmail(ctx context.Context, payload app.InvitationEmailJob) error {
	return e.client.EnqueueInvitationEmail(ctx, InvitationEmailPayload{
		RecipientEmail: payload.RecipientEmail,
		InviterName:    payload.InviterName,
		TenantName:     payload.TenantName,
		Token:          payload.Token,
		ExpiresIn:      payload.ExpiresIn,
		InvitationID:   payload.InvitationID,
		TenantID:       payload.TenantID,
		KnownAccount:   payload.KnownAccount,
	})
}

// EnqueueWelcomeEmail queues a welcome email job.
func (e *Enqueuer) EnqueueWelcomeEmail(ctx context.Context, payload app.WelcomeEmailJob) error {
	return e.client.EnqueueWelcomeEmail(ctx, WelcomeEmailPayload{
		UserEmail:  payload.UserEmail,
		UserName:   payload.UserName,
		TenantName: payload.TenantName,
		UserID:     payload.UserID,
	})
}

// Compile-time interface checks.
var _ app.EmailJobEnqueuer = (*Enqueuer)(nil)
