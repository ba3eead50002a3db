package app

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/buildledger/api/internal/config"
	"github.com/buildledger/api/pkg/email"
	"github.com/buildledger/api/pkg/logger"
)

// EmailService renders and sends application emails. Every method is
// safe to call when SMTP is not configured: the send is skipped with a
// warning so that a missing mail server never fails the calling flow.
type EmailService struct {
	sender  email.Sender
	config  config.SMTPConfig
	appName string
	logger  *logger.Logger
}

// NewEmailService creates a new EmailService.
func NewEmailService(sender email.Sender, cfg config.SMTPConfig, appName string, log *logger.Logger) *EmailService {
	return &EmailService{
		sender:  sender,
		config:  cfg,
		appName: appName,
		logger:  log.With("service", "email"),
	}
}

// IsConfigured returns true if the email service can actually send.
func (s *EmailService) IsConfigured() bool {
	return s.sender != nil && s.sender.IsConfigured()
}

// SendInvitationEmail sends a workspace invitation link. knownAccount
// selects the wording for recipients who already have an account.
func (s *EmailService) SendInvitationEmail(ctx context.Context, recipientEmail, inviterName, tenantName, token string, expiresIn time.Duration, knownAccount bool) error {
	if !s.IsConfigured() {
		s.logger.Warn("email service not configured, skipping invitation email",
			"email", recipientEmail,
		)
		return nil
	}

	invitationURL := fmt.Sprintf("%s/invitations/accept?token=%s", s.config.BaseURL, url.QueryEscape(token))

	data := email.InvitationData{
		InviterName:   inviterName,
		TenantName:    tenantName,
		InvitationURL: invitationURL,
		ExpiresIn:     formatDuration(expiresIn),
		AppName:       s.appName,
		KnownAccount:  knownAccount,
	}

	if err := s.sender.SendTemplate(ctx, recipientEmail, email.TemplateInvitation, data); err != nil {
		s.logger.Error("failed to send invitation email",
			"email", recipientEmail,
			"error", err,
		)
		return fmt.Errorf("failed to send invitation email: %w", err)
	}

	s.logger.Info("invitation email sent",
		"email", recipientEmail,
		"tenant_name", tenantName,
	)
	return nil
}

// SendWelcomeEmail sends the post-acceptance welcome message.
func (s *EmailService) SendWelcomeEmail(ctx context.Context, userEmail, userName, tenantName string) error {
	if !s.IsConfigured() {
		s.logger.Warn("email service not configured, skipping welcome email",
			"email", userEmail,
		)
		return nil
	}

	data := email.WelcomeData{
		UserName:   userName,
		Email:      userEmail,
		TenantName: tenantName,
		LoginURL:   fmt.Sprintf("%s/auth/login", s.config.BaseURL),
		AppName:    s.appName,
	}

	if err := s.sender.SendTemplate(ctx, userEmail, email.TemplateWelcome, data); err != nil {
		s.logger.Error("failed to send welcome email",
			"email", userEmail,
			"error", err,
		)
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	s.logger.Info("welcome email sent",
		"email", userEmail,
	)
	return nil
}

// SendInvoiceOverdueEmail notifies the workspace contact that an
// invoice went overdue during the nightly sweep.
func (s *EmailService) SendInvoiceOverdueEmail(ctx context.Context, recipientEmail, invoiceNumber, projectName, amountDue, dueDate string) error {
	if !s.IsConfigured() {
		s.logger.Warn("email service not configured, skipping overdue invoice email",
			"email", recipientEmail,
			"invoice_number", invoiceNumber,
		)
		return nil
	}

	data := email.InvoiceOverdueData{
		InvoiceNumber: invoiceNumber,
		ProjectName:   projectName,
		AmountDue:     amountDue,
		DueDate:       dueDate,
		AppName:       s.appName,
	}

	if err := s.sender.SendTemplate(ctx, recipientEmail, email.TemplateInvoiceOverdue, data); err != nil {
		s.logger.Error("failed to send overdue invoice email",
			"email", recipientEmail,
			"invoice_number", invoiceNumber,
			"error", err,
		)
		return fmt.Errorf("failed to send overdue invoice email: %w", err)
	}

	s.logger.Info("overdue invoice email sent",
		"email", recipientEmail,
		"invoice_number", invoiceNumber,
	)
	return nil
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d >= 24*time.Hour {
		days := int(d.Hours() / 24)
		if days == 1 {
			return "24 hours"
		}
		return fmt.Sprintf("%d days", days)
	}
	if d >= time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Minutes())
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
