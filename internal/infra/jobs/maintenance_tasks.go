package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/buildledger/api/pkg/logger"
)

// Task types for scheduled maintenance jobs
const (
	TypeInvitationCleanup = "maintenance:invitation_cleanup"
	TypeInvoiceOverdue    = "maintenance:invoice_overdue"
)

// InvitationJanitor purges invitations that have been expired past the
// retention window.
type InvitationJanitor interface {
	CleanupExpiredInvitations(ctx context.Context) (int64, error)
}

// OverdueMarker flips sent invoices past their due date to overdue.
type OverdueMarker interface {
	MarkOverdueInvoices(ctx context.Context) (int64, error)
}

// NewInvitationCleanupTask creates an invitation cleanup task.
func NewInvitationCleanupTask() *asynq.Task {
	return asynq.NewTask(
		TypeInvitationCleanup,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("maintenance"),
	)
}

// NewInvoiceOverdueTask creates an invoice overdue sweep task.
func NewInvoiceOverdueTask() *asynq.Task {
	return asynq.NewTask(
		TypeInvoiceOverdue,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("maintenance"),
	)
}

// MaintenanceTaskHandler runs the scheduled sweeps.
type MaintenanceTaskHandler struct {
	janitor InvitationJanitor
	marker  OverdueMarker
	logger  *logger.Logger
}

// NewMaintenanceTaskHandler creates a new maintenance task handler.
func NewMaintenanceTaskHandler(janitor InvitationJanitor, marker OverdueMarker, log *logger.Logger) *MaintenanceTaskHandler {
	return &MaintenanceTaskHandler{
		janitor: janitor,
		marker:  marker,
		logger:  log.With("handler", "maintenance_tasks"),
	}
}

// RegisterHandlers registers maintenance handlers on the mux.
func (h *MaintenanceTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInvitationCleanup, h.HandleInvitationCleanup)
	mux.HandleFunc(TypeInvoiceOverdue, h.HandleInvoiceOverdue)
}

// HandleInvitationCleanup processes invitation cleanup tasks.
func (h *MaintenanceTaskHandler) HandleInvitationCleanup(ctx context.Context, _ *asynq.Task) error {
	start := time.Now()

	purged, err := h.janitor.CleanupExpiredInvitations(ctx)
	if err != nil {
		h.logger.Error("invitation cleanup failed", "error", err)
		return fmt.Errorf("invitation cleanup: %w", err)
	}

	h.logger.Info("invitation cleanup completed",
		"purged", purged,
		"duration", time.Since(start),
	)
	return nil
}

// HandleInvoiceOverdue processes invoice overdue sweep tasks.
func (h *MaintenanceTaskHandler) HandleInvoiceOverdue(ctx context.Context, _ *asynq.Task) error {
	start := time.Now()

	marked, err := h.marker.MarkOverdueInvoices(ctx)
	if err != nil {
		h.logger.Error("invoice overdue sweep failed", "error", err)
		return fmt.Errorf("invoice overdue sweep: %w", err)
	}

	h.logger.Info("invoice overdue sweep completed",
		"marked", marked,
		"duration", time.Since(start),
	)
	return nil
}
