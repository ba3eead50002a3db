package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/buildledger/api/pkg/domain/attachment"
	"github.com/buildledger/api/pkg/domain/project"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/logger"
)

// AttachmentService manages project file attachments: a metadata row
// in postgres, bytes in object storage, downloads via presigned URLs.
type AttachmentService struct {
	attachments   attachment.Repository
	store         attachment.Store
	projects      project.Repository
	presignExpiry time.Duration
	logger        *logger.Logger
}

// NewAttachmentService creates a new AttachmentService.
func NewAttachmentService(attachments attachment.Repository, store attachment.Store, projects project.Repository, presignExpiry time.Duration, log *logger.Logger) *AttachmentService {
	return &AttachmentService{
		attachments:   attachments,
		store:         store,
		projects:      projects,
		presignExpiry: presignExpiry,
		logger:        log.With("service", "attachment"),
	}
}

// Upload stores the file bytes and records the attachment. The object
// write happens first: an orphaned object is harmless, an attachment
// row pointing at nothing is not.
func (s *AttachmentService) Upload(ctx context.Context, tenantID, projectID shared.ID, fileName, contentType string, sizeBytes int64, body io.Reader, uploadedBy shared.ID) (*attachment.Attachment, error) {
	if _, err := s.projects.GetByID(ctx, tenantID, projectID); err != nil {
		return nil, err
	}

	key := storageKey(tenantID, projectID, fileName)

	a, err := attachment.New(tenantID, projectID, fileName, contentType, sizeBytes, key, uploadedBy)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, key, contentType, sizeBytes, body); err != nil {
		return nil, fmt.Errorf("failed to store attachment bytes: %w", err)
	}

	if err := s.attachments.Create(ctx, a); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Error("failed to clean up orphaned object",
				"storage_key", key,
				"error", delErr,
			)
		}
		return nil, err
	}

	s.logger.Info("attachment uploaded",
		"tenant_id", tenantID.String(),
		"project_id", projectID.String(),
		"attachment_id", a.ID().String(),
		"size_bytes", sizeBytes,
	)
	return a, nil
}

// GetAttachment retrieves attachment metadata.
func (s *AttachmentService) GetAttachment(ctx context.Context, tenantID, id shared.ID) (*attachment.Attachment, error) {
	return s.attachments.GetByID(ctx, tenantID, id)
}

// DownloadURL returns a time-limited URL for the attachment's bytes.
// Clients download straight from object storage; the API never proxies
// file content.
func (s *AttachmentService) DownloadURL(ctx context.Context, tenantID, id shared.ID) (string, error) {
	a, err := s.attachments.GetByID(ctx, tenantID, id)
	if err != nil {
		return "", err
	}

	url, err := s.store.PresignGet(ctx, a.StorageKey(), s.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return url, nil
}

// Delete removes the attachment row and then the stored bytes. The
// object delete is best-effort: once the row is gone the object is
// unreachable, and storage lifecycle rules mop up stragglers.
func (s *AttachmentService) Delete(ctx context.Context, tenantID, id shared.ID) error {
	a, err := s.attachments.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.attachments.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, a.StorageKey()); err != nil {
		s.logger.Error("failed to delete attachment bytes",
			"storage_key", a.StorageKey(),
			"error", err,
		)
	}

	s.logger.Info("attachment deleted",
		"tenant_id", tenantID.String(),
		"attachment_id", id.String(),
	)
	return nil
}

// ListByProject returns a project's attachments, newest first.
func (s *AttachmentService) ListByProject(ctx context.Context, tenantID, projectID shared.ID) ([]*attachment.Attachment, error) {
	return s.attachments.ListByProject(ctx, tenantID, projectID)
}

// storageKey namespaces objects by tenant and project. The random
// element keeps same-named uploads from clobbering each other.
func storageKey(tenantID, projectID shared.ID, fileName string) string {
	return path.Join(
		"tenants", tenantID.String(),
		"projects", projectID.String(),
		uuid.NewString()+"-"+path.Base(fileName),
	)
}
