package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/api/pkg/domain/attachment"
	"github.com/buildledger/api/pkg/domain/shared"
)

// AttachmentRepository implements attachment.Repository using PostgreSQL.
type AttachmentRepository struct {
	db *DB
}

// NewAttachmentRepository creates a new AttachmentRepository.
func NewAttachmentRepository(db *DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `id, tenant_id, project_id, file_name, content_type, size_bytes, storage_key, uploaded_by, created_at`

// Create persists attachment metadata.
func (r *AttachmentRepository) Create(ctx context.Context, a *attachment.Attachment) error {
	query := `
		INSERT INTO attachments (id, tenant_id, project_id, file_name, content_type, size_bytes, storage_key, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID().String(),
		a.TenantID().String(),
		a.ProjectID().String(),
		a.FileName(),
		a.ContentType(),
		a.SizeBytes(),
		a.StorageKey(),
		a.UploadedBy().String(),
		a.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	return nil
}

// GetByID retrieves attachment metadata scoped to a tenant.
func (r *AttachmentRepository) GetByID(ctx context.Context, tenantID, id shared.ID) (*attachment.Attachment, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE tenant_id = $1 AND id = $2`

	a, err := scanAttachmentFrom(r.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("attachment %s %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return a, nil
}

// Delete removes attachment metadata. The caller is responsible for
// deleting the object storage bytes.
func (r *AttachmentRepository) Delete(ctx context.Context, tenantID, id shared.ID) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE tenant_id = $1 AND id = $2`, tenantID.String(), id.String())
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("attachment %s %w", id, shared.ErrNotFound)
	}

	return nil
}

// ListByProject returns a project's attachments, newest first.
func (r *AttachmentRepository) ListByProject(ctx context.Context, tenantID, projectID shared.ID) ([]*attachment.Attachment, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE tenant_id = $1 AND project_id = $2
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID.String(), projectID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*attachment.Attachment
	for rows.Next() {
		a, err := scanAttachmentFrom(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}

	return attachments, rows.Err()
}

func scanAttachmentFrom(s rowScanner) (*attachment.Attachment, error) {
	var (
		idStr        string
		tenantIDStr  string
		projectIDStr string
		fileName     string
		contentType  string
		sizeBytes    int64
		storageKey   string
		uploadedBy   string
		createdAt    time.Time
	)

	err := s.Scan(&idStr, &tenantIDStr, &projectIDStr, &fileName, &contentType, &sizeBytes, &storageKey, &uploadedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan attachment: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid attachment ID in database: %w", err)
	}
	tenantID, err := shared.IDFromString(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant ID in database: %w", err)
	}
	projectID, err := shared.IDFromString(projectIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID in database: %w", err)
	}
	uploader, err := shared.IDFromString(uploadedBy)
	if err != nil {
		return nil, fmt.Errorf("invalid uploader ID in database: %w", err)
	}

	return attachment.Reconstitute(id, tenantID, projectID, fileName, contentType, sizeBytes, storageKey, uploader, createdAt), nil
}
