package attachment

import (
	"context"
	"io"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
)

// MaxSizeBytes caps a single upload.
const MaxSizeBytes = 25 << 20

// Attachment is a stored file tied to a project: a receipt, a photo,
// a signed change order. The bytes live in object storage; this record
// holds the metadata and the storage key.
type Attachment struct {
	id          shared.ID
	tenantID    shared.ID
	projectID   shared.ID
	fileName    string
	contentType string
	sizeBytes   int64
	storageKey  string
	uploadedBy  shared.ID
	createdAt   time.Time
}

// New creates an attachment record for an upload.
func New(tenantID, projectID shared.ID, fileName, contentType string, sizeBytes int64, storageKey string, uploadedBy shared.ID) (*Attachment, error) {
	if tenantID.IsZero() {
		return nil, shared.ErrMissingTenantContext
	}
	if projectID.IsZero() {
		return nil, shared.ValidationErrorf("projectID is required")
	}
	if fileName == "" {
		return nil, shared.ValidationErrorf("fileName is required")
	}
	if sizeBytes <= 0 {
		return nil, shared.ValidationErrorf("empty file")
	}
	if sizeBytes > MaxSizeBytes {
		return nil, shared.ValidationErrorf("file exceeds %d bytes", MaxSizeBytes)
	}
	if storageKey == "" {
		return nil, shared.ValidationErrorf("storageKey is required")
	}

	return &Attachment{
		id:          shared.NewID(),
		tenantID:    tenantID,
		projectID:   projectID,
		fileName:    fileName,
		contentType: contentType,
		sizeBytes:   sizeBytes,
		storageKey:  storageKey,
		uploadedBy:  uploadedBy,
		createdAt:   time.Now().UTC(),
	}, nil
}

// Reconstitute recreates an Attachment from persistence.
func Reconstitute(
	id, tenantID, projectID shared.ID,
	fileName, contentType string,
	sizeBytes int64,
	storageKey string,
	uploadedBy shared.ID,
	createdAt time.Time,
) *Attachment {
	return &Attachment{
		id:          id,
		tenantID:    tenantID,
		projectID:   projectID,
		fileName:    fileName,
		contentType: contentType,
		sizeBytes:   sizeBytes,
		storageKey:  storageKey,
		uploadedBy:  uploadedBy,
		createdAt:   createdAt,
	}
}

func (a *Attachment) ID() shared.ID        { return a.id }
func (a *Attachment) TenantID() shared.ID  { return a.tenantID }
func (a *Attachment) ProjectID() shared.ID { return a.projectID }
func (a *Attachment) FileName() string     { return a.fileName }
func (a *Attachment) ContentType() string  { return a.contentType }
func (a *Attachment) SizeBytes() int64     { return a.sizeBytes }
func (a *Attachment) StorageKey() string   { return a.storageKey }
func (a *Attachment) UploadedBy() shared.ID { return a.uploadedBy }
func (a *Attachment) CreatedAt() time.Time { return a.createdAt }

// Repository persists attachment metadata, tenant-scoped.
type Repository interface {
	Create(ctx context.Context, a *Attachment) error
	GetByID(ctx context.Context, tenantID, id shared.ID) (*Attachment, error)
	Delete(ctx context.Context, tenantID, id shared.ID) error
	ListByProject(ctx context.Context, tenantID, projectID shared.ID) ([]*Attachment, error)
}

// Store holds the attachment bytes in object storage.
type Store interface {
	Put(ctx context.Context, key, contentType string, size int64, body io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
