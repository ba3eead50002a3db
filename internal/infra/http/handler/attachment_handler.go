package handler

import (
	"net/http"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/attachment"
	"github.com/buildledger/api/pkg/logger"
)

// maxAttachmentSize caps a single uploaded file.
const maxAttachmentSize = 25 << 20

// AttachmentHandler handles project attachment endpoints.
type AttachmentHandler struct {
	service *app.AttachmentService
	logger  *logger.Logger
}

// NewAttachmentHandler creates a new attachment handler.
func NewAttachmentHandler(svc *app.AttachmentService, log *logger.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service: svc,
		logger:  log.With("handler", "attachment"),
	}
}

// AttachmentResponse represents an attachment in API responses.
type AttachmentResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAttachmentResponse(a *attachment.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID().String(),
		ProjectID:   a.ProjectID().String(),
		FileName:    a.FileName(),
		ContentType: a.ContentType(),
		SizeBytes:   a.SizeBytes(),
		UploadedBy:  a.UploadedBy().String(),
		CreatedAt:   a.CreatedAt(),
	}
}

// DownloadURLResponse carries a presigned link.
type DownloadURLResponse struct {
	URL string `json:"url"`
}

// Upload handles POST /api/v1/projects/{projectId}/attachments as a
// multipart form with a single "file" part.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "projectId")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentSize)
	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		apierror.BadRequest("Invalid multipart form or file too large").WriteJSON(w)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierror.BadRequest("A file part named \"file\" is required").WriteJSON(w)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	a, err := h.service.Upload(r.Context(), tenantID, projectID, header.Filename, contentType, header.Size, file, userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Attachment")
		return
	}
	respondJSON(w, http.StatusCreated, toAttachmentResponse(a))
}

// List handles GET /api/v1/projects/{projectId}/attachments.
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := pathID(r, "projectId")
	if err != nil {
		apierror.BadRequest("Invalid project ID").WriteJSON(w)
		return
	}

	attachments, err := h.service.ListByProject(r.Context(), tenantID, projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Attachments")
		return
	}

	data := make([]AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		data = append(data, toAttachmentResponse(a))
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": data})
}

// DownloadURL handles GET /api/v1/attachments/{attachmentId}/url.
// The object itself is never proxied through the API; the client
// fetches it from storage with the short-lived link.
func (h *AttachmentHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	attachmentID, err := pathID(r, "attachmentId")
	if err != nil {
		apierror.BadRequest("Invalid attachment ID").WriteJSON(w)
		return
	}

	url, err := h.service.DownloadURL(r.Context(), tenantID, attachmentID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Attachment")
		return
	}
	respondJSON(w, http.StatusOK, DownloadURLResponse{URL: url})
}

// Delete handles DELETE /api/v1/attachments/{attachmentId}.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	attachmentID, err := pathID(r, "attachmentId")
	if err != nil {
		apierror.BadRequest("Invalid attachment ID").WriteJSON(w)
		return
	}

	if err := h.service.Delete(r.Context(), tenantID, attachmentID); err != nil {
		handleServiceError(w, h.logger, err, "Attachment")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
