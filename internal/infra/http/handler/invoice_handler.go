package handler

import (
	"net/http"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/invoice"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/validator"
)

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	service   *app.InvoiceService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(svc *app.InvoiceService, v *validator.Validator, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service:   svc,
		validator: v,
		logger:    log.With("handler", "invoice"),
	}
}

// LineItemResponse is one invoice line.
type LineItemResponse struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitCents   int64  `json:"unit_cents"`
	TotalCents  int64  `json:"total_cents"`
}

// InvoiceResponse represents an invoice in API responses.
type InvoiceResponse struct {
	ID         string             `json:"id"`
	ProjectID  string             `json:"project_id"`
	Number     string             `json:"number"`
	ClientRef  string             `json:"client_ref,omitempty"`
	Status     string             `json:"status"`
	Items      []LineItemResponse `json:"items"`
	TotalCents int64              `json:"total_cents"`
	IssuedAt   *time.Time         `json:"issued_at,omitempty"`
	DueAt      *time.Time         `json:"due_at,omitempty"`
	PaidAt     *time.Time         `json:"paid_at,omitempty"`
	CreatedBy  string             `json:"created_by"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func toInvoiceResponse(v *invoice.Invoice) InvoiceResponse {
	items := make([]LineItemResponse, 0, len(v.Items()))
	for _, item := range v.Items() {
		items = append(items, LineItemResponse{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitCents:   item.UnitCents,
			TotalCents:  item.TotalCents(),
		})
	}
	return InvoiceResponse{
		ID:         v.ID().String(),
		ProjectID:  v.ProjectID().String(),
		Number:     v.Number(),
		ClientRef:  v.ClientRef(),
		Status:     v.Status().String(),
		Items:      items,
		TotalCents: v.TotalCents(),
		IssuedAt:   v.IssuedAt(),
		DueAt:      v.DueAt(),
		PaidAt:     v.PaidAt(),
		CreatedBy:  v.CreatedBy().String(),
		CreatedAt:  v.CreatedAt(),
		UpdatedAt:  v.UpdatedAt(),
	}
}

// ReplaceItemsRequest carries the full replacement line set.
type ReplaceItemsRequest struct {
	Items []app.InvoiceLineInput `json:"items" validate:"required,min=1,dive"`
}

// SendRequest carries the due date for issuing an invoice.
type SendRequest struct {
	DueAt string `json:"due_at" validate:"required"`
}

// Create handles POST /api/v1/invoices.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := tenantActor(w, r)
	if !ok {
		return
	}

	var input app.CreateInvoiceInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	v, err := h.service.CreateInvoice(r.Context(), tenantID, input, userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invoice")
		return
	}
	respondJSON(w, http.StatusCreated, toInvoiceResponse(v))
}

// List handles GET /api/v1/invoices.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}

	filter := invoice.Filter{
		Status: invoice.Status(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		projectID, err := shared.IDFromString(raw)
		if err != nil {
			apierror.BadRequest("Invalid project_id").WriteJSON(w)
			return
		}
		filter.ProjectID = projectID
	}

	result, err := h.service.ListInvoices(r.Context(), tenantID, filter, parsePagination(r))
	if err != nil {
		handleServiceError(w, h.logger, err, "Invoices")
		return
	}
	respondJSON(w, http.StatusOK, newListResponse(result, toInvoiceResponse))
}

// Get handles GET /api/v1/invoices/{invoiceId}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	invoiceID, err := pathID(r, "invoiceId")
	if err != nil {
		apierror.BadRequest("Invalid invoice ID").WriteJSON(w)
		return
	}

	v, err := h.service.GetInvoice(r.Context(), tenantID, invoiceID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invoice")
		return
	}
	respondJSON(w, http.StatusOK, toInvoiceResponse(v))
}

// ReplaceItems handles PUT /api/v1/invoices/{invoiceId}/items.
func (h *InvoiceHandler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	invoiceID, err := pathID(r, "invoiceId")
	if err != nil {
		apierror.BadRequest("Invalid invoice ID").WriteJSON(w)
		return
	}

	var req ReplaceItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}

	v, err := h.service.ReplaceInvoiceItems(r.Context(), tenantID, invoiceID, req.Items)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invoice")
		return
	}
	respondJSON(w, http.StatusOK, toInvoiceResponse(v))
}

// Send handles POST /api/v1/invoices/{invoiceId}/send.
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	invoiceID, err := pathID(r, "invoiceId")
	if err != nil {
		apierror.BadRequest("Invalid invoice ID").WriteJSON(w)
		return
	}

	var req SendRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleValidationError(w, err)
		return
	}
	dueAt, err := time.Parse("2006-01-02", req.DueAt)
	if err != nil {
		apierror.BadRequest("due_at must be YYYY-MM-DD").WriteJSON(w)
		return
	}

	v, err := h.service.SendInvoice(r.Context(), tenantID, invoiceID, dueAt)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invoice")
		return
	}
	respondJSON(w, http.StatusOK, toInvoiceResponse(v))
}

// MarkPaid handles POST /api/v1/invoices/{invoiceId}/pay.
func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	invoiceID, err := pathID(r, "invoiceId")
	if err != nil {
		apierror.BadRequest("Invalid invoice ID").WriteJSON(w)
		return
	}

	v, err := h.service.MarkInvoicePaid(r.Context(), tenantID, invoiceID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invoice")
		return
	}
	respondJSON(w, http.StatusOK, toInvoiceResponse(v))
}

// Void handles POST /api/v1/invoices/{invoiceId}/void.
func (h *InvoiceHandler) Void(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	invoiceID, err := pathID(r, "invoiceId")
	if err != nil {
		apierror.BadRequest("Invalid invoice ID").WriteJSON(w)
		return
	}

	v, err := h.service.VoidInvoice(r.Context(), tenantID, invoiceID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Invoice")
		return
	}
	respondJSON(w, http.StatusOK, toInvoiceResponse(v))
}
