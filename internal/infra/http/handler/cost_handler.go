package handler

import (
	"net/http"
	"time"

	"github.com/buildledger/api/internal/app"
	"github.com/buildledger/api/pkg/apierror"
	"github.com/buildledger/api/pkg/domain/cost"
	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/logger"
	"github.com/buildledger/api/pkg/validator"
)

// CostHandler handles cost entry and change order endpoints.
type CostHandler struct {
	service   *app.CostService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewCostHandler creates a new cost handler.
func NewCostHandler(svc *app.CostService, v *validator.Validator, log *logger.Logger) *CostHandler {
	return &CostHandler{
		service:   svc,
		validator: v,
		logger:    log.With("handler", "cost"),
	}
}

// CostEntryResponse represents a cost entry in API responses.
type CostEntryResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Vendor      string    `json:"vendor,omitempty"`
	IncurredAt  string    `json:"incurred_at"`
	EnteredBy   string    `json:"entered_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCostEntryResponse(e *cost.Entry) CostEntryResponse {
	return CostEntryResponse{
		ID:          e.ID().String(),
		ProjectID:   e.ProjectID().String(),
		Category:    e.Category().String(),
		Description: e.Description(),
		AmountCents: e.AmountCents(),
		Vendor:      e.Vendor(),
		IncurredAt:  e.IncurredAt().Format("2006-01-02"),
		EnteredBy:   e.EnteredBy().String(),
		CreatedAt:   e.CreatedAt(),
		UpdatedAt:   e.UpdatedAt(),
	}
}

// ChangeOrderResponse represents a change order in API responses.
type ChangeOrderResponse struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Number      string     `json:"number"`
	Description string     `json:"description"`
	DeltaCents  int64      `json:"delta_cents"`
	Status      string     `json:"status"`
	RequestedBy string     `json:"requested_by"`
	DecidedBy   string     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toChangeOrderResponse(c *cost.ChangeOrder) ChangeOrderResponse {
	resp := ChangeOrderResponse{
		ID:          c.ID().String(),
		ProjectID:   c.ProjectID().String(),
		Number:      c.Number(),
		Description: c.Description(),
		DeltaCents:  c.DeltaCents(),
		Status:      c.Status().String(),
		RequestedBy: c.RequestedBy().String(),
		DecidedAt:   c.DecidedAt(),
		CreatedAt:   c.CreatedAt(),
		UpdatedAt:   c.UpdatedAt(),
	}
	if c.DecidedBy() != nil {
		resp.DecidedBy = c.DecidedBy().String()
	}
	return resp
}

// CreateEntry handles POST /api/v1/costs.
func (h *CostHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := tenantActor(w, r)
	if !ok {
		return
	}

	var input app.CreateCostEntryInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	e, err := h.service.CreateCostEntry(r.Context(), tenantID, input, userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Cost entry")
		return
	}
	respondJSON(w, http.StatusCreated, toCostEntryResponse(e))
}

// ListEntries handles GET /api/v1/costs.
func (h *CostHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}

	filter := cost.Filter{
		Category: cost.Category(r.URL.Query().Get("category")),
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		projectID, err := shared.IDFromString(raw)
		if err != nil {
			apierror.BadRequest("Invalid project_id").WriteJSON(w)
			return
		}
		filter.ProjectID = projectID
	}
	var err error
	if filter.From, err = parseOptionalDate(queryPtr(r, "from")); err != nil {
		apierror.BadRequest("from must be YYYY-MM-DD").WriteJSON(w)
		return
	}
	if filter.To, err = parseOptionalDate(queryPtr(r, "to")); err != nil {
		apierror.BadRequest("to must be YYYY-MM-DD").WriteJSON(w)
		return
	}

	result, err := h.service.ListCostEntries(r.Context(), tenantID, filter, parsePagination(r))
	if err != nil {
		handleServiceError(w, h.logger, err, "Cost entries")
		return
	}
	respondJSON(w, http.StatusOK, newListResponse(result, toCostEntryResponse))
}

// GetEntry handles GET /api/v1/costs/{entryId}.
func (h *CostHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	entryID, err := pathID(r, "entryId")
	if err != nil {
		apierror.BadRequest("Invalid cost entry ID").WriteJSON(w)
		return
	}

	e, err := h.service.GetCostEntry(r.Context(), tenantID, entryID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Cost entry")
		return
	}
	respondJSON(w, http.StatusOK, toCostEntryResponse(e))
}

// UpdateEntry handles PUT /api/v1/costs/{entryId}.
func (h *CostHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	entryID, err := pathID(r, "entryId")
	if err != nil {
		apierror.BadRequest("Invalid cost entry ID").WriteJSON(w)
		return
	}

	var input app.UpdateCostEntryInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	e, err := h.service.UpdateCostEntry(r.Context(), tenantID, entryID, input)
	if err != nil {
		handleServiceError(w, h.logger, err, "Cost entry")
		return
	}
	respondJSON(w, http.StatusOK, toCostEntryResponse(e))
}

// DeleteEntry handles DELETE /api/v1/costs/{entryId}.
func (h *CostHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	entryID, err := pathID(r, "entryId")
	if err != nil {
		apierror.BadRequest("Invalid cost entry ID").WriteJSON(w)
		return
	}

	if err := h.service.DeleteCostEntry(r.Context(), tenantID, entryID); err != nil {
		handleServiceError(w, h.logger, err, "Cost entry")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// CreateChangeOrder handles POST /api/v1/change-orders.
func (h *CostHandler) CreateChangeOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := tenantActor(w, r)
	if !ok {
		return
	}

	var input app.CreateChangeOrderInput
	if err := decodeJSON(r, &input); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}
	if err := h.validator.Validate(input); err != nil {
		handleValidationError(w, err)
		return
	}

	c, err := h.service.CreateChangeOrder(r.Context(), tenantID, input, userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Change order")
		return
	}
	respondJSON(w, http.StatusCreated, toChangeOrderResponse(c))
}

// ListChangeOrders handles GET /api/v1/change-orders?project_id=...
func (h *CostHandler) ListChangeOrders(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	projectID, err := shared.IDFromString(r.URL.Query().Get("project_id"))
	if err != nil {
		apierror.BadRequest("project_id is required").WriteJSON(w)
		return
	}

	orders, err := h.service.ListChangeOrders(r.Context(), tenantID, projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Change orders")
		return
	}

	data := make([]ChangeOrderResponse, 0, len(orders))
	for _, c := range orders {
		data = append(data, toChangeOrderResponse(c))
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": data})
}

// GetChangeOrder handles GET /api/v1/change-orders/{orderId}.
func (h *CostHandler) GetChangeOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantActor(w, r)
	if !ok {
		return
	}
	orderID, err := pathID(r, "orderId")
	if err != nil {
		apierror.BadRequest("Invalid change order ID").WriteJSON(w)
		return
	}

	c, err := h.service.GetChangeOrder(r.Context(), tenantID, orderID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Change order")
		return
	}
	respondJSON(w, http.StatusOK, toChangeOrderResponse(c))
}

// SubmitChangeOrder handles POST /api/v1/change-orders/{orderId}/submit.
func (h *CostHandler) SubmitChangeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(tenantID, orderID, _ shared.ID) (*cost.ChangeOrder, error) {
		return h.service.SubmitChangeOrder(r.Context(), tenantID, orderID)
	})
}

// ApproveChangeOrder handles POST /api/v1/change-orders/{orderId}/approve.
func (h *CostHandler) ApproveChangeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(tenantID, orderID, userID shared.ID) (*cost.ChangeOrder, error) {
		return h.service.ApproveChangeOrder(r.Context(), tenantID, orderID, userID)
	})
}

// RejectChangeOrder handles POST /api/v1/change-orders/{orderId}/reject.
func (h *CostHandler) RejectChangeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(tenantID, orderID, userID shared.ID) (*cost.ChangeOrder, error) {
		return h.service.RejectChangeOrder(r.Context(), tenantID, orderID, userID)
	})
}

func (h *CostHandler) transition(w http.ResponseWriter, r *http.Request, fn func(tenantID, orderID, userID shared.ID) (*cost.ChangeOrder, error)) {
	tenantID, userID, ok := tenantActor(w, r)
	if !ok {
		return
	}
	orderID, err := pathID(r, "orderId")
	if err != nil {
		apierror.BadRequest("Invalid change order ID").WriteJSON(w)
		return
	}

	c, err := fn(tenantID, orderID, userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "Change order")
		return
	}
	respondJSON(w, http.StatusOK, toChangeOrderResponse(c))
}

// queryPtr returns a pointer to the query value, nil when absent.
func queryPtr(r *http.Request, name string) *string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}
