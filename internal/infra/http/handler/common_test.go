package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/tenant"
	"github.com/buildledger/api/pkg/logger"
)

func TestHandleServiceErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"expired invitation is a bad request", tenant.ErrInvitationExpired, http.StatusBadRequest},
		{"unknown or non-pending token reads as missing", tenant.ErrInvalidInvitation, http.StatusNotFound},
		{"processed invitation conflicts", tenant.ErrInvitationAlreadyProcessed, http.StatusConflict},
		{"taken subdomain conflicts", tenant.ErrSubdomainTaken, http.StatusConflict},
		{"already a member conflicts", tenant.ErrAlreadyMember, http.StatusConflict},
		{"pending duplicate conflicts", tenant.ErrInvitationAlreadySent, http.StatusConflict},
		{"validation maps to bad request", shared.ValidationErrorf("bad input"), http.StatusBadRequest},
		{"not found", shared.ErrNotFound, http.StatusNotFound},
		{"provider outage maps to unavailable", fmt.Errorf("%w: identity provider down", shared.ErrUpstreamUnavailable), http.StatusServiceUnavailable},
		{"anything else is internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(rec, logger.NewNop(), tt.err, "invitation")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
