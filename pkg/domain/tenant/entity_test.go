package tenant

import (
	"strings"
	"testing"

	"github.com/buildledger/api/pkg/domain/shared"
)

func TestValidateSubdomain(t *testing.T) {
	tests := []struct {
		subdomain string
		ok        bool
	}{
		{"acme", true},
		{"acme-builders", true},
		{"a1b2", true},
		{"abc", true},
		{strings.Repeat("a", 50), true},
		{"ab", false},
		{strings.Repeat("a", 51), false},
		{"Acme", false},
		{"-acme", false},
		{"acme-", false},
		{"acme--builders", false},
		{"acme builders", false},
		{"acme.builders", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.subdomain, func(t *testing.T) {
			err := ValidateSubdomain(tt.subdomain)
			if tt.ok && err != nil {
				t.Errorf("ValidateSubdomain(%q) = %v, want nil", tt.subdomain, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("ValidateSubdomain(%q) = nil, want error", tt.subdomain)
			}
		})
	}
}

func TestNewTenantNormalizesSubdomain(t *testing.T) {
	tn, err := NewTenant("  ACME-Builders  ", "Acme Builders", "ops@acme.test", "", PlanFree, shared.NewID())
	if err != nil {
		t.Fatalf("NewTenant: %v", err)
	}
	if tn.Subdomain() != "acme-builders" {
		t.Errorf("subdomain = %q, want %q", tn.Subdomain(), "acme-builders")
	}
	if tn.Status() != StatusActive {
		t.Errorf("status = %q, want active", tn.Status())
	}
}

func TestNewTenantValidation(t *testing.T) {
	creator := shared.NewID()
	tests := []struct {
		name      string
		subdomain string
		company   string
		email     string
		plan      Plan
		createdBy shared.ID
	}{
		{"bad subdomain", "x", "Acme", "a@b.com", PlanFree, creator},
		{"missing name", "acme", "", "a@b.com", PlanFree, creator},
		{"missing email", "acme", "Acme", "", PlanFree, creator},
		{"unknown plan", "acme", "Acme", "a@b.com", Plan("platinum"), creator},
		{"missing creator", "acme", "Acme", "a@b.com", PlanFree, shared.ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTenant(tt.subdomain, tt.company, tt.email, "", tt.plan, tt.createdBy); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestUpdateContactKeepsSubdomain(t *testing.T) {
	tn, err := NewTenant("acme", "Acme", "a@b.com", "", PlanStandard, shared.NewID())
	if err != nil {
		t.Fatal(err)
	}

	if err := tn.UpdateContact("Acme Inc", "billing@acme.test", "+1 555 0100"); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if tn.Name() != "Acme Inc" || tn.Email() != "billing@acme.test" || tn.Phone() != "+1 555 0100" {
		t.Errorf("contact fields not updated: %q %q %q", tn.Name(), tn.Email(), tn.Phone())
	}
	if tn.Subdomain() != "acme" {
		t.Errorf("subdomain changed to %q", tn.Subdomain())
	}

	if err := tn.UpdateContact("", "a@b.com", ""); err == nil {
		t.Error("empty name accepted")
	}
}
