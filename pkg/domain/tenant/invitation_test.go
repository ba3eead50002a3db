package tenant

import (
	"errors"
	"testing"
	"time"

	"github.com/buildledger/api/pkg/domain/shared"
	"github.com/buildledger/api/pkg/domain/user"
)

func pendingInvitation(t *testing.T, expiresAt time.Time) *Invitation {
	t.Helper()
	now := time.Now().UTC()
	return ReconstituteInvitation(
		shared.NewID(), shared.NewID(),
		"invitee@example.com",
		user.RoleEntry,
		user.TemplateFor(user.RoleEntry),
		"test-token",
		shared.NewID(),
		InvitationPending,
		expiresAt, now, now,
	)
}

func TestNewInvitation(t *testing.T) {
	tenantID := shared.NewID()
	inviterID := shared.NewID()

	inv, err := NewInvitation(tenantID, "invitee@example.com", user.RoleEntry, nil, inviterID, 0)
	if err != nil {
		t.Fatalf("NewInvitation: %v", err)
	}

	if inv.Status() != InvitationPending {
		t.Errorf("status = %q, want pending", inv.Status())
	}
	if inv.Token() == "" {
		t.Error("token is empty")
	}
	if !inv.IsAcceptable() {
		t.Error("fresh invitation should be acceptable")
	}

	wantExpiry := time.Now().UTC().Add(DefaultInvitationExpiry)
	if diff := inv.ExpiresAt().Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry %v not within a minute of %v", inv.ExpiresAt(), wantExpiry)
	}

	// Nil permissions fall back to the role template.
	if got := inv.Permissions().Get(user.ResourceCosts); got != user.LevelWrite {
		t.Errorf("costs permission = %q, want write", got)
	}
}

func TestNewInvitationCustomExpiry(t *testing.T) {
	inv, err := NewInvitation(shared.NewID(), "invitee@example.com", user.RoleEntry, nil, shared.NewID(), 48*time.Hour)
	if err != nil {
		t.Fatalf("NewInvitation: %v", err)
	}
	wantExpiry := time.Now().UTC().Add(48 * time.Hour)
	if diff := inv.ExpiresAt().Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiry %v not within a minute of %v", inv.ExpiresAt(), wantExpiry)
	}
}

func TestNewInvitationValidation(t *testing.T) {
	tenantID := shared.NewID()
	inviterID := shared.NewID()

	tests := []struct {
		name      string
		tenantID  shared.ID
		email     string
		role      user.Role
		invitedBy shared.ID
	}{
		{"missing tenant", shared.ID{}, "a@b.com", user.RoleEntry, inviterID},
		{"missing email", tenantID, "", user.RoleEntry, inviterID},
		{"unknown role", tenantID, "a@b.com", user.Role("owner"), inviterID},
		{"master role not invitable", tenantID, "a@b.com", user.RoleMaster, inviterID},
		{"missing inviter", tenantID, "a@b.com", user.RoleEntry, shared.ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewInvitation(tt.tenantID, tt.email, tt.role, nil, tt.invitedBy, 0); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewInvitationTokensAreUnique(t *testing.T) {
	tenantID := shared.NewID()
	inviterID := shared.NewID()

	a, err := NewInvitation(tenantID, "a@example.com", user.RoleEntry, nil, inviterID, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewInvitation(tenantID, "b@example.com", user.RoleEntry, nil, inviterID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.Token() == b.Token() {
		t.Error("two invitations share a token")
	}
}

func TestMarkAccepted(t *testing.T) {
	inv := pendingInvitation(t, time.Now().UTC().Add(time.Hour))

	if err := inv.MarkAccepted(); err != nil {
		t.Fatalf("MarkAccepted: %v", err)
	}
	if inv.Status() != InvitationAccepted {
		t.Errorf("status = %q, want accepted", inv.Status())
	}

	// Accepted is terminal.
	if err := inv.MarkAccepted(); !errors.Is(err, ErrInvitationAlreadyProcessed) {
		t.Errorf("second accept = %v, want ErrInvitationAlreadyProcessed", err)
	}
}

func TestMarkAcceptedExpired(t *testing.T) {
	inv := pendingInvitation(t, time.Now().UTC().Add(-time.Hour))

	err := inv.MarkAccepted()
	if !errors.Is(err, ErrInvitationExpired) {
		t.Fatalf("MarkAccepted on expired = %v, want ErrInvitationExpired", err)
	}
	// The stored status does not flip on a failed accept.
	if inv.Status() != InvitationPending {
		t.Errorf("status = %q, want pending", inv.Status())
	}
}

func TestCancel(t *testing.T) {
	inv := pendingInvitation(t, time.Now().UTC().Add(time.Hour))

	inv.Cancel()
	if inv.Status() != InvitationExpired {
		t.Errorf("status = %q, want expired", inv.Status())
	}

	// Cancelling a terminal invitation is a no-op.
	accepted := pendingInvitation(t, time.Now().UTC().Add(time.Hour))
	if err := accepted.MarkAccepted(); err != nil {
		t.Fatal(err)
	}
	accepted.Cancel()
	if accepted.Status() != InvitationAccepted {
		t.Errorf("cancel overwrote accepted, status = %q", accepted.Status())
	}
}

func TestExtendExpiryKeepsToken(t *testing.T) {
	inv := pendingInvitation(t, time.Now().UTC().Add(time.Hour))
	tokenBefore := inv.Token()
	expiryBefore := inv.ExpiresAt()

	if err := inv.ExtendExpiry(0); err != nil {
		t.Fatalf("ExtendExpiry: %v", err)
	}

	if inv.Token() != tokenBefore {
		t.Error("resend rotated the token")
	}
	if !inv.ExpiresAt().After(expiryBefore) {
		t.Errorf("expiry not extended: %v -> %v", expiryBefore, inv.ExpiresAt())
	}
}

func TestExtendExpiryRevivesStalePending(t *testing.T) {
	// A pending invitation past its expiry keeps status pending; a
	// resend makes it acceptable again.
	inv := pendingInvitation(t, time.Now().UTC().Add(-time.Hour))
	if inv.IsAcceptable() {
		t.Fatal("expired invitation should not be acceptable")
	}

	if err := inv.ExtendExpiry(0); err != nil {
		t.Fatalf("ExtendExpiry: %v", err)
	}
	if !inv.IsAcceptable() {
		t.Error("extended invitation should be acceptable")
	}
}

func TestExtendExpiryRejectsProcessed(t *testing.T) {
	inv := pendingInvitation(t, time.Now().UTC().Add(time.Hour))
	if err := inv.MarkAccepted(); err != nil {
		t.Fatal(err)
	}
	if err := inv.ExtendExpiry(0); !errors.Is(err, ErrInvitationAlreadyProcessed) {
		t.Errorf("ExtendExpiry on accepted = %v, want ErrInvitationAlreadyProcessed", err)
	}
}
