package resolver

import (
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want Decision
	}{
		{
			name: "public page renders while everything loads",
			snap: Snapshot{Identity: Loading, Membership: Loading, Tenant: Loading, Page: Public},
			want: Render,
		},
		{
			name: "public page renders for signed in member",
			snap: Snapshot{Identity: Present, Membership: Present, Tenant: Present, Page: Public},
			want: Render,
		},
		{
			name: "identity loading holds tenant page",
			snap: Snapshot{Identity: Loading, Membership: Loading, Tenant: Loading, Page: TenantRequired},
			want: WaitForLoad,
		},
		{
			name: "identity loading holds auth page",
			snap: Snapshot{Identity: Loading, Page: AuthOnly},
			want: WaitForLoad,
		},
		{
			name: "anonymous visitor renders auth page",
			snap: Snapshot{Identity: Absent, Page: AuthOnly},
			want: Render,
		},
		{
			name: "failed identity still renders auth page",
			snap: Snapshot{Identity: Failed, Page: AuthOnly},
			want: Render,
		},
		{
			name: "signed in visitor bounced off auth page",
			snap: Snapshot{Identity: Present, Membership: Loading, Page: AuthOnly},
			want: RedirectAwayFromAuthPage,
		},
		{
			name: "anonymous visitor redirected to auth from tenant page",
			snap: Snapshot{Identity: Absent, Page: TenantRequired},
			want: RedirectToAuth,
		},
		{
			name: "failed identity redirected to auth from tenant page",
			snap: Snapshot{Identity: Failed, Page: TenantRequired},
			want: RedirectToAuth,
		},
		{
			name: "membership loading holds tenant page",
			snap: Snapshot{Identity: Present, Membership: Loading, Tenant: Loading, Page: TenantRequired},
			want: WaitForLoad,
		},
		{
			name: "no membership goes to tenant setup",
			snap: Snapshot{Identity: Present, Membership: Absent, Page: TenantRequired},
			want: RedirectToTenantSetup,
		},
		{
			name: "failed membership renders, never tenant setup",
			snap: Snapshot{Identity: Present, Membership: Failed, Page: TenantRequired},
			want: Render,
		},
		{
			name: "tenant loading holds tenant page",
			snap: Snapshot{Identity: Present, Membership: Present, Tenant: Loading, Page: TenantRequired},
			want: WaitForLoad,
		},
		{
			name: "member with tenant renders",
			snap: Snapshot{Identity: Present, Membership: Present, Tenant: Present, Page: TenantRequired},
			want: Render,
		},
		{
			name: "member with failed tenant read renders",
			snap: Snapshot{Identity: Present, Membership: Present, Tenant: Failed, Page: TenantRequired},
			want: Render,
		},
		{
			name: "member with absent tenant renders the inconsistency",
			snap: Snapshot{Identity: Present, Membership: Present, Tenant: Absent, Page: TenantRequired},
			want: Render,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.snap); got != tt.want {
				t.Errorf("Decide(%+v) = %v, want %v", tt.snap, got, tt.want)
			}
		})
	}
}

func TestDecideDebounceCeiling(t *testing.T) {
	over := DebounceCeiling + time.Second

	t.Run("stuck identity load treated as failed", func(t *testing.T) {
		snap := Snapshot{Identity: Loading, Page: TenantRequired, Waited: over}
		if got := Decide(snap); got != RedirectToAuth {
			t.Errorf("got %v, want %v", got, RedirectToAuth)
		}
	})

	t.Run("stuck membership load renders, not setup", func(t *testing.T) {
		snap := Snapshot{Identity: Present, Membership: Loading, Page: TenantRequired, Waited: over}
		if got := Decide(snap); got != Render {
			t.Errorf("got %v, want %v", got, Render)
		}
	})

	t.Run("stuck tenant load renders", func(t *testing.T) {
		snap := Snapshot{Identity: Present, Membership: Present, Tenant: Loading, Page: TenantRequired, Waited: over}
		if got := Decide(snap); got != Render {
			t.Errorf("got %v, want %v", got, Render)
		}
	})

	t.Run("exactly at ceiling counts as over", func(t *testing.T) {
		snap := Snapshot{Identity: Loading, Page: TenantRequired, Waited: DebounceCeiling}
		if got := Decide(snap); got != RedirectToAuth {
			t.Errorf("got %v, want %v", got, RedirectToAuth)
		}
	})

	t.Run("under ceiling still waits", func(t *testing.T) {
		snap := Snapshot{Identity: Loading, Page: TenantRequired, Waited: DebounceCeiling - time.Millisecond}
		if got := Decide(snap); got != WaitForLoad {
			t.Errorf("got %v, want %v", got, WaitForLoad)
		}
	})
}

func TestRedirectTarget(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want Target
	}{
		{
			name: "anonymous visitor sent to auth",
			snap: Snapshot{Identity: Absent, Page: TenantRequired},
			want: TargetAuth,
		},
		{
			name: "member without workspace sent to tenant setup",
			snap: Snapshot{Identity: Present, Membership: Absent, Page: TenantRequired},
			want: TargetTenantSetup,
		},
		{
			name: "member leaving auth page lands on dashboard",
			snap: Snapshot{Identity: Present, Membership: Present, Page: AuthOnly},
			want: TargetDashboard,
		},
		{
			name: "signed in visitor without membership leaves auth page for setup",
			snap: Snapshot{Identity: Present, Membership: Absent, Page: AuthOnly},
			want: TargetTenantSetup,
		},
		{
			name: "rendering member has no target",
			snap: Snapshot{Identity: Present, Membership: Present, Tenant: Present, Page: TenantRequired},
			want: NoTarget,
		},
		{
			name: "waiting visitor has no target",
			snap: Snapshot{Identity: Loading, Page: TenantRequired},
			want: NoTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.snap)
			if got := RedirectTarget(d, tt.snap); got != tt.want {
				t.Errorf("RedirectTarget(%v, %+v) = %v, want %v", d, tt.snap, got, tt.want)
			}
		})
	}
}

func TestDecisionIsRedirect(t *testing.T) {
	redirects := map[Decision]bool{
		WaitForLoad:              false,
		RedirectToAuth:           true,
		RedirectToTenantSetup:    true,
		RedirectAwayFromAuthPage: true,
		Render:                   false,
	}
	for d, want := range redirects {
		if got := d.IsRedirect(); got != want {
			t.Errorf("%v.IsRedirect() = %v, want %v", d, got, want)
		}
	}
}
