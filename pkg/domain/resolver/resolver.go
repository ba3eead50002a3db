// Package resolver decides what a client should do while its identity,
// membership, and tenant data are still loading. It is a pure function
// of a snapshot: no I/O, no clocks, no goroutines. Callers build a
// Snapshot from whatever they know right now and ask for a Decision.
package resolver

import "time"

// LoadState describes one data source's position in its load cycle.
type LoadState int

const (
	// Loading means the fetch has not completed yet.
	Loading LoadState = iota
	// Absent means the fetch completed and found nothing.
	Absent
	// Present means the fetch completed and found data.
	Present
	// Failed means the fetch completed with an error. Failed is not
	// Absent: a tenant read that errored says nothing about whether
	// the tenant exists.
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Absent:
		return "absent"
	case Present:
		return "present"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Settled reports whether the load cycle finished, successfully or not.
func (s LoadState) Settled() bool { return s != Loading }

// PageKind classifies the page the client is trying to show.
type PageKind int

const (
	// Public pages render for anyone.
	Public PageKind = iota
	// AuthOnly pages are the sign-in and sign-up flows: they require
	// the visitor NOT to be signed in.
	AuthOnly
	// TenantRequired pages need a signed-in user with a tenant.
	TenantRequired
)

func (p PageKind) String() string {
	switch p {
	case Public:
		return "public"
	case AuthOnly:
		return "auth_only"
	case TenantRequired:
		return "tenant_required"
	}
	return "unknown"
}

// ParsePageKind parses a page kind name. Unknown names report false.
func ParsePageKind(s string) (PageKind, bool) {
	switch s {
	case "public":
		return Public, true
	case "auth_only":
		return AuthOnly, true
	case "tenant_required":
		return TenantRequired, true
	}
	return Public, false
}

// DebounceCeiling bounds how long a client should hold a WaitForLoad
// decision before treating the still-loading source as failed and
// re-evaluating. It is a ceiling, not a timer: the guard itself never
// sleeps.
const DebounceCeiling = 8 * time.Second

// Snapshot is everything the guard looks at. Waited is how long the
// client has already been holding on this page waiting for loads.
type Snapshot struct {
	Identity   LoadState
	Membership LoadState
	Tenant     LoadState
	Page       PageKind
	Waited     time.Duration
}

// Decision is what the client should do with the current snapshot.
type Decision int

const (
	// WaitForLoad means keep the loading state on screen and ask again
	// when a source settles or the debounce ceiling passes.
	WaitForLoad Decision = iota
	// RedirectToAuth sends the visitor to sign-in.
	RedirectToAuth
	// RedirectToTenantSetup sends a signed-in user with no membership
	// to tenant creation.
	RedirectToTenantSetup
	// RedirectAwayFromAuthPage sends an already signed-in visitor off
	// the sign-in page to their landing page.
	RedirectAwayFromAuthPage
	// Render shows the requested page.
	Render
)

func (d Decision) String() string {
	switch d {
	case WaitForLoad:
		return "wait_for_load"
	case RedirectToAuth:
		return "redirect_to_auth"
	case RedirectToTenantSetup:
		return "redirect_to_tenant_setup"
	case RedirectAwayFromAuthPage:
		return "redirect_away_from_auth_page"
	case Render:
		return "render"
	}
	return "unknown"
}

// IsRedirect reports whether the decision moves the client elsewhere.
func (d Decision) IsRedirect() bool {
	switch d {
	case RedirectToAuth, RedirectToTenantSetup, RedirectAwayFromAuthPage:
		return true
	}
	return false
}

// Target names the destination a redirect decision lands on.
type Target int

const (
	// NoTarget is the target of non-redirect decisions.
	NoTarget Target = iota
	// TargetAuth is the sign-in page.
	TargetAuth
	// TargetTenantSetup is the tenant creation flow.
	TargetTenantSetup
	// TargetDashboard is a member's workspace landing page.
	TargetDashboard
)

func (t Target) String() string {
	switch t {
	case TargetAuth:
		return "auth"
	case TargetTenantSetup:
		return "tenant_setup"
	case TargetDashboard:
		return "dashboard"
	}
	return ""
}

// RedirectTarget resolves where a redirect decision lands.
// RedirectAwayFromAuthPage is the one decision whose target depends on
// the snapshot: a visitor with a membership leaves the auth page for
// the dashboard, one without goes to tenant setup.
func RedirectTarget(d Decision, s Snapshot) Target {
	switch d {
	case RedirectToAuth:
		return TargetAuth
	case RedirectToTenantSetup:
		return TargetTenantSetup
	case RedirectAwayFromAuthPage:
		if settle(s.Membership, s.Waited) == Present {
			return TargetDashboard
		}
		return TargetTenantSetup
	}
	return NoTarget
}

// Decide maps a snapshot to a decision. The ordering is deliberate:
// identity settles first, then membership, then tenant. A source that
// has waited past the debounce ceiling is treated as Failed, never as
// Absent, so a slow backend cannot bounce a real member to setup.
func Decide(s Snapshot) Decision {
	identity := settle(s.Identity, s.Waited)

	// Public pages never wait on anything.
	if s.Page == Public {
		return Render
	}

	if identity == Loading {
		return WaitForLoad
	}

	signedIn := identity == Present

	if s.Page == AuthOnly {
		if signedIn {
			return RedirectAwayFromAuthPage
		}
		// Absent and Failed both render the auth page: with no usable
		// identity the only way forward is signing in (again).
		return Render
	}

	// TenantRequired from here on.
	if !signedIn {
		return RedirectToAuth
	}

	membership := settle(s.Membership, s.Waited)
	if membership == Loading {
		return WaitForLoad
	}
	if membership == Absent {
		return RedirectToTenantSetup
	}
	if membership == Failed {
		// Unknown membership is not missing membership. Render and let
		// the page surface the load error rather than routing a
		// possible member into onboarding.
		return Render
	}

	tenant := settle(s.Tenant, s.Waited)
	if tenant == Loading {
		return WaitForLoad
	}
	// Tenant Absent with membership Present is an inconsistency the
	// guard cannot repair; Failed is a transient read error. Both
	// render so the page can show the actual problem.
	return Render
}

// settle folds the debounce ceiling into a load state.
func settle(s LoadState, waited time.Duration) LoadState {
	if s == Loading && waited >= DebounceCeiling {
		return Failed
	}
	return s
}
