package user

import "sort"

// Resource names a permission-gated resource class.
type Resource string

// Gated resources. Every tenant-scoped API surface maps to exactly one
// of these.
const (
	ResourceProjects     Resource = "projects"
	ResourceCosts        Resource = "costs"
	ResourceChangeOrders Resource = "change_orders"
	ResourceInvoices     Resource = "invoices"
	ResourceAttachments  Resource = "attachments"
	ResourceUsers        Resource = "users"
)

// AllResources lists every gated resource in stable order.
func AllResources() []Resource {
	return []Resource{
		ResourceProjects,
		ResourceCosts,
		ResourceChangeOrders,
		ResourceInvoices,
		ResourceAttachments,
		ResourceUsers,
	}
}

// IsValid reports whether the resource is known.
func (r Resource) IsValid() bool {
	for _, known := range AllResources() {
		if r == known {
			return true
		}
	}
	return false
}

func (r Resource) String() string {
	return string(r)
}

// Level is an access level on a single resource.
type Level string

const (
	LevelNone  Level = "none"
	LevelRead  Level = "read"
	LevelWrite Level = "write"
)

// IsValid reports whether the level is known.
func (l Level) IsValid() bool {
	switch l {
	case LevelNone, LevelRead, LevelWrite:
		return true
	}
	return false
}

func (l Level) String() string {
	return string(l)
}

// rank orders levels so AtLeast can compare them.
func (l Level) rank() int {
	switch l {
	case LevelRead:
		return 1
	case LevelWrite:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether l grants at least the access of required.
func (l Level) AtLeast(required Level) bool {
	return l.rank() >= required.rank()
}

// Permissions maps each resource to its granted access level. A missing
// entry is equivalent to LevelNone.
type Permissions map[Resource]Level

// Get returns the level for a resource, defaulting to LevelNone.
func (p Permissions) Get(resource Resource) Level {
	if p == nil {
		return LevelNone
	}
	if level, ok := p[resource]; ok {
		return level
	}
	return LevelNone
}

// Allows reports whether the permission set grants at least the required
// level on the resource.
func (p Permissions) Allows(resource Resource, required Level) bool {
	return p.Get(resource).AtLeast(required)
}

// Clone returns a copy of the permission set.
func (p Permissions) Clone() Permissions {
	out := make(Permissions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Validate checks that every entry names a known resource and level.
func (p Permissions) Validate() error {
	// Deterministic iteration keeps error messages stable for tests.
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		resource := Resource(k)
		if !resource.IsValid() {
			return invalidResourceError(resource)
		}
		if !p[resource].IsValid() {
			return invalidLevelError(resource, p[resource])
		}
	}
	return nil
}

// TemplateFor returns the default permission set for a role. The
// template is applied once, when a user record is bound to a tenant;
// later permission edits do not consult the role.
func TemplateFor(role Role) Permissions {
	switch role {
	case RoleMaster:
		p := make(Permissions, len(AllResources()))
		for _, r := range AllResources() {
			p[r] = LevelWrite
		}
		return p
	case RoleEntry:
		return Permissions{
			ResourceProjects:     LevelRead,
			ResourceCosts:        LevelWrite,
			ResourceChangeOrders: LevelWrite,
			ResourceInvoices:     LevelRead,
			ResourceAttachments:  LevelWrite,
			ResourceUsers:        LevelNone,
		}
	case RoleView:
		p := make(Permissions, len(AllResources()))
		for _, r := range AllResources() {
			p[r] = LevelRead
		}
		p[ResourceUsers] = LevelNone
		return p
	default:
		return Permissions{}
	}
}

// UnassignedTemplate is the permission set for a lazily created record
// that is not yet bound to any tenant: read on the browse surfaces,
// nothing on user administration.
func UnassignedTemplate() Permissions {
	return Permissions{
		ResourceProjects:     LevelRead,
		ResourceCosts:        LevelRead,
		ResourceChangeOrders: LevelNone,
		ResourceInvoices:     LevelNone,
		ResourceAttachments:  LevelRead,
		ResourceUsers:        LevelNone,
	}
}
