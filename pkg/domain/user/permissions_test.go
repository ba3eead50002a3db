package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildledger/api/pkg/domain/shared"
)

func TestLevelAtLeast(t *testing.T) {
	tests := []struct {
		have, need Level
		want       bool
	}{
		{LevelWrite, LevelWrite, true},
		{LevelWrite, LevelRead, true},
		{LevelWrite, LevelNone, true},
		{LevelRead, LevelWrite, false},
		{LevelRead, LevelRead, true},
		{LevelNone, LevelRead, false},
		{LevelNone, LevelNone, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.have.AtLeast(tt.need), "%s at least %s", tt.have, tt.need)
	}
}

func TestPermissionsGetDefaultsToNone(t *testing.T) {
	var nilPerms Permissions
	assert.Equal(t, LevelNone, nilPerms.Get(ResourceProjects))

	p := Permissions{ResourceProjects: LevelRead}
	assert.Equal(t, LevelRead, p.Get(ResourceProjects))
	assert.Equal(t, LevelNone, p.Get(ResourceInvoices))
	assert.False(t, p.Allows(ResourceInvoices, LevelRead))
}

func TestPermissionsValidate(t *testing.T) {
	assert.NoError(t, Permissions{ResourceCosts: LevelWrite}.Validate())
	assert.Error(t, Permissions{Resource("secrets"): LevelRead}.Validate())
	assert.Error(t, Permissions{ResourceCosts: Level("admin")}.Validate())
}

func TestTemplateFor(t *testing.T) {
	master := TemplateFor(RoleMaster)
	for _, r := range AllResources() {
		assert.Equal(t, LevelWrite, master.Get(r), "master on %s", r)
	}

	entry := TemplateFor(RoleEntry)
	assert.Equal(t, LevelWrite, entry.Get(ResourceCosts))
	assert.Equal(t, LevelRead, entry.Get(ResourceProjects))
	assert.Equal(t, LevelNone, entry.Get(ResourceUsers))

	view := TemplateFor(RoleView)
	assert.Equal(t, LevelRead, view.Get(ResourceProjects))
	assert.Equal(t, LevelNone, view.Get(ResourceUsers))
}

func TestRecordCanRequiresActive(t *testing.T) {
	record, err := NewMember(shared.NewID(), shared.NewID(), "m@example.com", "Member", RoleEntry, nil)
	require.NoError(t, err)

	assert.True(t, record.Can(ResourceCosts, LevelWrite))
	assert.False(t, record.Can(ResourceUsers, LevelRead))

	record.Deactivate()
	assert.False(t, record.Can(ResourceCosts, LevelRead), "deactivated record must deny everything")

	record.Activate()
	assert.True(t, record.Can(ResourceCosts, LevelWrite))
}

func TestBindTenantIsOneWay(t *testing.T) {
	record, err := NewUnassigned(shared.NewID(), "m@example.com", "Member")
	require.NoError(t, err)
	require.False(t, record.HasTenant())

	tenantID := shared.NewID()
	require.NoError(t, record.BindTenant(tenantID, RoleEntry, nil))
	assert.True(t, record.HasTenant())
	assert.Equal(t, RoleEntry, record.Role())

	// Re-binding to the same tenant is idempotent.
	assert.NoError(t, record.BindTenant(tenantID, RoleView, nil))

	// A record never moves between tenants.
	err = record.BindTenant(shared.NewID(), RoleEntry, nil)
	assert.ErrorIs(t, err, ErrTenantAlreadyAssigned)
}

func TestSetPermission(t *testing.T) {
	record, err := NewMember(shared.NewID(), shared.NewID(), "m@example.com", "Member", RoleView, nil)
	require.NoError(t, err)

	require.NoError(t, record.SetPermission(ResourceInvoices, LevelWrite))
	assert.True(t, record.Can(ResourceInvoices, LevelWrite))

	assert.Error(t, record.SetPermission(Resource("secrets"), LevelRead))
	assert.Error(t, record.SetPermission(ResourceCosts, Level("admin")))
}
