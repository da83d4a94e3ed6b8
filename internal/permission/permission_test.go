package permission_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	apperrors "github.com/jwalitptl/clinic-core/pkg/errors"
)

func ctxFor(role model.Role) *tenant.Context {
	return tenant.NewContext(uuid.New(), role, uuid.New())
}

func TestRoleTable(t *testing.T) {
	tests := []struct {
		role    model.Role
		allowed []permission.Capability
		denied  []permission.Capability
	}{
		{
			role:    model.RolePlatformAdmin,
			allowed: permission.All,
		},
		{
			role:    model.RoleClinicManager,
			allowed: []permission.Capability{permission.ReportsView, permission.AuditView, permission.AppointmentsManageAll, permission.SessionsCreate},
			denied:  []permission.Capability{permission.AppointmentsViewOwn, permission.AppointmentsBookSelf, permission.AdherenceLogOwn},
		},
		{
			role:    model.RoleTherapist,
			allowed: []permission.Capability{permission.AppointmentsViewOwn, permission.AppointmentsManageOwn, permission.SessionsCreate, permission.PrescriptionsManage},
			denied:  []permission.Capability{permission.AppointmentsViewAll, permission.ReportsView, permission.PatientsManage},
		},
		{
			role:    model.RoleReceptionist,
			allowed: []permission.Capability{permission.PatientsManage, permission.AppointmentsBook, permission.AppointmentsManageAll},
			denied:  []permission.Capability{permission.SessionsCreate, permission.SessionsViewAll, permission.PrescriptionsViewAll},
		},
		{
			role:    model.RolePatient,
			allowed: []permission.Capability{permission.AppointmentsBookSelf, permission.AppointmentsCancelOwn, permission.AdherenceLogOwn},
			denied:  []permission.Capability{permission.AppointmentsBook, permission.PatientsView, permission.SessionsViewOwn},
		},
		{
			role:    model.RolePublic,
			allowed: []permission.Capability{permission.SlotsView, permission.AppointmentsBookSelf},
			denied:  []permission.Capability{permission.AppointmentsViewOwn, permission.AppointmentsCancelOwn},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			for _, c := range tt.allowed {
				assert.True(t, permission.RoleHas(tt.role, c), "expected %s", c)
			}
			for _, c := range tt.denied {
				assert.False(t, permission.RoleHas(tt.role, c), "unexpected %s", c)
			}
		})
	}

	assert.False(t, permission.RoleHas(model.Role("janitor"), permission.SlotsView))
	assert.Empty(t, permission.Capabilities(model.Role("janitor")))
}

func TestCapabilitiesSorted(t *testing.T) {
	caps := permission.Capabilities(model.RolePlatformAdmin)
	require.Len(t, caps, len(permission.All))
	for i := 1; i < len(caps); i++ {
		assert.Less(t, string(caps[i-1]), string(caps[i]))
	}
}

func TestRequire(t *testing.T) {
	assert.NoError(t, permission.Require(ctxFor(model.RoleReceptionist), permission.AppointmentsBook))

	err := permission.Require(ctxFor(model.RolePatient), permission.AppointmentsBook)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	err = permission.Require(nil, permission.SlotsView)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))

	assert.NoError(t, permission.RequireAny(ctxFor(model.RolePatient), permission.AppointmentsBook, permission.AppointmentsBookSelf))
	assert.Error(t, permission.RequireAny(ctxFor(model.RolePublic), permission.ReportsView, permission.AuditView))
}

func TestVisibility(t *testing.T) {
	tests := []struct {
		role model.Role
		want permission.Scope
	}{
		{model.RolePlatformAdmin, permission.ScopeAll},
		{model.RoleClinicManager, permission.ScopeAll},
		{model.RoleReceptionist, permission.ScopeAll},
		{model.RoleTherapist, permission.ScopeOwn},
		{model.RolePatient, permission.ScopeOwn},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, err := permission.Visibility(ctxFor(tt.role), permission.AppointmentsViewOwn, permission.AppointmentsViewAll)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := permission.Visibility(ctxFor(model.RolePublic), permission.AppointmentsViewOwn, permission.AppointmentsViewAll)
	assert.Equal(t, permission.ScopeNone, got)
	assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))
	assert.Equal(t, "none", got.String())
}
