// Package permission maps roles to a closed set of capabilities. It performs
// no I/O.
package permission

import (
	"sort"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
)

type Capability string

const (
	PatientsView   Capability = "patients:view"
	PatientsManage Capability = "patients:manage"

	SlotsView Capability = "slots:view"

	AppointmentsViewOwn   Capability = "appointments:view_own"
	AppointmentsViewAll   Capability = "appointments:view_all"
	AppointmentsBook      Capability = "appointments:book"
	AppointmentsBookSelf  Capability = "appointments:book_self"
	AppointmentsManageOwn Capability = "appointments:manage_own"
	AppointmentsManageAll Capability = "appointments:manage_all"
	AppointmentsCancelOwn Capability = "appointments:cancel_own"

	SessionsCreate  Capability = "sessions:create"
	SessionsViewOwn Capability = "sessions:view_own"
	SessionsViewAll Capability = "sessions:view_all"

	PrescriptionsManage  Capability = "prescriptions:manage"
	PrescriptionsViewOwn Capability = "prescriptions:view_own"
	PrescriptionsViewAll Capability = "prescriptions:view_all"

	AdherenceLogOwn Capability = "adherence:log_own"
	AdherenceLogAll Capability = "adherence:log_all"

	ReportsView     Capability = "reports:view"
	AuditView       Capability = "audit:view"
	UsersManage     Capability = "users:manage"
	ClinicConfigure Capability = "clinic:configure"
)

// All lists every capability
var All = []Capability{
	PatientsView, PatientsManage,
	SlotsView,
	AppointmentsViewOwn, AppointmentsViewAll, AppointmentsBook, AppointmentsBookSelf,
	AppointmentsManageOwn, AppointmentsManageAll, AppointmentsCancelOwn,
	SessionsCreate, SessionsViewOwn, SessionsViewAll,
	PrescriptionsManage, PrescriptionsViewOwn, PrescriptionsViewAll,
	AdherenceLogOwn, AdherenceLogAll,
	ReportsView, AuditView, UsersManage, ClinicConfigure,
}

type set map[Capability]struct{}

func setOf(caps ...Capability) set {
	s := make(set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

var table = map[model.Role]set{
	model.RolePlatformAdmin: setOf(All...),
	model.RoleClinicManager: setOf(
		PatientsView, PatientsManage,
		SlotsView,
		AppointmentsViewAll, AppointmentsBook, AppointmentsManageAll,
		SessionsCreate, SessionsViewAll,
		PrescriptionsManage, PrescriptionsViewAll,
		AdherenceLogAll,
		ReportsView, AuditView, UsersManage, ClinicConfigure,
	),
	model.RoleTherapist: setOf(
		PatientsView,
		SlotsView,
		AppointmentsViewOwn, AppointmentsBook, AppointmentsManageOwn,
		SessionsCreate, SessionsViewOwn,
		PrescriptionsManage, PrescriptionsViewAll,
		AdherenceLogAll,
	),
	model.RoleReceptionist: setOf(
		PatientsView, PatientsManage,
		SlotsView,
		AppointmentsViewAll, AppointmentsBook, AppointmentsManageAll,
	),
	model.RolePatient: setOf(
		SlotsView,
		AppointmentsViewOwn, AppointmentsBookSelf, AppointmentsCancelOwn,
		PrescriptionsViewOwn,
		AdherenceLogOwn,
	),
	model.RolePublic: setOf(
		SlotsView,
		AppointmentsBookSelf,
	),
}

// RoleHas reports whether role grants c
func RoleHas(role model.Role, c Capability) bool {
	_, ok := table[role][c]
	return ok
}

// Capabilities returns the sorted capability list of a role
func Capabilities(role model.Role) []Capability {
	out := make([]Capability, 0, len(table[role]))
	for c := range table[role] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func Can(tc *tenant.Context, c Capability) bool {
	return tc != nil && RoleHas(tc.Role, c)
}

// Require fails with PermissionDenied unless tc holds c
func Require(tc *tenant.Context, c Capability) error {
	if !Can(tc, c) {
		return errors.ErrPermissionDenied
	}
	return nil
}

// RequireAny fails with PermissionDenied unless tc holds at least one of caps
func RequireAny(tc *tenant.Context, caps ...Capability) error {
	for _, c := range caps {
		if Can(tc, c) {
			return nil
		}
	}
	return errors.ErrPermissionDenied
}

// Scope says which rows a caller may reach through a capability pair
type Scope int

const (
	ScopeNone Scope = iota
	// ScopeOwn limits to rows tied to the caller: a therapist's assigned
	// appointments, a patient's linked patient record.
	ScopeOwn
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeOwn:
		return "own"
	case ScopeAll:
		return "all"
	default:
		return "none"
	}
}

// Visibility resolves an _own/_all capability pair; _all wins
func Visibility(tc *tenant.Context, own, all Capability) (Scope, error) {
	switch {
	case Can(tc, all):
		return ScopeAll, nil
	case Can(tc, own):
		return ScopeOwn, nil
	default:
		return ScopeNone, errors.ErrPermissionDenied
	}
}
