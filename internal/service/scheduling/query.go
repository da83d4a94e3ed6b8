package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
)

func (e *Engine) GetAppointment(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Appointment, error) {
	vis, err := permission.Visibility(tc, permission.AppointmentsViewOwn, permission.AppointmentsViewAll)
	if err != nil {
		return nil, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	appt, err := e.store.Appointments().Get(ctx, scope, id)
	if err != nil {
		return nil, repository.Translate(err, errors.KindAppointmentNotFound)
	}
	if vis == permission.ScopeOwn {
		owns, err := ownsAppointment(ctx, e.store, scope, tc, appt)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, errors.ErrPermissionDenied
		}
	}
	return appt, nil
}

// ListAppointments narrows filters to the caller's own appointments when it
// only holds view_own.
func (e *Engine) ListAppointments(ctx context.Context, tc *tenant.Context, filters model.AppointmentFilters) ([]*model.Appointment, error) {
	vis, err := permission.Visibility(tc, permission.AppointmentsViewOwn, permission.AppointmentsViewAll)
	if err != nil {
		return nil, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	if vis == permission.ScopeOwn {
		self := tc.PrincipalID
		switch tc.Role {
		case model.RoleTherapist:
			filters.TherapistID = &self
		case model.RolePatient:
			filters.PatientUserID = &self
		default:
			return nil, errors.ErrPermissionDenied
		}
	}
	filters.Pagination = filters.Pagination.Normalize()

	appts, err := e.store.Appointments().List(ctx, scope, filters)
	if err != nil {
		return nil, repository.Translate(err, errors.KindAppointmentNotFound)
	}
	if appts == nil {
		appts = []*model.Appointment{}
	}
	return appts, nil
}
