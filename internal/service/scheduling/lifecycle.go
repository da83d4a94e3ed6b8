package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/service/audit"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
)

// authorizeManage resolves which appointments the caller may change. cancel
// adds the patient's cancel_own capability.
func authorizeManage(tc *tenant.Context, cancel bool) (permission.Scope, error) {
	scope, err := permission.Visibility(tc, permission.AppointmentsManageOwn, permission.AppointmentsManageAll)
	if err == nil {
		return scope, nil
	}
	if cancel && permission.Can(tc, permission.AppointmentsCancelOwn) {
		return permission.ScopeOwn, nil
	}
	return permission.ScopeNone, err
}

// loadForChange locks the appointment and enforces ownership and state
func loadForChange(ctx context.Context, tx repository.Repositories, scope model.ClinicScope, tc *tenant.Context, vis permission.Scope, id uuid.UUID) (*model.Appointment, error) {
	appt, err := tx.Appointments().GetForUpdate(ctx, scope, id)
	if err != nil {
		return nil, repository.Translate(err, errors.KindAppointmentNotFound)
	}
	if vis == permission.ScopeOwn {
		owns, err := ownsAppointment(ctx, tx, scope, tc, appt)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, errors.ErrPermissionDenied
		}
	}
	if appt.Status.Terminal() {
		return nil, errors.Newf(errors.KindInvalidTransition, "appointment is %s", appt.Status)
	}
	return appt, nil
}

// RescheduleAppointment moves a scheduled appointment to newStart keeping its
// booked duration.
func (e *Engine) RescheduleAppointment(ctx context.Context, tc *tenant.Context, id uuid.UUID, newStart time.Time) (*model.Appointment, error) {
	vis, err := authorizeManage(tc, false)
	if err != nil {
		return nil, err
	}
	if newStart.IsZero() {
		return nil, errors.InvalidInput("start_time is required", nil)
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}
	clinic, err := e.clinic(ctx, e.store, scope)
	if err != nil {
		return nil, err
	}

	start := newStart.UTC()
	var before, after model.Appointment
	err = e.store.WithTx(ctx, func(tx repository.Repositories) error {
		appt, err := loadForChange(ctx, tx, scope, tc, vis, id)
		if err != nil {
			return err
		}
		before = *appt

		if !e.bookable(tc, start) {
			return errors.ErrSlotConflict
		}
		ok, err := e.onGrid(clinic, start, appt.DurationMinutes)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrSlotConflict
		}

		appt.StartTime = start
		if appt.TherapistID != nil {
			conflict, err := tx.Appointments().HasConflict(ctx, scope, *appt.TherapistID, appt.StartTime, appt.EndTime(), &appt.ID)
			if err != nil {
				return repository.Translate(err, errors.KindAppointmentNotFound)
			}
			if conflict {
				return errors.ErrSlotConflict
			}
		}
		if err := tx.Appointments().Reschedule(ctx, scope, appt); err != nil {
			return repository.Translate(err, errors.KindAppointmentNotFound)
		}
		after = *appt

		return audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     model.AuditActionReschedule,
			EntityType: model.AuditEntityAppointment,
			EntityID:   appt.ID,
			Old:        before,
			New:        after,
		})
	})
	if err != nil {
		if errors.KindOf(err) == errors.KindSlotConflict {
			e.metrics.SlotConflicts.Inc()
		}
		return nil, repository.Translate(err, errors.KindAppointmentNotFound)
	}

	e.notify(ctx, scope, clinic, &after, model.TemplateAppointmentRescheduled)
	return &after, nil
}

// CancelAppointment moves a scheduled appointment to cancelled
func (e *Engine) CancelAppointment(ctx context.Context, tc *tenant.Context, id uuid.UUID, reason string) (*model.Appointment, error) {
	appt, err := e.transition(ctx, tc, id, model.AppointmentStatusCancelled, model.AuditActionCancel, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	scope, _ := tc.Scope()
	if clinic, err := e.clinic(ctx, e.store, scope); err == nil {
		e.notify(ctx, scope, clinic, appt, model.TemplateAppointmentCancelled)
	}
	return appt, nil
}

// MarkNoShow records that the patient did not attend. Only staff may do it
// and only once the appointment has started.
func (e *Engine) MarkNoShow(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Appointment, error) {
	return e.transition(ctx, tc, id, model.AppointmentStatusNoShow, model.AuditActionNoShow, "")
}

func (e *Engine) transition(ctx context.Context, tc *tenant.Context, id uuid.UUID, to model.AppointmentStatus, action, reason string) (*model.Appointment, error) {
	vis, err := authorizeManage(tc, to == model.AppointmentStatusCancelled)
	if err != nil {
		return nil, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	var after model.Appointment
	err = e.store.WithTx(ctx, func(tx repository.Repositories) error {
		appt, err := loadForChange(ctx, tx, scope, tc, vis, id)
		if err != nil {
			return err
		}
		before := *appt

		if to == model.AppointmentStatusNoShow && e.now().Before(appt.StartTime) {
			return errors.Newf(errors.KindInvalidTransition, "appointment has not started yet")
		}

		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		if err := tx.Appointments().UpdateStatus(ctx, scope, appt.ID, to, reasonPtr); err != nil {
			return repository.Translate(err, errors.KindAppointmentNotFound)
		}
		appt.Status = to
		if reasonPtr != nil {
			appt.CancelReason = reasonPtr
		}
		after = *appt

		return audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     action,
			EntityType: model.AuditEntityAppointment,
			EntityID:   appt.ID,
			Old:        before,
			New:        after,
		})
	})
	if err != nil {
		return nil, repository.Translate(err, errors.KindAppointmentNotFound)
	}

	e.logger.WithContext(ctx).Info("appointment status changed",
		"appointment_id", id.String(),
		"status", string(to))
	return &after, nil
}
