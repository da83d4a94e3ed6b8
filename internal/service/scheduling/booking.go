package scheduling

import (
	"context"
	stderrors "errors"
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

type BookingRequest struct {
	Patient     model.PatientRef `json:"patient"`
	ServiceID   uuid.UUID        `json:"service_id" validate:"required"`
	TherapistID *uuid.UUID       `json:"therapist_id,omitempty"`
	StartTime   time.Time        `json:"start_time" validate:"required"`
	Notes       string           `json:"notes" validate:"max=2000"`
	// ClinicID is optional and only cross-checked against the caller
	ClinicID uuid.UUID `json:"clinic_id,omitempty"`
}

// BookAppointment books a slot on the clinic grid. The conflict check and
// the insert share one transaction; the storage overlap constraint settles
// races between concurrent bookings.
func (e *Engine) BookAppointment(ctx context.Context, tc *tenant.Context, req BookingRequest) (*model.Appointment, error) {
	appt, err := e.book(ctx, tc, req)
	switch {
	case err == nil:
		e.metrics.Bookings.WithLabelValues("booked").Inc()
	case errors.KindOf(err) == errors.KindSlotConflict:
		e.metrics.Bookings.WithLabelValues("conflict").Inc()
		e.metrics.SlotConflicts.Inc()
	default:
		e.metrics.Bookings.WithLabelValues("rejected").Inc()
	}
	return appt, err
}

func (e *Engine) book(ctx context.Context, tc *tenant.Context, req BookingRequest) (*model.Appointment, error) {
	selfService := false
	switch {
	case permission.Can(tc, permission.AppointmentsBook):
	case permission.Can(tc, permission.AppointmentsBookSelf):
		selfService = true
	default:
		return nil, errors.ErrPermissionDenied
	}
	if err := tc.CheckClinic(req.ClinicID); err != nil {
		return nil, err
	}
	if err := e.validator.Validate(req); err != nil {
		return nil, errors.InvalidInput(err.Error(), err)
	}
	if selfService && req.Patient.PatientID != nil {
		return nil, errors.InvalidInput("self-service bookings identify the patient by email", nil)
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	clinic, err := e.clinic(ctx, e.store, scope)
	if err != nil {
		return nil, err
	}
	if !clinic.BookingEnabled {
		return nil, errors.ErrClinicBookingDisabled
	}
	svc, err := e.service(ctx, e.store, scope, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if req.TherapistID != nil {
		if err := e.therapist(ctx, e.store, scope, *req.TherapistID); err != nil {
			return nil, err
		}
	}

	start := req.StartTime.UTC()
	if !e.bookable(tc, start) {
		return nil, errors.ErrSlotConflict
	}
	ok, err := e.onGrid(clinic, start, svc.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ErrSlotConflict
	}

	var bookedBy *uuid.UUID
	var linkUser *uuid.UUID
	if tc.PrincipalID != uuid.Nil {
		id := tc.PrincipalID
		bookedBy = &id
		if tc.Role == model.RolePatient {
			linkUser = &id
		}
	}

	serviceID := svc.ID
	appt := &model.Appointment{
		TherapistID:     req.TherapistID,
		ServiceID:       &serviceID,
		StartTime:       start,
		DurationMinutes: svc.DurationMinutes,
		Status:          model.AppointmentStatusScheduled,
		Notes:           strings.TrimSpace(req.Notes),
		BookedBy:        bookedBy,
	}

	var p *model.Patient
	err = e.store.WithTx(ctx, func(tx repository.Repositories) error {
		var created bool
		var err error
		p, created, err = e.resolvePatient(ctx, tx, scope, tc, req.Patient, linkUser)
		if err != nil {
			return err
		}
		appt.PatientID = p.ID

		if appt.TherapistID != nil {
			conflict, err := tx.Appointments().HasConflict(ctx, scope, *appt.TherapistID, appt.StartTime, appt.EndTime(), nil)
			if err != nil {
				return repository.Translate(err, errors.KindAppointmentNotFound)
			}
			if conflict {
				return errors.ErrSlotConflict
			}
		}
		if err := tx.Appointments().Create(ctx, scope, appt); err != nil {
			return repository.Translate(err, errors.KindAppointmentNotFound)
		}

		if created {
			if err := audit.Record(ctx, tx, scope, tc, audit.Entry{
				Action:     model.AuditActionCreate,
				EntityType: model.AuditEntityPatient,
				EntityID:   p.ID,
				New:        p,
			}); err != nil {
				return err
			}
		}
		return audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     model.AuditActionCreate,
			EntityType: model.AuditEntityAppointment,
			EntityID:   appt.ID,
			New:        appt,
		})
	})
	if err != nil {
		return nil, repository.Translate(err, errors.KindAppointmentNotFound)
	}

	e.logger.WithContext(ctx).Info("appointment booked",
		"appointment_id", appt.ID.String(),
		"clinic_id", scope.ClinicID().String(),
		"role", string(tc.Role))
	e.notifier.Send(ctx, model.TemplateAppointmentConfirmed, p.Email, e.appointmentVars(clinic, appt, p))
	return appt, nil
}

// resolvePatient picks the booking's patient. A logged-in patient books for
// their own linked record when one exists, otherwise for the record keyed by
// their login email.
func (e *Engine) resolvePatient(ctx context.Context, tx repository.Repositories, scope model.ClinicScope, tc *tenant.Context, ref model.PatientRef, linkUser *uuid.UUID) (*model.Patient, bool, error) {
	if tc.Role != model.RolePatient {
		return e.patients.Resolve(ctx, tx, scope, ref, linkUser)
	}

	p, err := tx.Patients().FindByUser(ctx, scope, tc.PrincipalID)
	if err == nil {
		return p, false, nil
	}
	if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, false, repository.Translate(err, errors.KindPatientNotFound)
	}

	member, err := tx.Memberships().GetInClinic(ctx, scope, tc.PrincipalID)
	if err != nil {
		return nil, false, repository.Translate(err, errors.KindNoTenantBinding)
	}
	email := model.NormalizeEmail(member.Email)
	if email == "" {
		return nil, false, errors.ErrPermissionDenied
	}
	if ref.Email != "" && model.NormalizeEmail(ref.Email) != email {
		return nil, false, errors.ErrPermissionDenied
	}
	ref.Email = email

	p, created, err := e.patients.Resolve(ctx, tx, scope, ref, &tc.PrincipalID)
	if err != nil || created {
		return p, created, err
	}
	if p.UserID != nil {
		if *p.UserID != tc.PrincipalID {
			return nil, false, errors.ErrPermissionDenied
		}
		return p, false, nil
	}
	if err := tx.Patients().LinkUser(ctx, scope, p.ID, tc.PrincipalID); err != nil {
		if stderrors.Is(err, repository.ErrStale) {
			return nil, false, errors.ErrPermissionDenied
		}
		return nil, false, repository.Translate(err, errors.KindPatientNotFound)
	}
	userID := tc.PrincipalID
	p.UserID = &userID
	return p, false, nil
}
