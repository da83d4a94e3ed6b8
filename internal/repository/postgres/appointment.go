package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository"
)

// end_time is never selected; the model derives it from duration_minutes
const appointmentColumns = `
	id, clinic_id, patient_id, therapist_id, service_id,
	start_time, duration_minutes, status, notes, cancel_reason,
	booked_by, created_at, updated_at`

type appointmentRepository struct {
	q sqlx.ExtContext
}

func (r *appointmentRepository) Create(ctx context.Context, scope model.ClinicScope, appointment *model.Appointment) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		INSERT INTO appointments (
			id, clinic_id, patient_id, therapist_id, service_id,
			start_time, duration_minutes, end_time, status, notes,
			booked_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.ClinicID = scope.ClinicID()
	appointment.CreatedAt = time.Now().UTC()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err := r.q.ExecContext(ctx, query,
		appointment.ID,
		appointment.ClinicID,
		appointment.PatientID,
		appointment.TherapistID,
		appointment.ServiceID,
		appointment.StartTime,
		appointment.DurationMinutes,
		appointment.EndTime(),
		appointment.Status,
		appointment.Notes,
		appointment.BookedBy,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if violates(err, codeExclusionViolation) {
		return repository.ErrOverlap
	}
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, scope, id, "")
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, scope, id, " FOR UPDATE")
}

func (r *appointmentRepository) get(ctx context.Context, scope model.ClinicScope, id uuid.UUID, lock string) (*model.Appointment, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinic_id = $1 AND id = $2` + lock

	var appointment model.Appointment
	if err := sqlx.GetContext(ctx, r.q, &appointment, query, scope.ClinicID(), id); err != nil {
		return nil, notFound(err, "appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) ListScheduledForTherapist(ctx context.Context, scope model.ClinicScope, therapistID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinic_id = $1
		AND therapist_id = $2
		AND status = 'scheduled'
		AND start_time < $4
		AND end_time > $3
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	err := sqlx.SelectContext(ctx, r.q, &appointments, query, scope.ClinicID(), therapistID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get therapist appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) HasConflict(ctx context.Context, scope model.ClinicScope, therapistID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	if err := checkScope(scope); err != nil {
		return false, err
	}
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE clinic_id = $1
			AND therapist_id = $2
			AND status = 'scheduled'
			AND start_time < $4
			AND end_time > $3
	`
	args := []interface{}{scope.ClinicID(), therapistID, start, end}

	if excludeID != nil {
		query += " AND id != $5"
		args = append(args, *excludeID)
	}

	query += ")"

	var hasConflict bool
	if err := sqlx.GetContext(ctx, r.q, &hasConflict, query, args...); err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return hasConflict, nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, scope model.ClinicScope, appointment *model.Appointment) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		UPDATE appointments
		SET start_time = $1, end_time = $2, updated_at = $3
		WHERE clinic_id = $4 AND id = $5 AND status = 'scheduled'
	`
	appointment.UpdatedAt = time.Now().UTC()

	res, err := r.q.ExecContext(ctx, query,
		appointment.StartTime,
		appointment.EndTime(),
		appointment.UpdatedAt,
		scope.ClinicID(),
		appointment.ID,
	)
	if violates(err, codeExclusionViolation) {
		return repository.ErrOverlap
	}
	if err != nil {
		return fmt.Errorf("failed to reschedule appointment: %w", err)
	}
	return expectOne(res, repository.ErrStale)
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, scope model.ClinicScope, id uuid.UUID, to model.AppointmentStatus, reason *string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		UPDATE appointments
		SET status = $1, cancel_reason = COALESCE($2, cancel_reason), updated_at = $3
		WHERE clinic_id = $4 AND id = $5 AND status = 'scheduled'
	`
	res, err := r.q.ExecContext(ctx, query, to, reason, time.Now().UTC(), scope.ClinicID(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return expectOne(res, repository.ErrStale)
}

func (r *appointmentRepository) List(ctx context.Context, scope model.ClinicScope, filters model.AppointmentFilters) ([]*model.Appointment, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + prefixed("a", appointmentColumns) + `
		FROM appointments a
		WHERE a.clinic_id = $1
	`
	args := []interface{}{scope.ClinicID()}
	argCount := 2

	if filters.TherapistID != nil {
		query += fmt.Sprintf(" AND a.therapist_id = $%d", argCount)
		args = append(args, *filters.TherapistID)
		argCount++
	}

	if filters.PatientID != nil {
		query += fmt.Sprintf(" AND a.patient_id = $%d", argCount)
		args = append(args, *filters.PatientID)
		argCount++
	}

	if filters.PatientUserID != nil {
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM patients p
			WHERE p.id = a.patient_id AND p.clinic_id = a.clinic_id AND p.user_id = $%d)`, argCount)
		args = append(args, *filters.PatientUserID)
		argCount++
	}

	if filters.Status != nil {
		query += fmt.Sprintf(" AND a.status = $%d", argCount)
		args = append(args, *filters.Status)
		argCount++
	}

	if filters.From != nil {
		query += fmt.Sprintf(" AND a.start_time >= $%d", argCount)
		args = append(args, *filters.From)
		argCount++
	}

	if filters.To != nil {
		query += fmt.Sprintf(" AND a.start_time < $%d", argCount)
		args = append(args, *filters.To)
		argCount++
	}

	page := filters.Pagination.Normalize()
	query += fmt.Sprintf(" ORDER BY a.start_time ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, page.Limit, page.Offset)

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, r.q, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
