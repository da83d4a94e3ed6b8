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

const sessionColumns = `
	id, clinic_id, appointment_id, therapist_id, patient_id,
	subjective, objective, assessment, plan, pain_level,
	created_at, updated_at`

type sessionRepository struct {
	q sqlx.ExtContext
}

func (r *sessionRepository) Create(ctx context.Context, scope model.ClinicScope, session *model.Session) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		INSERT INTO sessions (
			id, clinic_id, appointment_id, therapist_id, patient_id,
			subjective, objective, assessment, plan, pain_level,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.ClinicID = scope.ClinicID()
	session.CreatedAt = time.Now().UTC()
	session.UpdatedAt = session.CreatedAt

	_, err := r.q.ExecContext(ctx, query,
		session.ID,
		session.ClinicID,
		session.AppointmentID,
		session.TherapistID,
		session.PatientID,
		session.Subjective,
		session.Objective,
		session.Assessment,
		session.Plan,
		session.PainLevel,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if violates(err, codeUniqueViolation) {
		return repository.ErrSessionExists
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) GetByAppointment(ctx context.Context, scope model.ClinicScope, appointmentID uuid.UUID) (*model.Session, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE clinic_id = $1 AND appointment_id = $2
	`
	var s model.Session
	if err := sqlx.GetContext(ctx, r.q, &s, query, scope.ClinicID(), appointmentID); err != nil {
		return nil, notFound(err, "session")
	}
	return &s, nil
}

func (r *sessionRepository) ListInRange(ctx context.Context, scope model.ClinicScope, from, to time.Time) ([]*model.Session, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE clinic_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC
	`
	var sessions []*model.Session
	if err := sqlx.SelectContext(ctx, r.q, &sessions, query, scope.ClinicID(), from, to); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
