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

const prescriptionColumns = `
	id, clinic_id, patient_id, exercise_id, prescribed_by,
	sets, reps, dosage_duration_minutes, frequency_per_week,
	start_date, end_date, status, notes, created_at, updated_at`

type prescriptionRepository struct {
	q sqlx.ExtContext
}

func (r *prescriptionRepository) Create(ctx context.Context, scope model.ClinicScope, p *model.Prescription) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		INSERT INTO prescriptions (
			id, clinic_id, patient_id, exercise_id, prescribed_by,
			sets, reps, dosage_duration_minutes, frequency_per_week,
			start_date, end_date, status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.ClinicID = scope.ClinicID()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt

	_, err := r.q.ExecContext(ctx, query,
		p.ID,
		p.ClinicID,
		p.PatientID,
		p.ExerciseID,
		p.PrescribedBy,
		p.Sets,
		p.Reps,
		p.Dosage.DurationMinutes,
		p.FrequencyPerWeek,
		p.StartDate,
		p.EndDate,
		p.Status,
		p.Notes,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Prescription, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE clinic_id = $1 AND id = $2`

	var p model.Prescription
	if err := sqlx.GetContext(ctx, r.q, &p, query, scope.ClinicID(), id); err != nil {
		return nil, notFound(err, "prescription")
	}
	return &p, nil
}

func (r *prescriptionRepository) UpdateStatus(ctx context.Context, scope model.ClinicScope, id uuid.UUID, from, to model.PrescriptionStatus) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		UPDATE prescriptions
		SET status = $1, updated_at = $2
		WHERE clinic_id = $3 AND id = $4 AND status = $5
	`
	res, err := r.q.ExecContext(ctx, query, to, time.Now().UTC(), scope.ClinicID(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update prescription status: %w", err)
	}
	return expectOne(res, repository.ErrStale)
}

func (r *prescriptionRepository) ListByPatient(ctx context.Context, scope model.ClinicScope, patientID uuid.UUID) ([]*model.Prescription, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + prescriptionColumns + `
		FROM prescriptions
		WHERE clinic_id = $1 AND patient_id = $2
		ORDER BY start_date DESC, created_at DESC
	`
	var out []*model.Prescription
	if err := sqlx.SelectContext(ctx, r.q, &out, query, scope.ClinicID(), patientID); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return out, nil
}
