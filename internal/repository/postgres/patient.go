package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository"
)

const patientColumns = `
	id, clinic_id, user_id, first_name, last_name, email, phone,
	created_at, updated_at`

type patientRepository struct {
	q sqlx.ExtContext
}

func (r *patientRepository) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Patient, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + patientColumns + ` FROM patients WHERE clinic_id = $1 AND id = $2`

	var p model.Patient
	if err := sqlx.GetContext(ctx, r.q, &p, query, scope.ClinicID(), id); err != nil {
		return nil, notFound(err, "patient")
	}
	return &p, nil
}

func (r *patientRepository) FindByEmail(ctx context.Context, scope model.ClinicScope, email string) (*model.Patient, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + patientColumns + ` FROM patients WHERE clinic_id = $1 AND lower(email) = $2`

	var p model.Patient
	if err := sqlx.GetContext(ctx, r.q, &p, query, scope.ClinicID(), model.NormalizeEmail(email)); err != nil {
		return nil, notFound(err, "patient")
	}
	return &p, nil
}

func (r *patientRepository) FindByUser(ctx context.Context, scope model.ClinicScope, userID uuid.UUID) (*model.Patient, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + patientColumns + `
		FROM patients
		WHERE clinic_id = $1 AND user_id = $2
		ORDER BY created_at ASC
		LIMIT 1
	`
	var p model.Patient
	if err := sqlx.GetContext(ctx, r.q, &p, query, scope.ClinicID(), userID); err != nil {
		return nil, notFound(err, "patient")
	}
	return &p, nil
}

func (r *patientRepository) LinkUser(ctx context.Context, scope model.ClinicScope, id, userID uuid.UUID) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		UPDATE patients
		SET user_id = $1, updated_at = $2
		WHERE clinic_id = $3 AND id = $4 AND user_id IS NULL
	`
	res, err := r.q.ExecContext(ctx, query, userID, time.Now().UTC(), scope.ClinicID(), id)
	if err != nil {
		return fmt.Errorf("failed to link patient user: %w", err)
	}
	return expectOne(res, repository.ErrStale)
}

// Create uses ON CONFLICT DO NOTHING so a lost race does not abort the
// surrounding transaction.
func (r *patientRepository) Create(ctx context.Context, scope model.ClinicScope, patient *model.Patient) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		INSERT INTO patients (
			id, clinic_id, user_id, first_name, last_name, email, phone,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (clinic_id, lower(email)) DO NOTHING
		RETURNING id
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.ClinicID = scope.ClinicID()
	patient.Email = model.NormalizeEmail(patient.Email)
	patient.CreatedAt = time.Now().UTC()
	patient.UpdatedAt = patient.CreatedAt

	var id uuid.UUID
	err := r.q.QueryRowxContext(ctx, query,
		patient.ID,
		patient.ClinicID,
		patient.UserID,
		patient.FirstName,
		patient.LastName,
		patient.Email,
		patient.Phone,
		patient.CreatedAt,
		patient.UpdatedAt,
	).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows), violates(err, codeUniqueViolation):
		return repository.ErrDuplicatePatient
	case err != nil:
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}
