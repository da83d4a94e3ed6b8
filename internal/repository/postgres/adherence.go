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

type adherenceRepository struct {
	q sqlx.ExtContext
}

func (r *adherenceRepository) Create(ctx context.Context, scope model.ClinicScope, log *model.AdherenceLog) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		INSERT INTO adherence_logs (
			id, clinic_id, prescription_id, log_date, completed,
			actual_sets, actual_reps, actual_duration_minutes, pain_level, notes,
			logged_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.ClinicID = scope.ClinicID()
	log.CreatedAt = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, query,
		log.ID,
		log.ClinicID,
		log.PrescriptionID,
		log.LogDate,
		log.Completed,
		log.Sets,
		log.Reps,
		log.DurationMinutes,
		log.PainLevel,
		log.Notes,
		log.LoggedBy,
		log.CreatedAt,
	)
	if violates(err, codeUniqueViolation) {
		return repository.ErrDuplicateLog
	}
	if err != nil {
		return fmt.Errorf("failed to create adherence log: %w", err)
	}
	return nil
}

func (r *adherenceRepository) ListRecent(ctx context.Context, scope model.ClinicScope, prescriptionID uuid.UUID, limit int) ([]*model.AdherenceLog, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `
		SELECT id, clinic_id, prescription_id, log_date, completed,
			   actual_sets, actual_reps, actual_duration_minutes, pain_level, notes,
			   logged_by, created_at
		FROM adherence_logs
		WHERE clinic_id = $1 AND prescription_id = $2
		ORDER BY log_date DESC
		LIMIT $3
	`
	var logs []*model.AdherenceLog
	if err := sqlx.SelectContext(ctx, r.q, &logs, query, scope.ClinicID(), prescriptionID, limit); err != nil {
		return nil, fmt.Errorf("failed to list adherence logs: %w", err)
	}
	return logs, nil
}
