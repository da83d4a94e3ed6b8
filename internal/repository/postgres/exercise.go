package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-core/internal/model"
)

type exerciseRepository struct {
	q sqlx.ExtContext
}

func (r *exerciseRepository) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Exercise, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `
		SELECT id, clinic_id, name, description, created_at, updated_at
		FROM exercises
		WHERE clinic_id = $1 AND id = $2
	`
	var ex model.Exercise
	if err := sqlx.GetContext(ctx, r.q, &ex, query, scope.ClinicID(), id); err != nil {
		return nil, notFound(err, "exercise")
	}
	return &ex, nil
}
