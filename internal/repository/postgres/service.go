package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-core/internal/model"
)

type serviceRepository struct {
	q sqlx.ExtContext
}

func (r *serviceRepository) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Service, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `
		SELECT id, clinic_id, name, description, duration_minutes, price,
			   active, created_at, updated_at
		FROM services
		WHERE clinic_id = $1 AND id = $2
	`
	var svc model.Service
	if err := sqlx.GetContext(ctx, r.q, &svc, query, scope.ClinicID(), id); err != nil {
		return nil, notFound(err, "service")
	}
	return &svc, nil
}
