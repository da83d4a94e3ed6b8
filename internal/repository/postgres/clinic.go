package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-core/internal/model"
)

const clinicColumns = `
	id, slug, name, subscription_tier, subscription_status,
	active, booking_enabled, timezone, working_hours,
	created_at, updated_at`

type clinicRepository struct {
	q sqlx.ExtContext
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = $1`

	var clinic model.Clinic
	if err := sqlx.GetContext(ctx, r.q, &clinic, query, id); err != nil {
		return nil, notFound(err, "clinic")
	}
	return &clinic, nil
}

func (r *clinicRepository) GetBySlug(ctx context.Context, slug string) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE slug = $1`

	var clinic model.Clinic
	if err := sqlx.GetContext(ctx, r.q, &clinic, query, slug); err != nil {
		return nil, notFound(err, "clinic")
	}
	return &clinic, nil
}
