package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-core/internal/model"
)

const membershipColumns = `
	id, principal_id, clinic_id, role, display_name, email,
	active, created_at, updated_at`

type membershipRepository struct {
	q sqlx.ExtContext
}

func (r *membershipRepository) GetActiveByPrincipal(ctx context.Context, principalID uuid.UUID) (*model.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE principal_id = $1 AND active
	`
	var m model.Membership
	if err := sqlx.GetContext(ctx, r.q, &m, query, principalID); err != nil {
		return nil, notFound(err, "membership")
	}
	return &m, nil
}

func (r *membershipRepository) GetInClinic(ctx context.Context, scope model.ClinicScope, principalID uuid.UUID) (*model.Membership, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE clinic_id = $1 AND principal_id = $2 AND active
	`
	var m model.Membership
	if err := sqlx.GetContext(ctx, r.q, &m, query, scope.ClinicID(), principalID); err != nil {
		return nil, notFound(err, "membership")
	}
	return &m, nil
}
