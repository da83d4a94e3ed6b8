package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-core/internal/model"
)

type paymentRepository struct {
	q sqlx.ExtContext
}

func (r *paymentRepository) ListInRange(ctx context.Context, scope model.ClinicScope, from, to time.Time) ([]*model.Payment, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `
		SELECT id, clinic_id, patient_id, appointment_id, amount, paid_at
		FROM payments
		WHERE clinic_id = $1 AND paid_at >= $2 AND paid_at < $3
		ORDER BY paid_at ASC
	`
	var payments []*model.Payment
	if err := sqlx.SelectContext(ctx, r.q, &payments, query, scope.ClinicID(), from, to); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
