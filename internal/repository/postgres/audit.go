package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-core/internal/model"
)

type auditRepository struct {
	q sqlx.ExtContext
}

// Create must run on the transaction of the change it records
func (r *auditRepository) Create(ctx context.Context, scope model.ClinicScope, log *model.AuditLog) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	query := `
		INSERT INTO audit_logs (
			id, clinic_id, actor_id, actor_role, action, entity_type, entity_id,
			old_data, new_data, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.ClinicID = scope.ClinicID()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, query,
		log.ID,
		log.ClinicID,
		log.ActorID,
		log.ActorRole,
		log.Action,
		log.EntityType,
		log.EntityID,
		nullJSON(log.OldData),
		nullJSON(log.NewData),
		log.RequestID,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, scope model.ClinicScope, filters model.AuditFilters) ([]*model.AuditLog, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	query := `
		SELECT id, clinic_id, actor_id, actor_role, action, entity_type, entity_id,
			   old_data, new_data, request_id, created_at
		FROM audit_logs
		WHERE clinic_id = $1
	`
	args := []interface{}{scope.ClinicID()}

	if filters.EntityType != "" {
		args = append(args, filters.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}

	if filters.EntityID != nil {
		args = append(args, *filters.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}

	if filters.ActorID != nil {
		args = append(args, *filters.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}

	page := filters.Pagination.Normalize()
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var logs []*model.AuditLog
	if err := sqlx.SelectContext(ctx, r.q, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
