package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/logger"
)

// Entry describes one state change. Old and New are marshalled as JSON.
type Entry struct {
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Old        interface{}
	New        interface{}
}

// Record appends an audit row through repos, which must be the transaction
// that performs the change being recorded.
func Record(ctx context.Context, repos repository.Repositories, scope model.ClinicScope, tc *tenant.Context, e Entry) error {
	oldData, err := marshal(e.Old)
	if err != nil {
		return err
	}
	newData, err := marshal(e.New)
	if err != nil {
		return err
	}

	log := &model.AuditLog{
		ID:         uuid.New(),
		ActorID:    tc.PrincipalID,
		ActorRole:  tc.Role,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldData:    oldData,
		NewData:    newData,
		RequestID:  logger.RequestIDFromContext(ctx),
		CreatedAt:  time.Now().UTC(),
	}
	if err := repos.Audit().Create(ctx, scope, log); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func marshal(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit data: %w", err)
	}
	return b, nil
}

// Service exposes the audit trail for reading
type Service struct {
	repos repository.Repositories
}

func NewService(repos repository.Repositories) *Service {
	return &Service{repos: repos}
}

func (s *Service) List(ctx context.Context, tc *tenant.Context, filters model.AuditFilters) ([]*model.AuditLog, error) {
	if err := permission.Require(tc, permission.AuditView); err != nil {
		return nil, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}
	filters.Pagination = filters.Pagination.Normalize()
	logs, err := s.repos.Audit().List(ctx, scope, filters)
	if err != nil {
		return nil, errors.StorageUnavailable(err)
	}
	return logs, nil
}
