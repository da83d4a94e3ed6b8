package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository"
)

const (
	codeUniqueViolation    = pq.ErrorCode("23505")
	codeExclusionViolation = pq.ErrorCode("23P01")
)

// Store implements repository.Store on top of sqlx
type Store struct {
	db *sqlx.DB
	repos
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, repos: repos{q: db}}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(repos{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// repos binds every repository to either the pool or an open transaction
type repos struct {
	q sqlx.ExtContext
}

func (r repos) Clinics() repository.ClinicRepository           { return &clinicRepository{q: r.q} }
func (r repos) Memberships() repository.MembershipRepository   { return &membershipRepository{q: r.q} }
func (r repos) Services() repository.ServiceRepository         { return &serviceRepository{q: r.q} }
func (r repos) Patients() repository.PatientRepository         { return &patientRepository{q: r.q} }
func (r repos) Appointments() repository.AppointmentRepository { return &appointmentRepository{q: r.q} }
func (r repos) Sessions() repository.SessionRepository         { return &sessionRepository{q: r.q} }
func (r repos) Exercises() repository.ExerciseRepository       { return &exerciseRepository{q: r.q} }
func (r repos) Prescriptions() repository.PrescriptionRepository {
	return &prescriptionRepository{q: r.q}
}
func (r repos) Adherence() repository.AdherenceRepository { return &adherenceRepository{q: r.q} }
func (r repos) Payments() repository.PaymentRepository    { return &paymentRepository{q: r.q} }
func (r repos) Audit() repository.AuditRepository         { return &auditRepository{q: r.q} }
func (r repos) Outbox() repository.OutboxRepository       { return &outboxRepository{q: r.q} }

func checkScope(scope model.ClinicScope) error {
	if !scope.Valid() {
		return repository.ErrInvalidScope
	}
	return nil
}

// notFound maps sql.ErrNoRows to the repository sentinel
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func violates(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}

func expectOne(res sql.Result, onZero error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return onZero
	}
	return nil
}

// prefixed qualifies a column list with a table alias
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
