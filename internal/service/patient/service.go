package patient

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/service/audit"
	"github.com/jwalitptl/clinic-core/internal/service/notification"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
	"github.com/jwalitptl/clinic-core/pkg/validator"
)

// Resolver finds or creates the patient a booking refers to. Patients are
// unique per clinic by lower-cased email; a concurrent create of the same
// email resolves to the row that won.
type Resolver struct {
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewResolver(m *metrics.Metrics, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{metrics: m, logger: log}
}

// Resolve runs inside the caller's transaction. userID links a newly created
// patient to a self-service identity. The bool reports whether a row was
// created.
func (r *Resolver) Resolve(ctx context.Context, repos repository.Repositories, scope model.ClinicScope, ref model.PatientRef, userID *uuid.UUID) (*model.Patient, bool, error) {
	patients := repos.Patients()

	if ref.PatientID != nil {
		p, err := patients.Get(ctx, scope, *ref.PatientID)
		if err != nil {
			return nil, false, repository.Translate(err, errors.KindPatientNotFound)
		}
		return p, false, nil
	}

	email := model.NormalizeEmail(ref.Email)
	if email == "" {
		return nil, false, errors.InvalidInput("patient email is required", nil)
	}

	existing, err := patients.FindByEmail(ctx, scope, email)
	if err == nil {
		return existing, false, nil
	}
	if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, false, repository.Translate(err, errors.KindPatientNotFound)
	}

	p := &model.Patient{
		UserID:    userID,
		FirstName: strings.TrimSpace(ref.FirstName),
		LastName:  strings.TrimSpace(ref.LastName),
		Email:     email,
		Phone:     strings.TrimSpace(ref.Phone),
	}
	err = patients.Create(ctx, scope, p)
	if err == nil {
		return p, true, nil
	}
	if !stderrors.Is(err, repository.ErrDuplicatePatient) {
		return nil, false, repository.Translate(err, errors.KindPatientNotFound)
	}

	// lost the race to a concurrent create of the same email
	if r.metrics != nil {
		r.metrics.PatientDedupRaces.Inc()
	}
	r.logger.WithContext(ctx).Debug("patient create lost race, re-resolving", "clinic_id", scope.ClinicID().String())
	winner, err := patients.FindByEmail(ctx, scope, email)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, false, errors.ErrDuplicatePatient
		}
		return nil, false, repository.Translate(err, errors.KindPatientNotFound)
	}
	return winner, false, nil
}

type RegisterInput struct {
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	FirstName string     `json:"first_name" validate:"required,max=100"`
	LastName  string     `json:"last_name" validate:"required,max=100"`
	Email     string     `json:"email" validate:"required,email"`
	Phone     string     `json:"phone" validate:"max=32"`
}

// Service is the staff-facing patient registry
type Service struct {
	store     repository.Store
	notifier  notification.Notifier
	validator validator.Validator
}

func NewService(store repository.Store, notifier notification.Notifier) *Service {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Service{store: store, notifier: notifier, validator: validator.New()}
}

// Register creates a patient; an existing email in the clinic is
// DuplicatePatient.
func (s *Service) Register(ctx context.Context, tc *tenant.Context, in RegisterInput) (*model.Patient, error) {
	if err := permission.Require(tc, permission.PatientsManage); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, errors.InvalidInput(err.Error(), err)
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	p := &model.Patient{
		UserID:    in.UserID,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     model.NormalizeEmail(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
	}
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if err := tx.Patients().Create(ctx, scope, p); err != nil {
			return repository.Translate(err, errors.KindPatientNotFound)
		}
		return audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     model.AuditActionCreate,
			EntityType: model.AuditEntityPatient,
			EntityID:   p.ID,
			New:        p,
		})
	})
	if err != nil {
		return nil, repository.Translate(err, errors.KindPatientNotFound)
	}

	s.notifier.Send(ctx, model.TemplatePatientInvite, p.Email, map[string]interface{}{
		"patient_name": p.FullName(),
	})
	return p, nil
}

func (s *Service) Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Patient, error) {
	if err := permission.Require(tc, permission.PatientsView); err != nil {
		return nil, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}
	p, err := s.store.Patients().Get(ctx, scope, id)
	if err != nil {
		return nil, repository.Translate(err, errors.KindPatientNotFound)
	}
	return p, nil
}
