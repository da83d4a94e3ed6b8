// Package prescription manages home-exercise prescriptions and the daily
// adherence log against them.
package prescription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/service/audit"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
	"github.com/jwalitptl/clinic-core/pkg/validator"
)

const DefaultAdherenceWindow = 7

type PrescribeInput struct {
	PatientID  uuid.UUID    `json:"patient_id" validate:"required"`
	ExerciseID uuid.UUID    `json:"exercise_id" validate:"required"`
	Dosage     model.Dosage `json:"dosage"`
	StartDate  model.Date   `json:"start_date"`
	EndDate    *model.Date  `json:"end_date,omitempty"`
	Notes      string       `json:"notes" validate:"max=2000"`
}

type AdherenceInput struct {
	PrescriptionID uuid.UUID              `json:"prescription_id" validate:"required"`
	Date           model.Date             `json:"date"`
	Completed      bool                   `json:"completed"`
	Actuals        model.AdherenceActuals `json:"actuals"`
}

type Service struct {
	store     repository.Store
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    *logger.Logger
	window    int
}

func NewService(store repository.Store, window int, m *metrics.Metrics, log *logger.Logger) *Service {
	if window <= 0 {
		window = DefaultAdherenceWindow
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, validator: validator.New(), metrics: m, logger: log, window: window}
}

func (s *Service) Prescribe(ctx context.Context, tc *tenant.Context, in PrescribeInput) (*model.Prescription, error) {
	if err := permission.Require(tc, permission.PrescriptionsManage); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, errors.InvalidInput(err.Error(), err)
	}
	if in.StartDate.IsZero() {
		return nil, errors.InvalidInput("start_date is required", nil)
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, errors.InvalidInput("end_date must not be before start_date", nil)
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	p := &model.Prescription{
		PatientID:    in.PatientID,
		ExerciseID:   in.ExerciseID,
		PrescribedBy: tc.PrincipalID,
		Dosage:       in.Dosage,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Status:       model.PrescriptionStatusActive,
		Notes:        strings.TrimSpace(in.Notes),
	}
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Patients().Get(ctx, scope, in.PatientID); err != nil {
			return repository.Translate(err, errors.KindPatientNotFound)
		}
		if _, err := tx.Exercises().Get(ctx, scope, in.ExerciseID); err != nil {
			return repository.Translate(err, errors.KindExerciseNotFound)
		}
		if err := tx.Prescriptions().Create(ctx, scope, p); err != nil {
			return repository.Translate(err, errors.KindPrescriptionNotFound)
		}
		return audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     model.AuditActionCreate,
			EntityType: model.AuditEntityPrescription,
			EntityID:   p.ID,
			New:        p,
		})
	})
	if err != nil {
		return nil, repository.Translate(err, errors.KindPrescriptionNotFound)
	}
	return p, nil
}

// UpdateStatus moves active and paused prescriptions between each other or
// to completed, which is final.
func (s *Service) UpdateStatus(ctx context.Context, tc *tenant.Context, id uuid.UUID, to model.PrescriptionStatus) (*model.Prescription, error) {
	if err := permission.Require(tc, permission.PrescriptionsManage); err != nil {
		return nil, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	var after model.Prescription
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		p, err := tx.Prescriptions().Get(ctx, scope, id)
		if err != nil {
			return repository.Translate(err, errors.KindPrescriptionNotFound)
		}
		if !p.Status.CanTransition(to) {
			return errors.Newf(errors.KindInvalidTransition, "prescription cannot move from %s to %s", p.Status, to)
		}
		if err := tx.Prescriptions().UpdateStatus(ctx, scope, id, p.Status, to); err != nil {
			return repository.Translate(err, errors.KindPrescriptionNotFound)
		}
		before := *p
		p.Status = to
		after = *p
		return audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     model.AuditActionUpdate,
			EntityType: model.AuditEntityPrescription,
			EntityID:   id,
			Old:        before,
			New:        after,
		})
	})
	if err != nil {
		return nil, repository.Translate(err, errors.KindPrescriptionNotFound)
	}
	return &after, nil
}

// LogAdherence appends the patient's result for one day. A day can be logged
// once.
func (s *Service) LogAdherence(ctx context.Context, tc *tenant.Context, in AdherenceInput) (*model.AdherenceLog, error) {
	vis, err := permission.Visibility(tc, permission.AdherenceLogOwn, permission.AdherenceLogAll)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, errors.InvalidInput(err.Error(), err)
	}
	if in.Date.IsZero() {
		return nil, errors.InvalidInput("date is required", nil)
	}
	if !model.ValidPainLevel(in.Actuals.PainLevel) {
		return nil, errors.ErrInvalidPainLevel
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	log := &model.AdherenceLog{
		PrescriptionID:   in.PrescriptionID,
		LogDate:          in.Date,
		Completed:        in.Completed,
		AdherenceActuals: in.Actuals,
		LoggedBy:         tc.PrincipalID,
		CreatedAt:        time.Now().UTC(),
	}
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		p, err := tx.Prescriptions().Get(ctx, scope, in.PrescriptionID)
		if err != nil {
			return repository.Translate(err, errors.KindPrescriptionNotFound)
		}
		if vis == permission.ScopeOwn {
			if err := ownsPrescription(ctx, tx, scope, tc, p); err != nil {
				return err
			}
		}
		if p.Status == model.PrescriptionStatusCompleted {
			return errors.Newf(errors.KindInvalidTransition, "prescription is completed")
		}
		if !p.Covers(in.Date) {
			return errors.InvalidInput("date is outside the prescription period", nil)
		}
		if err := tx.Adherence().Create(ctx, scope, log); err != nil {
			return repository.Translate(err, errors.KindPrescriptionNotFound)
		}
		return audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     model.AuditActionCreate,
			EntityType: model.AuditEntityAdherenceLog,
			EntityID:   log.ID,
			New:        log,
		})
	})
	if err != nil {
		return nil, repository.Translate(err, errors.KindPrescriptionNotFound)
	}

	completed := "false"
	if log.Completed {
		completed = "true"
	}
	s.metrics.AdherenceLogs.WithLabelValues(completed).Inc()
	return log, nil
}

// AdherenceRate is completed/logged over the most recent window entries, 0
// when nothing was logged.
func (s *Service) AdherenceRate(ctx context.Context, tc *tenant.Context, prescriptionID uuid.UUID) (*model.AdherenceSummary, error) {
	p, scope, err := s.readable(ctx, tc, prescriptionID)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.Adherence().ListRecent(ctx, scope, p.ID, s.window)
	if err != nil {
		return nil, repository.Translate(err, errors.KindPrescriptionNotFound)
	}
	return Summarize(p.ID, s.window, logs), nil
}

// Summarize computes the rate over logs
func Summarize(prescriptionID uuid.UUID, window int, logs []*model.AdherenceLog) *model.AdherenceSummary {
	sum := &model.AdherenceSummary{PrescriptionID: prescriptionID, Window: window, Logged: len(logs)}
	for _, l := range logs {
		if l.Completed {
			sum.Completed++
		}
	}
	if sum.Logged > 0 {
		sum.Rate = float64(sum.Completed) / float64(sum.Logged)
	}
	return sum
}

func (s *Service) Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Prescription, error) {
	p, _, err := s.readable(ctx, tc, id)
	return p, err
}

// ListForPatient returns a patient's prescriptions, newest first
func (s *Service) ListForPatient(ctx context.Context, tc *tenant.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	vis, err := permission.Visibility(tc, permission.PrescriptionsViewOwn, permission.PrescriptionsViewAll)
	if err != nil {
		return nil, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}
	patient, err := s.store.Patients().Get(ctx, scope, patientID)
	if err != nil {
		return nil, repository.Translate(err, errors.KindPatientNotFound)
	}
	if vis == permission.ScopeOwn && (patient.UserID == nil || *patient.UserID != tc.PrincipalID) {
		return nil, errors.ErrPermissionDenied
	}
	list, err := s.store.Prescriptions().ListByPatient(ctx, scope, patientID)
	if err != nil {
		return nil, repository.Translate(err, errors.KindPrescriptionNotFound)
	}
	if list == nil {
		list = []*model.Prescription{}
	}
	return list, nil
}

func (s *Service) readable(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Prescription, model.ClinicScope, error) {
	vis, err := permission.Visibility(tc, permission.PrescriptionsViewOwn, permission.PrescriptionsViewAll)
	if err != nil {
		return nil, model.ClinicScope{}, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, model.ClinicScope{}, err
	}
	p, err := s.store.Prescriptions().Get(ctx, scope, id)
	if err != nil {
		return nil, scope, repository.Translate(err, errors.KindPrescriptionNotFound)
	}
	if vis == permission.ScopeOwn {
		if err := ownsPrescription(ctx, s.store, scope, tc, p); err != nil {
			return nil, scope, err
		}
	}
	return p, scope, nil
}

// ownsPrescription requires the prescription's patient to be linked to the
// caller
func ownsPrescription(ctx context.Context, repos repository.Repositories, scope model.ClinicScope, tc *tenant.Context, p *model.Prescription) error {
	if tc.Role != model.RolePatient {
		return errors.ErrPermissionDenied
	}
	patient, err := repos.Patients().Get(ctx, scope, p.PatientID)
	if err != nil {
		return repository.Translate(err, errors.KindPatientNotFound)
	}
	if patient.UserID == nil || *patient.UserID != tc.PrincipalID {
		return errors.ErrPermissionDenied
	}
	return nil
}
