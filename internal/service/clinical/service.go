// Package clinical writes the SOAP note that closes an appointment.
package clinical

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/service/audit"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

type SessionInput struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	model.SOAP
	PainLevel *int `json:"pain_level,omitempty"`
}

type Service struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(store repository.Store, m *metrics.Metrics, log *logger.Logger) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, metrics: m, logger: log}
}

// CreateSession records the note for a scheduled appointment and completes
// it in the same transaction. An appointment carries at most one session.
func (s *Service) CreateSession(ctx context.Context, tc *tenant.Context, in SessionInput) (*model.Session, error) {
	if err := permission.Require(tc, permission.SessionsCreate); err != nil {
		return nil, err
	}
	if in.AppointmentID == uuid.Nil {
		return nil, errors.InvalidInput("appointment_id is required", nil)
	}
	if !in.SOAP.Complete() {
		return nil, errors.ErrIncompleteNarrative
	}
	if !model.ValidPainLevel(in.PainLevel) {
		return nil, errors.ErrInvalidPainLevel
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		AppointmentID: in.AppointmentID,
		TherapistID:   tc.PrincipalID,
		SOAP: model.SOAP{
			Subjective: strings.TrimSpace(in.Subjective),
			Objective:  strings.TrimSpace(in.Objective),
			Assessment: strings.TrimSpace(in.Assessment),
			Plan:       strings.TrimSpace(in.Plan),
		},
		PainLevel: in.PainLevel,
	}

	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		appt, err := tx.Appointments().GetForUpdate(ctx, scope, in.AppointmentID)
		if err != nil {
			return repository.Translate(err, errors.KindAppointmentNotFound)
		}
		if tc.Role == model.RoleTherapist && !appt.AssignedTo(tc.PrincipalID) {
			return errors.ErrPermissionDenied
		}

		_, err = tx.Sessions().GetByAppointment(ctx, scope, appt.ID)
		if err == nil {
			return errors.ErrSessionAlreadyExists
		}
		if !stderrors.Is(err, repository.ErrNotFound) {
			return repository.Translate(err, errors.KindSessionNotFound)
		}
		if appt.Status != model.AppointmentStatusScheduled {
			return errors.Newf(errors.KindInvalidTransition, "appointment is %s", appt.Status)
		}

		session.PatientID = appt.PatientID
		if err := tx.Sessions().Create(ctx, scope, session); err != nil {
			return repository.Translate(err, errors.KindSessionNotFound)
		}
		if err := tx.Appointments().UpdateStatus(ctx, scope, appt.ID, model.AppointmentStatusCompleted, nil); err != nil {
			return repository.Translate(err, errors.KindAppointmentNotFound)
		}

		before := *appt
		appt.Status = model.AppointmentStatusCompleted
		if err := audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     model.AuditActionCreate,
			EntityType: model.AuditEntitySession,
			EntityID:   session.ID,
			New:        session,
		}); err != nil {
			return err
		}
		return audit.Record(ctx, tx, scope, tc, audit.Entry{
			Action:     model.AuditActionComplete,
			EntityType: model.AuditEntityAppointment,
			EntityID:   appt.ID,
			Old:        before,
			New:        appt,
		})
	})
	if err != nil {
		return nil, repository.Translate(err, errors.KindSessionNotFound)
	}

	s.metrics.SessionsCreated.Inc()
	s.logger.WithContext(ctx).Info("session recorded",
		"session_id", session.ID.String(),
		"appointment_id", session.AppointmentID.String())
	return session, nil
}

// GetSession returns the note of an appointment
func (s *Service) GetSession(ctx context.Context, tc *tenant.Context, appointmentID uuid.UUID) (*model.Session, error) {
	vis, err := permission.Visibility(tc, permission.SessionsViewOwn, permission.SessionsViewAll)
	if err != nil {
		return nil, err
	}
	scope, err := tc.Scope()
	if err != nil {
		return nil, err
	}

	session, err := s.store.Sessions().GetByAppointment(ctx, scope, appointmentID)
	if err != nil {
		return nil, repository.Translate(err, errors.KindSessionNotFound)
	}
	if vis == permission.ScopeOwn && session.TherapistID != tc.PrincipalID {
		appt, err := s.store.Appointments().Get(ctx, scope, appointmentID)
		if err != nil {
			return nil, repository.Translate(err, errors.KindAppointmentNotFound)
		}
		if !appt.AssignedTo(tc.PrincipalID) {
			return nil, errors.ErrPermissionDenied
		}
	}
	return session, nil
}
