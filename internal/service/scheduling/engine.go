// Package scheduling turns free time on a clinic's slot grid into
// non-overlapping appointments and drives their lifecycle.
package scheduling

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/internal/service/notification"
	"github.com/jwalitptl/clinic-core/internal/service/patient"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
	"github.com/jwalitptl/clinic-core/pkg/validator"
)

// Config holds the booking policy
type Config struct {
	// DefaultOpen and DefaultClose ("HH:MM") apply to clinics that never
	// configured working hours.
	DefaultOpen  string
	DefaultClose string
	// Self-service bookings must start at least MinLeadTime from now and at
	// most MaxHorizon ahead. Zero disables the bound.
	MinLeadTime time.Duration
	MaxHorizon  time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultOpen:  "09:00",
		DefaultClose: "17:00",
		MinLeadTime:  time.Hour,
		MaxHorizon:   90 * 24 * time.Hour,
	}
}

type Engine struct {
	store     repository.Store
	patients  *patient.Resolver
	notifier  notification.Notifier
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cfg       Config
	now       func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) { e.logger = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(store repository.Store, notifier notification.Notifier, cfg Config, opts ...Option) *Engine {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	if cfg.DefaultOpen == "" || cfg.DefaultClose == "" {
		def := DefaultConfig()
		cfg.DefaultOpen, cfg.DefaultClose = def.DefaultOpen, def.DefaultClose
	}
	e := &Engine{
		store:     store,
		notifier:  notifier,
		validator: validator.New(),
		logger:    logger.Nop(),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNop()
	}
	e.patients = patient.NewResolver(e.metrics, e.logger)
	return e
}

func (e *Engine) clinic(ctx context.Context, repos repository.Repositories, scope model.ClinicScope) (*model.Clinic, error) {
	clinic, err := repos.Clinics().Get(ctx, scope.ClinicID())
	if err != nil {
		return nil, repository.Translate(err, errors.KindClinicNotFound)
	}
	return clinic, nil
}

func (e *Engine) service(ctx context.Context, repos repository.Repositories, scope model.ClinicScope, id uuid.UUID) (*model.Service, error) {
	svc, err := repos.Services().Get(ctx, scope, id)
	if err != nil {
		return nil, repository.Translate(err, errors.KindServiceNotFound)
	}
	if !svc.Active || svc.DurationMinutes <= 0 {
		return nil, errors.ErrServiceNotFound
	}
	return svc, nil
}

// therapist checks that id is an active therapist of the clinic
func (e *Engine) therapist(ctx context.Context, repos repository.Repositories, scope model.ClinicScope, id uuid.UUID) error {
	m, err := repos.Memberships().GetInClinic(ctx, scope, id)
	if err != nil {
		return repository.Translate(err, errors.KindTherapistNotFound)
	}
	if m.Role != model.RoleTherapist {
		return errors.ErrTherapistNotFound
	}
	return nil
}

// ownsAppointment reports whether the caller is tied to appt: the assigned
// therapist, or the patient linked to the caller's identity.
func ownsAppointment(ctx context.Context, repos repository.Repositories, scope model.ClinicScope, tc *tenant.Context, appt *model.Appointment) (bool, error) {
	switch tc.Role {
	case model.RoleTherapist:
		return appt.AssignedTo(tc.PrincipalID), nil
	case model.RolePatient:
		p, err := repos.Patients().Get(ctx, scope, appt.PatientID)
		if err != nil {
			if stderrors.Is(err, repository.ErrNotFound) {
				return false, nil
			}
			return false, repository.Translate(err, errors.KindPatientNotFound)
		}
		return p.UserID != nil && *p.UserID == tc.PrincipalID, nil
	default:
		return false, nil
	}
}

func (e *Engine) appointmentVars(clinic *model.Clinic, appt *model.Appointment, p *model.Patient) map[string]interface{} {
	loc := clinic.Location()
	return map[string]interface{}{
		"clinic_name":    clinic.Name,
		"patient_name":   p.FullName(),
		"appointment_id": appt.ID.String(),
		"start_time":     appt.StartTime.In(loc).Format("Mon 2 Jan 2006 15:04"),
		"end_time":       appt.EndTime().In(loc).Format("15:04"),
		"timezone":       loc.String(),
	}
}

// notify loads the patient outside any transaction and hands the message to
// the notifier. Lookup failures are logged only.
func (e *Engine) notify(ctx context.Context, scope model.ClinicScope, clinic *model.Clinic, appt *model.Appointment, template string) {
	p, err := e.store.Patients().Get(ctx, scope, appt.PatientID)
	if err != nil {
		e.logger.WithContext(ctx).Error(err, "failed to load patient for notification",
			"appointment_id", appt.ID.String(), "template", template)
		return
	}
	e.notifier.Send(ctx, template, p.Email, e.appointmentVars(clinic, appt, p))
}
