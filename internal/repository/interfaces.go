package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
)

// All repository interfaces in one file. Every clinic-owned table is reached
// through a model.ClinicScope argument; clinics and memberships are the tenant
// roots and are looked up directly.
type (
	ClinicRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		GetBySlug(ctx context.Context, slug string) (*model.Clinic, error)
	}

	MembershipRepository interface {
		GetActiveByPrincipal(ctx context.Context, principalID uuid.UUID) (*model.Membership, error)
		GetInClinic(ctx context.Context, scope model.ClinicScope, principalID uuid.UUID) (*model.Membership, error)
	}

	ServiceRepository interface {
		Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Service, error)
	}

	PatientRepository interface {
		Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Patient, error)
		FindByEmail(ctx context.Context, scope model.ClinicScope, email string) (*model.Patient, error)
		FindByUser(ctx context.Context, scope model.ClinicScope, userID uuid.UUID) (*model.Patient, error)
		// Create returns ErrDuplicatePatient when another row already holds
		// the (clinic, email) pair.
		Create(ctx context.Context, scope model.ClinicScope, patient *model.Patient) error
		// LinkUser attaches a login to a patient that has none and returns
		// ErrStale when the row is already linked.
		LinkUser(ctx context.Context, scope model.ClinicScope, id, userID uuid.UUID) error
	}

	AppointmentRepository interface {
		// Create returns ErrOverlap when the storage constraint rejects the
		// therapist interval.
		Create(ctx context.Context, scope model.ClinicScope, appointment *model.Appointment) error
		Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Appointment, error)
		GetForUpdate(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Appointment, error)
		ListScheduledForTherapist(ctx context.Context, scope model.ClinicScope, therapistID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
		HasConflict(ctx context.Context, scope model.ClinicScope, therapistID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
		// Reschedule and UpdateStatus only touch scheduled rows and return
		// ErrStale otherwise.
		Reschedule(ctx context.Context, scope model.ClinicScope, appointment *model.Appointment) error
		UpdateStatus(ctx context.Context, scope model.ClinicScope, id uuid.UUID, to model.AppointmentStatus, reason *string) error
		List(ctx context.Context, scope model.ClinicScope, filters model.AppointmentFilters) ([]*model.Appointment, error)
	}

	SessionRepository interface {
		Create(ctx context.Context, scope model.ClinicScope, session *model.Session) error
		GetByAppointment(ctx context.Context, scope model.ClinicScope, appointmentID uuid.UUID) (*model.Session, error)
		ListInRange(ctx context.Context, scope model.ClinicScope, from, to time.Time) ([]*model.Session, error)
	}

	ExerciseRepository interface {
		Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Exercise, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, scope model.ClinicScope, prescription *model.Prescription) error
		Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Prescription, error)
		UpdateStatus(ctx context.Context, scope model.ClinicScope, id uuid.UUID, from, to model.PrescriptionStatus) error
		ListByPatient(ctx context.Context, scope model.ClinicScope, patientID uuid.UUID) ([]*model.Prescription, error)
	}

	AdherenceRepository interface {
		// Create returns ErrDuplicateLog for a second log on the same day
		Create(ctx context.Context, scope model.ClinicScope, log *model.AdherenceLog) error
		ListRecent(ctx context.Context, scope model.ClinicScope, prescriptionID uuid.UUID, limit int) ([]*model.AdherenceLog, error)
	}

	PaymentRepository interface {
		ListInRange(ctx context.Context, scope model.ClinicScope, from, to time.Time) ([]*model.Payment, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, scope model.ClinicScope, log *model.AuditLog) error
		List(ctx context.Context, scope model.ClinicScope, filters model.AuditFilters) ([]*model.AuditLog, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending takes events that are due at now
		ClaimPending(ctx context.Context, now time.Time, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories groups the per-entity repositories bound to one connection or
// transaction.
type Repositories interface {
	Clinics() ClinicRepository
	Memberships() MembershipRepository
	Services() ServiceRepository
	Patients() PatientRepository
	Appointments() AppointmentRepository
	Sessions() SessionRepository
	Exercises() ExerciseRepository
	Prescriptions() PrescriptionRepository
	Adherence() AdherenceRepository
	Payments() PaymentRepository
	Audit() AuditRepository
	Outbox() OutboxRepository
}

// Store is the backing relational store
type Store interface {
	Repositories
	// WithTx runs fn in one transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Repositories) error) error
	Ping(ctx context.Context) error
}
