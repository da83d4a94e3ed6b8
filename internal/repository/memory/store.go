// Package memory is an in-process repository.Store with the same uniqueness
// and overlap guarantees as the Postgres schema. Transactions take the store
// lock and work on a copy that replaces the live state on commit.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository"
)

type state struct {
	clinics       map[uuid.UUID]model.Clinic
	memberships   map[uuid.UUID]model.Membership
	services      map[uuid.UUID]model.Service
	patients      map[uuid.UUID]model.Patient
	appointments  map[uuid.UUID]model.Appointment
	sessions      map[uuid.UUID]model.Session
	exercises     map[uuid.UUID]model.Exercise
	prescriptions map[uuid.UUID]model.Prescription
	adherence     map[uuid.UUID]model.AdherenceLog
	payments      map[uuid.UUID]model.Payment
	audit         []model.AuditLog
	outbox        map[uuid.UUID]model.OutboxEvent
}

func newState() *state {
	return &state{
		clinics:       map[uuid.UUID]model.Clinic{},
		memberships:   map[uuid.UUID]model.Membership{},
		services:      map[uuid.UUID]model.Service{},
		patients:      map[uuid.UUID]model.Patient{},
		appointments:  map[uuid.UUID]model.Appointment{},
		sessions:      map[uuid.UUID]model.Session{},
		exercises:     map[uuid.UUID]model.Exercise{},
		prescriptions: map[uuid.UUID]model.Prescription{},
		adherence:     map[uuid.UUID]model.AdherenceLog{},
		payments:      map[uuid.UUID]model.Payment{},
		outbox:        map[uuid.UUID]model.OutboxEvent{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		clinics:       cloneMap(s.clinics),
		memberships:   cloneMap(s.memberships),
		services:      cloneMap(s.services),
		patients:      cloneMap(s.patients),
		appointments:  cloneMap(s.appointments),
		sessions:      cloneMap(s.sessions),
		exercises:     cloneMap(s.exercises),
		prescriptions: cloneMap(s.prescriptions),
		adherence:     cloneMap(s.adherence),
		payments:      cloneMap(s.payments),
		audit:         append([]model.AuditLog(nil), s.audit...),
		outbox:        cloneMap(s.outbox),
	}
}

type Store struct {
	mu   sync.Mutex
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// view runs repository calls either under the store lock or inside an open
// transaction that already holds it.
type view struct {
	store *Store
	tx    *state
}

func (v view) read(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

func (s *Store) live() view { return view{store: s} }

func (s *Store) WithTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(repos{v: view{store: s, tx: work}}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Clinics() repository.ClinicRepository           { return repos{v: s.live()}.Clinics() }
func (s *Store) Memberships() repository.MembershipRepository   { return repos{v: s.live()}.Memberships() }
func (s *Store) Services() repository.ServiceRepository         { return repos{v: s.live()}.Services() }
func (s *Store) Patients() repository.PatientRepository         { return repos{v: s.live()}.Patients() }
func (s *Store) Appointments() repository.AppointmentRepository { return repos{v: s.live()}.Appointments() }
func (s *Store) Sessions() repository.SessionRepository         { return repos{v: s.live()}.Sessions() }
func (s *Store) Exercises() repository.ExerciseRepository       { return repos{v: s.live()}.Exercises() }
func (s *Store) Prescriptions() repository.PrescriptionRepository {
	return repos{v: s.live()}.Prescriptions()
}
func (s *Store) Adherence() repository.AdherenceRepository { return repos{v: s.live()}.Adherence() }
func (s *Store) Payments() repository.PaymentRepository    { return repos{v: s.live()}.Payments() }
func (s *Store) Audit() repository.AuditRepository         { return repos{v: s.live()}.Audit() }
func (s *Store) Outbox() repository.OutboxRepository       { return repos{v: s.live()}.Outbox() }

type repos struct {
	v view
}

func (r repos) Clinics() repository.ClinicRepository           { return clinicRepo(r) }
func (r repos) Memberships() repository.MembershipRepository   { return membershipRepo(r) }
func (r repos) Services() repository.ServiceRepository         { return serviceRepo(r) }
func (r repos) Patients() repository.PatientRepository         { return patientRepo(r) }
func (r repos) Appointments() repository.AppointmentRepository { return appointmentRepo(r) }
func (r repos) Sessions() repository.SessionRepository         { return sessionRepo(r) }
func (r repos) Exercises() repository.ExerciseRepository       { return exerciseRepo(r) }
func (r repos) Prescriptions() repository.PrescriptionRepository {
	return prescriptionRepo(r)
}
func (r repos) Adherence() repository.AdherenceRepository { return adherenceRepo(r) }
func (r repos) Payments() repository.PaymentRepository    { return paymentRepo(r) }
func (r repos) Audit() repository.AuditRepository         { return auditRepo(r) }
func (r repos) Outbox() repository.OutboxRepository       { return outboxRepo(r) }

func checkScope(scope model.ClinicScope) error {
	if !scope.Valid() {
		return repository.ErrInvalidScope
	}
	return nil
}
