package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
)

// Seed helpers write reference data that the engines only ever read.
// They stamp ids and timestamps the same way the repositories do.

func stamp(b *model.Base) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
}

func (s *Store) AddClinic(c model.Clinic) model.Clinic {
	stamp(&c.Base)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.clinics[c.ID] = c
	return c
}

func (s *Store) AddMembership(m model.Membership) model.Membership {
	stamp(&m.Base)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.memberships[m.ID] = m
	return m
}

func (s *Store) AddService(svc model.Service) model.Service {
	stamp(&svc.Base)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.services[svc.ID] = svc
	return svc
}

func (s *Store) AddExercise(e model.Exercise) model.Exercise {
	stamp(&e.Base)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.exercises[e.ID] = e
	return e
}

func (s *Store) AddPatient(p model.Patient) model.Patient {
	stamp(&p.Base)
	p.Email = model.NormalizeEmail(p.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.patients[p.ID] = p
	return p
}

// AddAppointment bypasses the overlap check so tests can stage history.
func (s *Store) AddAppointment(a model.Appointment) model.Appointment {
	stamp(&a.Base)
	if a.Status == "" {
		a.Status = model.AppointmentStatusScheduled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.appointments[a.ID] = a
	return a
}

func (s *Store) AddSession(sess model.Session) model.Session {
	stamp(&sess.Base)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.sessions[sess.ID] = sess
	return sess
}

func (s *Store) AddPayment(p model.Payment) model.Payment {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.payments[p.ID] = p
	return p
}

// Counting helpers for tests.
func (s *Store) AppointmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.appointments)
}

func (s *Store) PatientCount(clinicID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.data.patients {
		if p.ClinicID == clinicID {
			n++
		}
	}
	return n
}

func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxEvent, 0, len(s.data.outbox))
	for _, e := range s.data.outbox {
		out = append(out, e)
	}
	return out
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.data.audit...)
}
