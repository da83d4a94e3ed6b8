package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository"
)

type (
	clinicRepo       struct{ v view }
	membershipRepo   struct{ v view }
	serviceRepo      struct{ v view }
	patientRepo      struct{ v view }
	appointmentRepo  struct{ v view }
	sessionRepo      struct{ v view }
	exerciseRepo     struct{ v view }
	prescriptionRepo struct{ v view }
	adherenceRepo    struct{ v view }
	paymentRepo      struct{ v view }
	auditRepo        struct{ v view }
	outboxRepo       struct{ v view }
)

func (r clinicRepo) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	var out *model.Clinic
	err := r.v.read(func(st *state) error {
		c, ok := st.clinics[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r clinicRepo) GetBySlug(ctx context.Context, slug string) (*model.Clinic, error) {
	var out *model.Clinic
	err := r.v.read(func(st *state) error {
		for _, c := range st.clinics {
			if c.Slug == slug {
				c := c
				out = &c
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r membershipRepo) GetActiveByPrincipal(ctx context.Context, principalID uuid.UUID) (*model.Membership, error) {
	var out *model.Membership
	err := r.v.read(func(st *state) error {
		for _, m := range st.memberships {
			if m.PrincipalID == principalID && m.Active {
				m := m
				out = &m
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r membershipRepo) GetInClinic(ctx context.Context, scope model.ClinicScope, principalID uuid.UUID) (*model.Membership, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *model.Membership
	err := r.v.read(func(st *state) error {
		for _, m := range st.memberships {
			if m.PrincipalID == principalID && m.Active && m.ClinicID != nil && scope.Owns(*m.ClinicID) {
				m := m
				out = &m
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r serviceRepo) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Service, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *model.Service
	err := r.v.read(func(st *state) error {
		s, ok := st.services[id]
		if !ok || !scope.Owns(s.ClinicID) {
			return repository.ErrNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

func (r patientRepo) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Patient, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *model.Patient
	err := r.v.read(func(st *state) error {
		p, ok := st.patients[id]
		if !ok || !scope.Owns(p.ClinicID) {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r patientRepo) FindByEmail(ctx context.Context, scope model.ClinicScope, email string) (*model.Patient, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	key := model.NormalizeEmail(email)
	var out *model.Patient
	err := r.v.read(func(st *state) error {
		for _, p := range st.patients {
			if scope.Owns(p.ClinicID) && model.NormalizeEmail(p.Email) == key {
				p := p
				out = &p
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r patientRepo) FindByUser(ctx context.Context, scope model.ClinicScope, userID uuid.UUID) (*model.Patient, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *model.Patient
	err := r.v.read(func(st *state) error {
		for _, p := range st.patients {
			if scope.Owns(p.ClinicID) && p.UserID != nil && *p.UserID == userID {
				if out == nil || p.CreatedAt.Before(out.CreatedAt) {
					p := p
					out = &p
				}
			}
		}
		if out == nil {
			return repository.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (r patientRepo) Create(ctx context.Context, scope model.ClinicScope, patient *model.Patient) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		key := model.NormalizeEmail(patient.Email)
		for _, p := range st.patients {
			if scope.Owns(p.ClinicID) && model.NormalizeEmail(p.Email) == key {
				return repository.ErrDuplicatePatient
			}
		}
		if patient.ID == uuid.Nil {
			patient.ID = uuid.New()
		}
		patient.ClinicID = scope.ClinicID()
		patient.Email = key
		patient.CreatedAt = time.Now().UTC()
		patient.UpdatedAt = patient.CreatedAt
		st.patients[patient.ID] = *patient
		return nil
	})
}

func (r patientRepo) LinkUser(ctx context.Context, scope model.ClinicScope, id, userID uuid.UUID) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		cur, ok := st.patients[id]
		if !ok || !scope.Owns(cur.ClinicID) || cur.UserID != nil {
			return repository.ErrStale
		}
		cur.UserID = &userID
		cur.UpdatedAt = time.Now().UTC()
		st.patients[id] = cur
		return nil
	})
}

func overlapsScheduled(st *state, therapistID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) bool {
	for _, a := range st.appointments {
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Status == model.AppointmentStatusScheduled && a.AssignedTo(therapistID) && a.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (r appointmentRepo) Create(ctx context.Context, scope model.ClinicScope, appointment *model.Appointment) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		if appointment.Status == model.AppointmentStatusScheduled && appointment.TherapistID != nil &&
			overlapsScheduled(st, *appointment.TherapistID, appointment.StartTime, appointment.EndTime(), nil) {
			return repository.ErrOverlap
		}
		if appointment.ID == uuid.Nil {
			appointment.ID = uuid.New()
		}
		appointment.ClinicID = scope.ClinicID()
		appointment.CreatedAt = time.Now().UTC()
		appointment.UpdatedAt = appointment.CreatedAt
		st.appointments[appointment.ID] = *appointment
		return nil
	})
}

func (r appointmentRepo) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Appointment, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *model.Appointment
	err := r.v.read(func(st *state) error {
		a, ok := st.appointments[id]
		if !ok || !scope.Owns(a.ClinicID) {
			return repository.ErrNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock; transactions already serialize on the store
func (r appointmentRepo) GetForUpdate(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Appointment, error) {
	return r.Get(ctx, scope, id)
}

func (r appointmentRepo) ListScheduledForTherapist(ctx context.Context, scope model.ClinicScope, therapistID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out []*model.Appointment
	err := r.v.read(func(st *state) error {
		for _, a := range st.appointments {
			if scope.Owns(a.ClinicID) && a.Status == model.AppointmentStatusScheduled &&
				a.AssignedTo(therapistID) && a.Overlaps(from, to) {
				a := a
				out = append(out, &a)
			}
		}
		return nil
	})
	sortAppointments(out)
	return out, err
}

func (r appointmentRepo) HasConflict(ctx context.Context, scope model.ClinicScope, therapistID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	if err := checkScope(scope); err != nil {
		return false, err
	}
	var conflict bool
	err := r.v.read(func(st *state) error {
		conflict = overlapsScheduled(st, therapistID, start, end, excludeID)
		return nil
	})
	return conflict, err
}

func (r appointmentRepo) Reschedule(ctx context.Context, scope model.ClinicScope, appointment *model.Appointment) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		cur, ok := st.appointments[appointment.ID]
		if !ok || !scope.Owns(cur.ClinicID) || cur.Status != model.AppointmentStatusScheduled {
			return repository.ErrStale
		}
		if cur.TherapistID != nil && overlapsScheduled(st, *cur.TherapistID, appointment.StartTime, appointment.EndTime(), &cur.ID) {
			return repository.ErrOverlap
		}
		cur.StartTime = appointment.StartTime
		cur.UpdatedAt = time.Now().UTC()
		appointment.UpdatedAt = cur.UpdatedAt
		st.appointments[cur.ID] = cur
		return nil
	})
}

func (r appointmentRepo) UpdateStatus(ctx context.Context, scope model.ClinicScope, id uuid.UUID, to model.AppointmentStatus, reason *string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		cur, ok := st.appointments[id]
		if !ok || !scope.Owns(cur.ClinicID) || cur.Status != model.AppointmentStatusScheduled {
			return repository.ErrStale
		}
		cur.Status = to
		if reason != nil {
			cur.CancelReason = reason
		}
		cur.UpdatedAt = time.Now().UTC()
		st.appointments[id] = cur
		return nil
	})
}

func (r appointmentRepo) List(ctx context.Context, scope model.ClinicScope, f model.AppointmentFilters) ([]*model.Appointment, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out []*model.Appointment
	err := r.v.read(func(st *state) error {
		for _, a := range st.appointments {
			if !scope.Owns(a.ClinicID) {
				continue
			}
			if f.TherapistID != nil && !a.AssignedTo(*f.TherapistID) {
				continue
			}
			if f.PatientID != nil && a.PatientID != *f.PatientID {
				continue
			}
			if f.PatientUserID != nil {
				p, ok := st.patients[a.PatientID]
				if !ok || p.UserID == nil || *p.UserID != *f.PatientUserID {
					continue
				}
			}
			if f.Status != nil && a.Status != *f.Status {
				continue
			}
			if f.From != nil && a.StartTime.Before(*f.From) {
				continue
			}
			if f.To != nil && !a.StartTime.Before(*f.To) {
				continue
			}
			a := a
			out = append(out, &a)
		}
		return nil
	})
	sortAppointments(out)
	return paginate(out, f.Pagination), err
}

func sortAppointments(list []*model.Appointment) {
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })
}

func paginate[T any](list []T, p model.Pagination) []T {
	p = p.Normalize()
	if p.Offset >= len(list) {
		return nil
	}
	end := p.Offset + p.Limit
	if end > len(list) {
		end = len(list)
	}
	return list[p.Offset:end]
}

func (r sessionRepo) Create(ctx context.Context, scope model.ClinicScope, session *model.Session) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		for _, s := range st.sessions {
			if s.AppointmentID == session.AppointmentID {
				return repository.ErrSessionExists
			}
		}
		if session.ID == uuid.Nil {
			session.ID = uuid.New()
		}
		session.ClinicID = scope.ClinicID()
		session.CreatedAt = time.Now().UTC()
		session.UpdatedAt = session.CreatedAt
		st.sessions[session.ID] = *session
		return nil
	})
}

func (r sessionRepo) GetByAppointment(ctx context.Context, scope model.ClinicScope, appointmentID uuid.UUID) (*model.Session, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *model.Session
	err := r.v.read(func(st *state) error {
		for _, s := range st.sessions {
			if s.AppointmentID == appointmentID && scope.Owns(s.ClinicID) {
				s := s
				out = &s
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r sessionRepo) ListInRange(ctx context.Context, scope model.ClinicScope, from, to time.Time) ([]*model.Session, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out []*model.Session
	err := r.v.read(func(st *state) error {
		for _, s := range st.sessions {
			if scope.Owns(s.ClinicID) && !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) {
				s := s
				out = append(out, &s)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r exerciseRepo) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Exercise, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *model.Exercise
	err := r.v.read(func(st *state) error {
		e, ok := st.exercises[id]
		if !ok || !scope.Owns(e.ClinicID) {
			return repository.ErrNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (r prescriptionRepo) Create(ctx context.Context, scope model.ClinicScope, p *model.Prescription) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.ClinicID = scope.ClinicID()
		p.CreatedAt = time.Now().UTC()
		p.UpdatedAt = p.CreatedAt
		st.prescriptions[p.ID] = *p
		return nil
	})
}

func (r prescriptionRepo) Get(ctx context.Context, scope model.ClinicScope, id uuid.UUID) (*model.Prescription, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out *model.Prescription
	err := r.v.read(func(st *state) error {
		p, ok := st.prescriptions[id]
		if !ok || !scope.Owns(p.ClinicID) {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r prescriptionRepo) UpdateStatus(ctx context.Context, scope model.ClinicScope, id uuid.UUID, from, to model.PrescriptionStatus) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		p, ok := st.prescriptions[id]
		if !ok || !scope.Owns(p.ClinicID) || p.Status != from {
			return repository.ErrStale
		}
		p.Status = to
		p.UpdatedAt = time.Now().UTC()
		st.prescriptions[id] = p
		return nil
	})
}

func (r prescriptionRepo) ListByPatient(ctx context.Context, scope model.ClinicScope, patientID uuid.UUID) ([]*model.Prescription, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out []*model.Prescription
	err := r.v.read(func(st *state) error {
		for _, p := range st.prescriptions {
			if scope.Owns(p.ClinicID) && p.PatientID == patientID {
				p := p
				out = append(out, &p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, err
}

func (r adherenceRepo) Create(ctx context.Context, scope model.ClinicScope, log *model.AdherenceLog) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		for _, l := range st.adherence {
			if l.PrescriptionID == log.PrescriptionID && l.LogDate.Equal(log.LogDate) {
				return repository.ErrDuplicateLog
			}
		}
		if log.ID == uuid.Nil {
			log.ID = uuid.New()
		}
		log.ClinicID = scope.ClinicID()
		log.CreatedAt = time.Now().UTC()
		st.adherence[log.ID] = *log
		return nil
	})
}

func (r adherenceRepo) ListRecent(ctx context.Context, scope model.ClinicScope, prescriptionID uuid.UUID, limit int) ([]*model.AdherenceLog, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out []*model.AdherenceLog
	err := r.v.read(func(st *state) error {
		for _, l := range st.adherence {
			if scope.Owns(l.ClinicID) && l.PrescriptionID == prescriptionID {
				l := l
				out = append(out, &l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LogDate.After(out[j].LogDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r paymentRepo) ListInRange(ctx context.Context, scope model.ClinicScope, from, to time.Time) ([]*model.Payment, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out []*model.Payment
	err := r.v.read(func(st *state) error {
		for _, p := range st.payments {
			if scope.Owns(p.ClinicID) && !p.PaidAt.Before(from) && p.PaidAt.Before(to) {
				p := p
				out = append(out, &p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, err
}

func (r auditRepo) Create(ctx context.Context, scope model.ClinicScope, log *model.AuditLog) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	return r.v.read(func(st *state) error {
		if log.ID == uuid.Nil {
			log.ID = uuid.New()
		}
		log.ClinicID = scope.ClinicID()
		if log.CreatedAt.IsZero() {
			log.CreatedAt = time.Now().UTC()
		}
		st.audit = append(st.audit, *log)
		return nil
	})
}

func (r auditRepo) List(ctx context.Context, scope model.ClinicScope, f model.AuditFilters) ([]*model.AuditLog, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	var out []*model.AuditLog
	err := r.v.read(func(st *state) error {
		for i := len(st.audit) - 1; i >= 0; i-- {
			l := st.audit[i]
			if !scope.Owns(l.ClinicID) {
				continue
			}
			if f.EntityType != "" && l.EntityType != f.EntityType {
				continue
			}
			if f.EntityID != nil && l.EntityID != *f.EntityID {
				continue
			}
			if f.ActorID != nil && l.ActorID != *f.ActorID {
				continue
			}
			out = append(out, &l)
		}
		return nil
	})
	return paginate(out, f.Pagination), err
}

func (r outboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	return r.v.read(func(st *state) error {
		event.ID = uuid.New()
		event.Status = model.OutboxStatusPending
		event.CreatedAt = time.Now().UTC()
		event.UpdatedAt = event.CreatedAt
		st.outbox[event.ID] = *event
		return nil
	})
}

func (r outboxRepo) ClaimPending(ctx context.Context, now time.Time, limit int) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	err := r.v.read(func(st *state) error {
		for _, e := range st.outbox {
			if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
				continue
			}
			if e.RetryAt != nil && e.RetryAt.After(now) {
				continue
			}
			e := e
			out = append(out, &e)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		for _, e := range out {
			e.Status = model.OutboxStatusProcessing
			st.outbox[e.ID] = *e
		}
		return nil
	})
	return out, err
}

func (r outboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return r.v.read(func(st *state) error {
		e, ok := st.outbox[id]
		if !ok {
			return repository.ErrNotFound
		}
		e.Status = status
		e.ErrorMessage = errorMessage
		e.RetryAt = retryAt
		if status == model.OutboxStatusRetry || status == model.OutboxStatusFailed {
			e.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			now := time.Now().UTC()
			e.ProcessedAt = &now
		}
		e.UpdatedAt = time.Now().UTC()
		st.outbox[id] = e
		return nil
	})
}

func (r outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.v.read(func(st *state) error {
		for id, e := range st.outbox {
			if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
				delete(st.outbox, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
