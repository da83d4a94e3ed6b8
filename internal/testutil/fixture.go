// Package testutil seeds the in-memory store with a working clinic for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository/memory"
	"github.com/jwalitptl/clinic-core/internal/tenant"
)

// Now is the fixed clock used by engine tests, Monday 4 March 2030 12:00 UTC
var Now = time.Date(2030, time.March, 4, 12, 0, 0, 0, time.UTC)

// Tomorrow is the day after Now
var Tomorrow = model.NewDate(2030, time.March, 5)

func Clock() time.Time { return Now }

// At returns hour:minute on d in UTC
func At(d model.Date, hour, minute int) time.Time {
	t := d.Time()
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, time.UTC)
}

// Clinic is one seeded tenant with staff, a 60 minute service and an exercise
type Clinic struct {
	Store    *memory.Store
	Clinic   model.Clinic
	Service  model.Service
	Exercise model.Exercise

	ManagerID      uuid.UUID
	TherapistID    uuid.UUID
	OtherTherapist uuid.UUID
	ReceptionistID uuid.UUID
}

// NewClinic seeds a clinic into store. A nil store gets a fresh one.
func NewClinic(store *memory.Store, slug string) *Clinic {
	if store == nil {
		store = memory.NewStore()
	}
	c := &Clinic{Store: store}
	c.Clinic = store.AddClinic(model.Clinic{
		Slug:               slug,
		Name:               "Clinic " + slug,
		SubscriptionTier:   "standard",
		SubscriptionStatus: model.SubscriptionStatusActive,
		Active:             true,
		BookingEnabled:     true,
		Timezone:           "UTC",
	})
	c.Service = store.AddService(model.Service{
		ClinicID:        c.Clinic.ID,
		Name:            "Initial assessment",
		DurationMinutes: 60,
		Price:           80,
		Active:          true,
	})
	c.Exercise = store.AddExercise(model.Exercise{
		ClinicID: c.Clinic.ID,
		Name:     "Clamshell",
	})

	c.ManagerID = c.member(model.RoleClinicManager, "manager")
	c.TherapistID = c.member(model.RoleTherapist, "therapist")
	c.OtherTherapist = c.member(model.RoleTherapist, "therapist2")
	c.ReceptionistID = c.member(model.RoleReceptionist, "frontdesk")
	return c
}

func (c *Clinic) member(role model.Role, name string) uuid.UUID {
	clinicID := c.Clinic.ID
	m := c.Store.AddMembership(model.Membership{
		PrincipalID: uuid.New(),
		ClinicID:    &clinicID,
		Role:        role,
		DisplayName: name,
		Email:       name + "@" + c.Clinic.Slug + ".test",
		Active:      true,
	})
	return m.PrincipalID
}

// AddPatientUser registers a patient linked to a new self-service identity
func (c *Clinic) AddPatientUser(email string) (model.Patient, uuid.UUID) {
	userID := uuid.New()
	clinicID := c.Clinic.ID
	c.Store.AddMembership(model.Membership{
		PrincipalID: userID,
		ClinicID:    &clinicID,
		Role:        model.RolePatient,
		Email:       email,
		Active:      true,
	})
	p := c.Store.AddPatient(model.Patient{
		ClinicID:  c.Clinic.ID,
		UserID:    &userID,
		FirstName: "Pat",
		LastName:  "Ient",
		Email:     email,
	})
	return p, userID
}

// AddPatientLogin adds a self-service identity with no patient record yet
func (c *Clinic) AddPatientLogin(email string) uuid.UUID {
	clinicID := c.Clinic.ID
	m := c.Store.AddMembership(model.Membership{
		PrincipalID: uuid.New(),
		ClinicID:    &clinicID,
		Role:        model.RolePatient,
		Email:       email,
		Active:      true,
	})
	return m.PrincipalID
}

// AddPatient registers a patient without a login
func (c *Clinic) AddPatient(email string) model.Patient {
	return c.Store.AddPatient(model.Patient{
		ClinicID:  c.Clinic.ID,
		FirstName: "Walk",
		LastName:  "In",
		Email:     email,
	})
}

// Book stages a scheduled appointment without going through the engine
func (c *Clinic) Book(patientID, therapistID uuid.UUID, start time.Time) model.Appointment {
	serviceID := c.Service.ID
	return c.Store.AddAppointment(model.Appointment{
		ClinicID:        c.Clinic.ID,
		PatientID:       patientID,
		TherapistID:     &therapistID,
		ServiceID:       &serviceID,
		StartTime:       start,
		DurationMinutes: c.Service.DurationMinutes,
	})
}

func (c *Clinic) As(role model.Role, principalID uuid.UUID) *tenant.Context {
	return tenant.NewContext(principalID, role, c.Clinic.ID)
}

func (c *Clinic) Manager() *tenant.Context {
	return c.As(model.RoleClinicManager, c.ManagerID)
}

func (c *Clinic) Therapist() *tenant.Context {
	return c.As(model.RoleTherapist, c.TherapistID)
}

func (c *Clinic) Receptionist() *tenant.Context {
	return c.As(model.RoleReceptionist, c.ReceptionistID)
}

func (c *Clinic) Public() *tenant.Context {
	return c.As(model.RolePublic, uuid.Nil)
}

// Sent is one message captured by Notifier
type Sent struct {
	Template  string
	Recipient string
	Vars      map[string]interface{}
}

// Notifier records every message instead of delivering it
type Notifier struct {
	mu   sync.Mutex
	sent []Sent
}

func (n *Notifier) Send(_ context.Context, template, recipient string, vars map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Sent{Template: template, Recipient: recipient, Vars: vars})
}

func (n *Notifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}
