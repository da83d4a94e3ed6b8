package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// Terminal statuses accept no further transitions
func (s AppointmentStatus) Terminal() bool {
	return s != AppointmentStatusScheduled
}

// Appointment has no end time field; EndTime derives it from the duration
// captured at booking.
type Appointment struct {
	Base
	ClinicID        uuid.UUID         `db:"clinic_id" json:"clinic_id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	TherapistID     *uuid.UUID        `db:"therapist_id" json:"therapist_id,omitempty"`
	ServiceID       *uuid.UUID        `db:"service_id" json:"service_id,omitempty"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	BookedBy        *uuid.UUID        `db:"booked_by" json:"booked_by,omitempty"`
}

// SlotEnd is the one place an appointment end is computed
func SlotEnd(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

func (a *Appointment) EndTime() time.Time {
	return SlotEnd(a.StartTime, a.DurationMinutes)
}

// Overlaps reports whether [start,end) intersects the appointment interval
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && a.EndTime().After(start)
}

func (a *Appointment) AssignedTo(therapistID uuid.UUID) bool {
	return a.TherapistID != nil && *a.TherapistID == therapistID
}

func (a Appointment) MarshalJSON() ([]byte, error) {
	type alias Appointment
	return json.Marshal(struct {
		alias
		EndTime time.Time `json:"end_time"`
	}{
		alias:   alias(a),
		EndTime: a.EndTime(),
	})
}

type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s TimeSlot) Overlaps(o TimeSlot) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

type AppointmentFilters struct {
	TherapistID *uuid.UUID
	PatientID   *uuid.UUID
	// PatientUserID restricts to patients linked to this identity
	PatientUserID *uuid.UUID
	Status        *AppointmentStatus
	From          *time.Time
	To            *time.Time
	Pagination
}
