package model

import (
	"time"

	"github.com/google/uuid"
)

// Payment rows are written by billing CRUD outside this service and only read
// here for reporting.
type Payment struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ClinicID      uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Amount        float64    `db:"amount" json:"amount"`
	PaidAt        time.Time  `db:"paid_at" json:"paid_at"`
}
