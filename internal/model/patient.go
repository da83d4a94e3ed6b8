package model

import (
	"strings"

	"github.com/google/uuid"
)

type Patient struct {
	Base
	ClinicID  uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Email     string     `db:"email" json:"email"`
	Phone     string     `db:"phone" json:"phone,omitempty"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PatientRef identifies the patient of a booking, either an existing row or
// contact details to match by email
type PatientRef struct {
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	Email     string     `json:"email" validate:"omitempty,email"`
	FirstName string     `json:"first_name" validate:"max=100"`
	LastName  string     `json:"last_name" validate:"max=100"`
	Phone     string     `json:"phone" validate:"max=32"`
}

// NormalizeEmail is the key patients are deduplicated on
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
