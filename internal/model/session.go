package model

import (
	"strings"

	"github.com/google/uuid"
)

// SOAP holds the four narrative sections of a clinical note
type SOAP struct {
	Subjective string `db:"subjective" json:"subjective"`
	Objective  string `db:"objective" json:"objective"`
	Assessment string `db:"assessment" json:"assessment"`
	Plan       string `db:"plan" json:"plan"`
}

// Complete reports whether every section has non-blank text
func (s SOAP) Complete() bool {
	for _, f := range []string{s.Subjective, s.Objective, s.Assessment, s.Plan} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

const (
	MinPainLevel = 0
	MaxPainLevel = 10
)

func ValidPainLevel(level *int) bool {
	return level == nil || (*level >= MinPainLevel && *level <= MaxPainLevel)
}

// Session is the clinical note of exactly one appointment
type Session struct {
	Base
	ClinicID      uuid.UUID `db:"clinic_id" json:"clinic_id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	TherapistID   uuid.UUID `db:"therapist_id" json:"therapist_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	SOAP
	PainLevel *int `db:"pain_level" json:"pain_level,omitempty"`
}
