package model

import (
	"time"

	"github.com/google/uuid"
)

type PrescriptionStatus string

const (
	PrescriptionStatusActive    PrescriptionStatus = "active"
	PrescriptionStatusPaused    PrescriptionStatus = "paused"
	PrescriptionStatusCompleted PrescriptionStatus = "completed"
)

// CanTransition lists the allowed prescription moves; completed is terminal
func (s PrescriptionStatus) CanTransition(to PrescriptionStatus) bool {
	switch s {
	case PrescriptionStatusActive:
		return to == PrescriptionStatusPaused || to == PrescriptionStatusCompleted
	case PrescriptionStatusPaused:
		return to == PrescriptionStatusActive || to == PrescriptionStatusCompleted
	default:
		return false
	}
}

type Exercise struct {
	Base
	ClinicID    uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
}

type Dosage struct {
	Sets             int `db:"sets" json:"sets" validate:"gte=0,lte=100"`
	Reps             int `db:"reps" json:"reps" validate:"gte=0,lte=1000"`
	DurationMinutes  int `db:"dosage_duration_minutes" json:"duration_minutes" validate:"gte=0,lte=600"`
	FrequencyPerWeek int `db:"frequency_per_week" json:"frequency_per_week" validate:"gte=1,lte=21"`
}

type Prescription struct {
	Base
	ClinicID     uuid.UUID          `db:"clinic_id" json:"clinic_id"`
	PatientID    uuid.UUID          `db:"patient_id" json:"patient_id"`
	ExerciseID   uuid.UUID          `db:"exercise_id" json:"exercise_id"`
	PrescribedBy uuid.UUID          `db:"prescribed_by" json:"prescribed_by"`
	Dosage
	StartDate Date               `db:"start_date" json:"start_date"`
	EndDate   *Date              `db:"end_date" json:"end_date,omitempty"`
	Status    PrescriptionStatus `db:"status" json:"status"`
	Notes     string             `db:"notes" json:"notes,omitempty"`
}

// Covers reports whether d falls within the prescription's date range
func (p *Prescription) Covers(d Date) bool {
	if d.Before(p.StartDate) {
		return false
	}
	return p.EndDate == nil || !d.After(*p.EndDate)
}

type AdherenceActuals struct {
	Sets            *int   `db:"actual_sets" json:"sets,omitempty" validate:"omitempty,gte=0,lte=100"`
	Reps            *int   `db:"actual_reps" json:"reps,omitempty" validate:"omitempty,gte=0,lte=1000"`
	DurationMinutes *int   `db:"actual_duration_minutes" json:"duration_minutes,omitempty" validate:"omitempty,gte=0,lte=600"`
	PainLevel       *int   `db:"pain_level" json:"pain_level,omitempty"`
	Notes           string `db:"notes" json:"notes,omitempty" validate:"max=2000"`
}

// AdherenceLog is append-only; one per prescription per day
type AdherenceLog struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ClinicID       uuid.UUID `db:"clinic_id" json:"clinic_id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	LogDate        Date      `db:"log_date" json:"log_date"`
	Completed      bool      `db:"completed" json:"completed"`
	AdherenceActuals
	LoggedBy  uuid.UUID `db:"logged_by" json:"logged_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type AdherenceSummary struct {
	PrescriptionID uuid.UUID `json:"prescription_id"`
	Window         int       `json:"window"`
	Logged         int       `json:"logged"`
	Completed      int       `json:"completed"`
	Rate           float64   `json:"rate"`
}
