package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is append-only and written in the transaction it records
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ClinicID   uuid.UUID       `json:"clinic_id" db:"clinic_id"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	ActorRole  Role            `json:"actor_role" db:"actor_role"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	OldData    json.RawMessage `json:"old_data,omitempty" db:"old_data"`
	NewData    json.RawMessage `json:"new_data,omitempty" db:"new_data"`
	RequestID  string          `json:"request_id,omitempty" db:"request_id"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate     = "create"
	AuditActionUpdate     = "update"
	AuditActionReschedule = "reschedule"
	AuditActionCancel     = "cancel"
	AuditActionNoShow     = "no_show"
	AuditActionComplete   = "complete"

	// Entity types
	AuditEntityPatient      = "patient"
	AuditEntityAppointment  = "appointment"
	AuditEntitySession      = "session"
	AuditEntityPrescription = "prescription"
	AuditEntityAdherenceLog = "adherence_log"
)

type AuditFilters struct {
	EntityType string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	Pagination
}
