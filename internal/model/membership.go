package model

import (
	"github.com/google/uuid"
)

// Role is the single role a principal holds
type Role string

const (
	RolePlatformAdmin Role = "platform-admin"
	RoleClinicManager Role = "clinic-manager"
	RoleTherapist     Role = "therapist"
	RoleReceptionist  Role = "receptionist"
	RolePatient       Role = "patient"
	// RolePublic is the anonymous self-service booking actor; never stored.
	RolePublic Role = "public"
)

var knownRoles = map[Role]bool{
	RolePlatformAdmin: true,
	RoleClinicManager: true,
	RoleTherapist:     true,
	RoleReceptionist:  true,
	RolePatient:       true,
	RolePublic:        true,
}

func (r Role) Valid() bool {
	return knownRoles[r]
}

// Membership binds a principal to a clinic with one role. ClinicID is nil only
// for platform admins.
type Membership struct {
	Base
	PrincipalID uuid.UUID  `db:"principal_id" json:"principal_id"`
	ClinicID    *uuid.UUID `db:"clinic_id" json:"clinic_id,omitempty"`
	Role        Role       `db:"role" json:"role"`
	DisplayName string     `db:"display_name" json:"display_name"`
	Email       string     `db:"email" json:"email"`
	Active      bool       `db:"active" json:"active"`
}
