package model

import (
	"errors"

	"github.com/google/uuid"
)

var errNilClinic = errors.New("clinic scope requires a clinic id")

// ClinicScope is the tenant every store access is bound to. The zero value is
// rejected by repositories.
type ClinicScope struct {
	clinicID uuid.UUID
}

// ScopeOf builds a scope for the given clinic
func ScopeOf(clinicID uuid.UUID) (ClinicScope, error) {
	if clinicID == uuid.Nil {
		return ClinicScope{}, errNilClinic
	}
	return ClinicScope{clinicID: clinicID}, nil
}

// ClinicID returns the bound clinic
func (s ClinicScope) ClinicID() uuid.UUID {
	return s.clinicID
}

// Valid reports whether the scope was built through ScopeOf
func (s ClinicScope) Valid() bool {
	return s.clinicID != uuid.Nil
}

// Owns reports whether a row with the given clinic id belongs to this scope
func (s ClinicScope) Owns(clinicID uuid.UUID) bool {
	return s.Valid() && s.clinicID == clinicID
}
