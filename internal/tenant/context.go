// Package tenant binds every request to exactly one clinic and one role.
package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/pkg/errors"
)

// Context is the resolved identity of a caller. It is immutable; ForClinic
// returns a copy.
type Context struct {
	PrincipalID uuid.UUID
	Role        model.Role
	clinicID    uuid.UUID
}

// NewContext builds a context for a principal already bound to clinicID. A
// platform admin passes uuid.Nil and targets clinics with ForClinic.
func NewContext(principalID uuid.UUID, role model.Role, clinicID uuid.UUID) *Context {
	return &Context{PrincipalID: principalID, Role: role, clinicID: clinicID}
}

func (c *Context) IsPlatformAdmin() bool {
	return c.Role == model.RolePlatformAdmin
}

// IsSelfService reports whether the caller books for themselves
func (c *Context) IsSelfService() bool {
	return c.Role == model.RolePatient || c.Role == model.RolePublic
}

// ClinicID returns the bound clinic, uuid.Nil for an untargeted platform admin
func (c *Context) ClinicID() uuid.UUID {
	return c.clinicID
}

// Scope is the only way to obtain a model.ClinicScope for store access
func (c *Context) Scope() (model.ClinicScope, error) {
	if c.clinicID == uuid.Nil {
		if c.IsPlatformAdmin() {
			return model.ClinicScope{}, errors.Newf(errors.KindInvalidInput, "platform admin must select a clinic")
		}
		return model.ClinicScope{}, errors.ErrNoTenantBinding
	}
	scope, err := model.ScopeOf(c.clinicID)
	if err != nil {
		return model.ClinicScope{}, errors.New(errors.KindNoTenantBinding, err)
	}
	return scope, nil
}

// ForClinic targets clinicID. Only a platform admin may switch clinics; for
// everyone else it succeeds only for the clinic already bound.
func (c *Context) ForClinic(clinicID uuid.UUID) (*Context, error) {
	if clinicID == uuid.Nil {
		return nil, errors.InvalidInput("clinic id is required", nil)
	}
	if c.IsPlatformAdmin() {
		cp := *c
		cp.clinicID = clinicID
		return &cp, nil
	}
	if clinicID != c.clinicID {
		return nil, errors.ErrPermissionDenied
	}
	return c, nil
}

// CheckClinic cross-checks a clinic id supplied in a payload
func (c *Context) CheckClinic(payloadClinicID uuid.UUID) error {
	if payloadClinicID == uuid.Nil {
		return nil
	}
	if c.clinicID == uuid.Nil || payloadClinicID != c.clinicID {
		return errors.ErrPermissionDenied
	}
	return nil
}

type contextKey struct{}

func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok && tc != nil
}
