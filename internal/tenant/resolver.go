package tenant

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/repository"
	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/logger"
)

// IdentityProvider verifies a bearer token and returns the principal it names
type IdentityProvider interface {
	ResolveIdentity(ctx context.Context, token string) (uuid.UUID, error)
}

// Resolver turns credentials into a Context. Memberships and slug lookups are
// cached for the configured TTL; clinic state is read on every call.
type Resolver struct {
	idp         IdentityProvider
	clinics     repository.ClinicRepository
	memberships repository.MembershipRepository
	bindings    *cache.Cache
	slugs       *cache.Cache
	logger      *logger.Logger
}

func NewResolver(idp IdentityProvider, repos repository.Repositories, ttl time.Duration, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		idp:         idp,
		clinics:     repos.Clinics(),
		memberships: repos.Memberships(),
		bindings:    newCache(ttl),
		slugs:       newCache(ttl),
		logger:      log,
	}
}

func newCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		return nil
	}
	return cache.New(ttl, 2*ttl)
}

// Resolve authenticates token and binds the principal to its clinic
func (r *Resolver) Resolve(ctx context.Context, token string) (*Context, error) {
	if token == "" {
		return nil, errors.ErrUnauthenticated
	}
	principalID, err := r.idp.ResolveIdentity(ctx, token)
	if err != nil {
		return nil, errors.New(errors.KindUnauthenticated, err)
	}

	membership, err := r.membership(ctx, principalID)
	if err != nil {
		return nil, err
	}

	tc := &Context{PrincipalID: principalID, Role: membership.Role}
	if membership.Role != model.RolePlatformAdmin {
		if membership.ClinicID == nil {
			return nil, errors.ErrNoTenantBinding
		}
		clinic, err := r.clinic(ctx, *membership.ClinicID)
		if err != nil {
			return nil, err
		}
		if !clinic.Active {
			return nil, errors.ErrClinicInactive
		}
		tc.clinicID = clinic.ID
	}

	r.logger.Debug("tenant resolved", "principal_id", principalID.String(), "role", string(tc.Role))
	return tc, nil
}

// membership returns the principal's cached binding. The clinic it points at
// is always read fresh by the caller.
func (r *Resolver) membership(ctx context.Context, principalID uuid.UUID) (*model.Membership, error) {
	key := principalID.String()
	if r.bindings != nil {
		if cached, ok := r.bindings.Get(key); ok {
			return cached.(*model.Membership), nil
		}
	}

	membership, err := r.memberships.GetActiveByPrincipal(ctx, principalID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrNoTenantBinding
		}
		return nil, errors.StorageUnavailable(err)
	}
	if !membership.Role.Valid() || membership.Role == model.RolePublic {
		return nil, errors.ErrNoTenantBinding
	}

	if r.bindings != nil {
		r.bindings.SetDefault(key, membership)
	}
	return membership, nil
}

// ResolvePublic builds the anonymous self-service context for a clinic slug
func (r *Resolver) ResolvePublic(ctx context.Context, slug string) (*Context, error) {
	clinic, err := r.clinicBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !clinic.Active {
		return nil, errors.ErrClinicInactive
	}
	return &Context{Role: model.RolePublic, clinicID: clinic.ID}, nil
}

// Target points a platform admin at clinicID after checking it exists
func (r *Resolver) Target(ctx context.Context, tc *Context, clinicID uuid.UUID) (*Context, error) {
	targeted, err := tc.ForClinic(clinicID)
	if err != nil {
		return nil, err
	}
	if targeted == tc {
		return tc, nil
	}
	if _, err := r.clinics.Get(ctx, clinicID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrClinicNotFound
		}
		return nil, errors.StorageUnavailable(err)
	}
	return targeted, nil
}

func (r *Resolver) clinicBySlug(ctx context.Context, slug string) (*model.Clinic, error) {
	if slug == "" {
		return nil, errors.ErrNoTenantBinding
	}
	if r.slugs != nil {
		if id, ok := r.slugs.Get(slug); ok {
			return r.clinic(ctx, id.(uuid.UUID))
		}
	}
	clinic, err := r.clinics.GetBySlug(ctx, slug)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrNoTenantBinding
		}
		return nil, errors.StorageUnavailable(err)
	}
	if r.slugs != nil {
		r.slugs.SetDefault(slug, clinic.ID)
	}
	return clinic, nil
}

func (r *Resolver) clinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	clinic, err := r.clinics.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.ErrNoTenantBinding
		}
		return nil, errors.StorageUnavailable(err)
	}
	return clinic, nil
}

// Invalidate drops the cached membership of a principal
func (r *Resolver) Invalidate(principalID uuid.UUID) {
	if r.bindings != nil {
		r.bindings.Delete(principalID.String())
	}
}
