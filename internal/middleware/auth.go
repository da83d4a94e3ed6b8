package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
)

// HeaderClinicID lets a platform admin pick the clinic a request acts on
const HeaderClinicID = "X-Clinic-ID"

type AuthMiddleware struct {
	resolver *tenant.Resolver
}

func NewAuthMiddleware(resolver *tenant.Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Authenticate resolves the bearer token into a tenant context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.RespondWithError(c, errors.ErrUnauthenticated)
			return
		}

		ctx := c.Request.Context()
		tc, err := m.resolver.Resolve(ctx, strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		if raw := c.GetHeader(HeaderClinicID); raw != "" {
			clinicID, err := uuid.Parse(raw)
			if err != nil {
				httputil.RespondWithError(c, errors.InvalidInput("invalid "+HeaderClinicID+" header", err))
				return
			}
			if tc, err = m.resolver.Target(ctx, tc, clinicID); err != nil {
				httputil.RespondWithError(c, err)
				return
			}
		}

		c.Request = c.Request.WithContext(tenant.WithContext(ctx, tc))
		c.Next()
	}
}

// PublicTenant binds anonymous requests to the clinic named by the slug
// path parameter
func (m *AuthMiddleware) PublicTenant(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := m.resolver.ResolvePublic(c.Request.Context(), c.Param(param))
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(), tc))
		c.Next()
	}
}
