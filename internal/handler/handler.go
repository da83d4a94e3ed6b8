// Package handler holds the helpers shared by the HTTP handlers.
package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/errors"
)

// Tenant returns the tenant context the auth middleware bound to the request
func Tenant(c *gin.Context) (*tenant.Context, error) {
	tc, ok := tenant.FromContext(c.Request.Context())
	if !ok {
		return nil, errors.ErrUnauthenticated
	}
	return tc, nil
}

// Fail hands err to the error middleware
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Bind decodes the JSON body
func Bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		Fail(c, errors.InvalidInput("malformed request body", err))
		return false
	}
	return true
}

// ParamUUID parses a uuid path parameter
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Fail(c, errors.InvalidInput("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional uuid query parameter
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		Fail(c, errors.InvalidInput("invalid "+name, err))
		return nil, false
	}
	return &id, true
}

// QueryDate parses a YYYY-MM-DD query parameter
func QueryDate(c *gin.Context, name string, required bool) (model.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			Fail(c, errors.InvalidInput(name+" is required", nil))
			return model.Date{}, false
		}
		return model.Date{}, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		Fail(c, errors.InvalidInput("invalid "+name, err))
		return model.Date{}, false
	}
	return d, true
}

// QueryTime parses an optional RFC3339 query parameter
func QueryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		Fail(c, errors.InvalidInput("invalid "+name, err))
		return nil, false
	}
	return &t, true
}

// Page reads limit and offset, clamped to the listing bounds
func Page(c *gin.Context) model.Pagination {
	var p model.Pagination
	p.Limit, _ = strconv.Atoi(c.Query("limit"))
	p.Offset, _ = strconv.Atoi(c.Query("offset"))
	return p.Normalize()
}
