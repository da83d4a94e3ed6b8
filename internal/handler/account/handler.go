package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-core/internal/handler"
	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/permission"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
}

type meResponse struct {
	PrincipalID  uuid.UUID               `json:"principal_id"`
	Role         model.Role              `json:"role"`
	ClinicID     *uuid.UUID              `json:"clinic_id,omitempty"`
	Capabilities []permission.Capability `json:"capabilities"`
}

// Me describes the caller's binding so clients can shape their UI
func (h *Handler) Me(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	resp := meResponse{
		PrincipalID:  tc.PrincipalID,
		Role:         tc.Role,
		Capabilities: permission.Capabilities(tc.Role),
	}
	if id := tc.ClinicID(); id != uuid.Nil {
		resp.ClinicID = &id
	}
	httputil.RespondWithSuccess(c, http.StatusOK, resp)
}
