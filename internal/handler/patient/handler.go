package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-core/internal/handler"
	"github.com/jwalitptl/clinic-core/internal/service/patient"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	var req patient.RegisterInput
	if !handler.Bind(c, &req) {
		return
	}

	p, err := h.service.Register(c.Request.Context(), tc, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, p)
}

func (h *Handler) GetPatient(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), tc, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}
