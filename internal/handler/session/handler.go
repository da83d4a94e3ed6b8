package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-core/internal/handler"
	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/service/clinical"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
)

type Handler struct {
	service *clinical.Service
}

func NewHandler(service *clinical.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/appointments/:id/session", h.CreateSession)
	r.GET("/appointments/:id/session", h.GetSession)
}

type sessionRequest struct {
	model.SOAP
	PainLevel *int `json:"pain_level,omitempty"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	appointmentID, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req sessionRequest
	if !handler.Bind(c, &req) {
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), tc, clinical.SessionInput{
		AppointmentID: appointmentID,
		SOAP:          req.SOAP,
		PainLevel:     req.PainLevel,
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, session)
}

func (h *Handler) GetSession(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	appointmentID, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), tc, appointmentID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, session)
}
