package prescription

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-core/internal/handler"
	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/service/prescription"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
)

type Handler struct {
	service *prescription.Service
}

func NewHandler(service *prescription.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.POST("", h.Prescribe)
		prescriptions.GET("/:id", h.GetPrescription)
		prescriptions.PUT("/:id/status", h.UpdateStatus)
		prescriptions.POST("/:id/adherence", h.LogAdherence)
		prescriptions.GET("/:id/adherence", h.AdherenceRate)
	}
	r.GET("/patients/:id/prescriptions", h.ListForPatient)
}

func (h *Handler) Prescribe(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	var req prescription.PrescribeInput
	if !handler.Bind(c, &req) {
		return
	}

	p, err := h.service.Prescribe(c.Request.Context(), tc, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c *gin.Context) {
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

func (h *Handler) ListForPatient(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	patientID, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	ps, err := h.service.ListForPatient(c.Request.Context(), tc, patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, ps)
}

type statusRequest struct {
	Status model.PrescriptionStatus `json:"status"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !handler.Bind(c, &req) {
		return
	}

	p, err := h.service.UpdateStatus(c.Request.Context(), tc, id, req.Status)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

type adherenceRequest struct {
	Date      model.Date             `json:"date"`
	Completed bool                   `json:"completed"`
	Actuals   model.AdherenceActuals `json:"actuals"`
}

func (h *Handler) LogAdherence(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req adherenceRequest
	if !handler.Bind(c, &req) {
		return
	}

	log, err := h.service.LogAdherence(c.Request.Context(), tc, prescription.AdherenceInput{
		PrescriptionID: id,
		Date:           req.Date,
		Completed:      req.Completed,
		Actuals:        req.Actuals,
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, log)
}

func (h *Handler) AdherenceRate(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.service.AdherenceRate(c.Request.Context(), tc, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, summary)
}
