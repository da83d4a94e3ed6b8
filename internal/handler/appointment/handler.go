package appointment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-core/internal/handler"
	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/service/scheduling"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
)

type Handler struct {
	engine *scheduling.Engine
}

func NewHandler(engine *scheduling.Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("/slots", h.GetAvailableSlots)
		appointments.POST("", h.BookAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/reschedule", h.RescheduleAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/no-show", h.MarkNoShow)
	}
}

// RegisterPublicRoutes mounts the anonymous booking surface on a group that
// already carries the public tenant binding
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/slots", h.GetAvailableSlots)
	r.POST("/appointments", h.BookAppointment)
}

func (h *Handler) GetAvailableSlots(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var q scheduling.SlotQuery
	serviceID, ok := handler.QueryUUID(c, "service_id")
	if !ok {
		return
	}
	if serviceID != nil {
		q.ServiceID = *serviceID
	}
	if q.TherapistID, ok = handler.QueryUUID(c, "therapist_id"); !ok {
		return
	}
	if q.Date, ok = handler.QueryDate(c, "date", true); !ok {
		return
	}

	slots, err := h.engine.GetAvailableSlots(c.Request.Context(), tc, q)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, slots)
}

func (h *Handler) BookAppointment(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var req scheduling.BookingRequest
	if !handler.Bind(c, &req) {
		return
	}

	appointment, err := h.engine.BookAppointment(c.Request.Context(), tc, req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, appointment)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.engine.GetAppointment(c.Request.Context(), tc, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointment)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	var (
		filters model.AppointmentFilters
		ok      bool
	)
	if filters.TherapistID, ok = handler.QueryUUID(c, "therapist_id"); !ok {
		return
	}
	if filters.PatientID, ok = handler.QueryUUID(c, "patient_id"); !ok {
		return
	}
	if filters.From, ok = handler.QueryTime(c, "from"); !ok {
		return
	}
	if filters.To, ok = handler.QueryTime(c, "to"); !ok {
		return
	}
	if status := c.Query("status"); status != "" {
		s := model.AppointmentStatus(status)
		filters.Status = &s
	}
	filters.Pagination = handler.Page(c)

	appointments, err := h.engine.ListAppointments(c.Request.Context(), tc, filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithPage(c, appointments, filters.Limit, filters.Offset, len(appointments))
}

type rescheduleRequest struct {
	StartTime time.Time `json:"start_time"`
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req rescheduleRequest
	if !handler.Bind(c, &req) {
		return
	}

	appointment, err := h.engine.RescheduleAppointment(c.Request.Context(), tc, id, req.StartTime)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointment)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	// the body is optional
	var req cancelRequest
	if c.Request.ContentLength > 0 && !handler.Bind(c, &req) {
		return
	}

	appointment, err := h.engine.CancelAppointment(c.Request.Context(), tc, id, req.Reason)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointment)
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.engine.MarkNoShow(c.Request.Context(), tc, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointment)
}
