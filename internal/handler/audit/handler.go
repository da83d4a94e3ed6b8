package audit

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-core/internal/handler"
	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/service/audit"
	"github.com/jwalitptl/clinic-core/pkg/errors"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	logs := r.Group("/audit")
	{
		logs.GET("/logs", h.ListLogs)
		logs.GET("/export", h.ExportLogs)
	}
}

func (h *Handler) filters(c *gin.Context) (model.AuditFilters, bool) {
	var (
		filters model.AuditFilters
		ok      bool
	)
	filters.EntityType = c.Query("entity_type")
	if filters.EntityID, ok = handler.QueryUUID(c, "entity_id"); !ok {
		return filters, false
	}
	if filters.ActorID, ok = handler.QueryUUID(c, "actor_id"); !ok {
		return filters, false
	}
	filters.Pagination = handler.Page(c)
	return filters, true
}

func (h *Handler) ListLogs(c *gin.Context) {
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	filters, ok := h.filters(c)
	if !ok {
		return
	}

	logs, err := h.service.List(c.Request.Context(), tc, filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithPage(c, logs, filters.Limit, filters.Offset, len(logs))
}

func (h *Handler) ExportLogs(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		handler.Fail(c, errors.InvalidInput("unsupported format", nil))
		return
	}
	tc, err := handler.Tenant(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	filters, ok := h.filters(c)
	if !ok {
		return
	}

	logs, err := h.service.List(c.Request.Context(), tc, filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, logs)
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"ID", "Actor ID", "Actor Role", "Action", "Entity Type", "Entity ID", "Request ID", "Created At"})
	for _, log := range logs {
		_ = writer.Write([]string{
			log.ID.String(),
			log.ActorID.String(),
			string(log.ActorRole),
			log.Action,
			log.EntityType,
			log.EntityID.String(),
			log.RequestID,
			log.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
}
