package report

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-core/internal/handler"
	"github.com/jwalitptl/clinic-core/internal/model"
	"github.com/jwalitptl/clinic-core/internal/service/report"
	"github.com/jwalitptl/clinic-core/internal/tenant"
	"github.com/jwalitptl/clinic-core/pkg/httputil"
)

type Handler struct {
	service *report.Service
}

func NewHandler(service *report.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("/revenue", h.run(h.service.Revenue))
		reports.GET("/sessions", h.run(h.service.Sessions))
	}
}

type reportFunc func(ctx context.Context, tc *tenant.Context, from, to model.Date) (*model.Report, error)

func (h *Handler) run(fn reportFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := handler.Tenant(c)
		if err != nil {
			handler.Fail(c, err)
			return
		}
		from, ok := handler.QueryDate(c, "from", true)
		if !ok {
			return
		}
		to, ok := handler.QueryDate(c, "to", true)
		if !ok {
			return
		}

		rep, err := fn(c.Request.Context(), tc, from, to)
		if err != nil {
			handler.Fail(c, err)
			return
		}
		httputil.RespondWithSuccess(c, http.StatusOK, rep)
	}
}
