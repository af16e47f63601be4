package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/relief-api/internal/service"
	"github.com/noah-isme/relief-api/pkg/response"
)

// DashboardHandler wires the dashboard service to HTTP routes.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs a new DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// ReliefSummary godoc
// @Summary Relief summary for a date
// @Tags Dashboard
// @Produce json
// @Param date query string true "Summary date"
// @Success 200 {object} response.Envelope
// @Router /dashboard/relief [get]
func (h *DashboardHandler) ReliefSummary(c *gin.Context) {
	summary, err := h.dashboard.ReliefSummary(c.Request.Context(), strings.TrimSpace(c.Query("date")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// SystemMetrics godoc
// @Summary Aggregated system metrics
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/system [get]
func (h *DashboardHandler) SystemMetrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.dashboard.SystemMetrics(), nil)
}
