package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/relief-api/internal/service"
	"github.com/noah-isme/relief-api/pkg/response"
)

// ExportHandler wires the export service to HTTP routes.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs a new ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Snapshot godoc
// @Summary Export the full dataset as JSON
// @Tags Exports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exports/snapshot [post]
func (h *ExportHandler) Snapshot(c *gin.Context) {
	result, err := h.exports.Snapshot(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// EnqueueReport godoc
// @Summary Schedule a relief report
// @Tags Exports
// @Produce json
// @Param date query string true "Report date"
// @Param format query string false "Report format (csv,pdf)"
// @Success 202 {object} response.Envelope
// @Router /exports/relief-report [post]
func (h *ExportHandler) EnqueueReport(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", service.ReportFormatCSV)))
	job, err := h.exports.EnqueueReliefReport(strings.TrimSpace(c.Query("date")), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// ReportStatus godoc
// @Summary Report job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/relief-report/{id} [get]
func (h *ExportHandler) ReportStatus(c *gin.Context) {
	job, err := h.exports.ReportStatus(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// DownloadReport godoc
// @Summary Download a finished report
// @Tags Exports
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Success 200 {file} binary
// @Router /exports/relief-report/{id}/download [get]
func (h *ExportHandler) DownloadReport(c *gin.Context) {
	path, err := h.exports.OpenReport(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, path[strings.LastIndex(path, "/")+1:])
}
