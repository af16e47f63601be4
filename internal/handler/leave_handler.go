package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/relief-api/internal/models"
	"github.com/noah-isme/relief-api/internal/service"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
	"github.com/noah-isme/relief-api/pkg/response"
)

// LeaveHandler wires the leave lifecycle to HTTP routes.
type LeaveHandler struct {
	leaves    *service.LeaveService
	reliefLog *service.ReliefLogService
}

// NewLeaveHandler constructs a new LeaveHandler.
func NewLeaveHandler(leaves *service.LeaveService, reliefLog *service.ReliefLogService) *LeaveHandler {
	return &LeaveHandler{leaves: leaves, reliefLog: reliefLog}
}

// List godoc
// @Summary List leave requests
// @Tags Leaves
// @Produce json
// @Param teacher_id query string false "Filter by teacher"
// @Param status query string false "Filter by status (PENDING,APPROVED,REJECTED)"
// @Param date query string false "Filter by date"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leaves [get]
func (h *LeaveHandler) List(c *gin.Context) {
	filter := models.LeaveFilter{
		TeacherID: strings.TrimSpace(c.Query("teacher_id")),
		Status:    models.LeaveStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Date:      strings.TrimSpace(c.Query("date")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	leaves, pagination, err := h.leaves.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, pagination)
}

// Get godoc
// @Summary Get a leave request
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Router /leaves/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	leave, err := h.leaves.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leave, nil)
}

// Submit godoc
// @Summary Submit a leave request
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body service.SubmitLeaveRequest true "Leave payload"
// @Success 201 {object} response.Envelope
// @Router /leaves [post]
func (h *LeaveHandler) Submit(c *gin.Context) {
	var req service.SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leave payload"))
		return
	}
	leave, err := h.leaves.Submit(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// Approve godoc
// @Summary Approve a leave request and assign relief
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id}/approve [post]
func (h *LeaveHandler) Approve(c *gin.Context) {
	report, err := h.leaves.Approve(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Reject godoc
// @Summary Reject a leave request
// @Tags Leaves
// @Produce json
// @Param id path string true "Leave ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id}/reject [post]
func (h *LeaveHandler) Reject(c *gin.Context) {
	if err := h.leaves.Reject(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ReliefLog godoc
// @Summary List relief log entries
// @Tags Leaves
// @Produce json
// @Param leave_id query string false "Filter by leave request"
// @Param date query string false "Filter by date"
// @Param outcome query string false "Filter by outcome (ASSIGNED,UNFILLED)"
// @Success 200 {object} response.Envelope
// @Router /relief-log [get]
func (h *LeaveHandler) ReliefLog(c *gin.Context) {
	filter := models.ReliefLogFilter{
		LeaveID: strings.TrimSpace(c.Query("leave_id")),
		Date:    strings.TrimSpace(c.Query("date")),
		Outcome: models.ReliefOutcome(strings.ToUpper(strings.TrimSpace(c.Query("outcome")))),
	}
	entries, err := h.reliefLog.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
