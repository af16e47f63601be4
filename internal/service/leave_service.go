package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
)

type leaveStore interface {
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, int, error)
	FindByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LeaveRequest, error)
	Create(ctx context.Context, leave *models.LeaveRequest) error
	Decide(ctx context.Context, exec sqlx.ExtContext, id string, status models.LeaveStatus, decidedBy string, decidedAt time.Time) error
}

type reliefTeacherStore interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
	IncrementWorkload(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type reliefSlotReader interface {
	ListAll(ctx context.Context) ([]models.TimetableSlot, error)
}

type reliefLogWriter interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.ReliefLogEntry) error
}

type leaveTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type leaveAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type reliefMetrics interface {
	RecordReliefOutcome(outcome models.ReliefOutcome)
	RecordLeaveDecision(status models.LeaveStatus)
}

// SubmitLeaveRequest describes a leave submission payload. The teacher id
// is deliberately not checked against the roster: the office accepts leave
// notices for staff the roster may not know yet.
type SubmitLeaveRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Periods   []int  `json:"periods" validate:"required,min=1,dive,gt=0"`
	Reason    string `json:"reason" validate:"omitempty,max=500"`
}

// LeaveServiceConfig carries placeholder labels for periods the published
// timetable does not cover.
type LeaveServiceConfig struct {
	PlaceholderClass   string
	PlaceholderSubject string
}

// LeaveService drives the leave lifecycle: submit, approve with relief
// assignment, reject.
type LeaveService struct {
	leaves   leaveStore
	teachers reliefTeacherStore
	slots    reliefSlotReader
	logs     reliefLogWriter
	engine   *AssignmentEngine
	tx       leaveTxProvider
	audit    leaveAuditLogger
	metrics  reliefMetrics

	validator *validator.Validate
	logger    *zap.Logger
	cfg       LeaveServiceConfig
}

// NewLeaveService wires leave lifecycle dependencies.
func NewLeaveService(
	leaves leaveStore,
	teachers reliefTeacherStore,
	slots reliefSlotReader,
	logs reliefLogWriter,
	engine *AssignmentEngine,
	tx leaveTxProvider,
	audit leaveAuditLogger,
	metrics reliefMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg LeaveServiceConfig,
) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewAssignmentEngine()
	}
	if cfg.PlaceholderClass == "" {
		cfg.PlaceholderClass = "Unknown"
	}
	if cfg.PlaceholderSubject == "" {
		cfg.PlaceholderSubject = "General"
	}
	return &LeaveService{
		leaves:    leaves,
		teachers:  teachers,
		slots:     slots,
		logs:      logs,
		engine:    engine,
		tx:        tx,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns leave requests plus pagination data.
func (s *LeaveService) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, *models.Pagination, error) {
	leaves, total, err := s.leaves.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return leaves, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a leave request by id.
func (s *LeaveService) Get(ctx context.Context, id string) (*models.LeaveRequest, error) {
	leave, err := s.leaves.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	return leave, nil
}

// Submit registers a new pending leave request.
func (s *LeaveService) Submit(ctx context.Context, req SubmitLeaveRequest, actorID string) (*models.LeaveRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
	}

	periods := make([]int64, 0, len(req.Periods))
	for _, p := range req.Periods {
		periods = append(periods, int64(p))
	}

	leave := &models.LeaveRequest{
		TeacherID: strings.TrimSpace(req.TeacherID),
		Date:      strings.TrimSpace(req.Date),
		Periods:   periods,
		Reason:    strings.TrimSpace(req.Reason),
		Status:    models.LeaveStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.leaves.Create(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave request")
	}

	s.emitAudit(ctx, actorID, models.AuditActionLeaveSubmit, leave.ID, map[string]interface{}{
		"teacher_id": leave.TeacherID,
		"date":       leave.Date,
		"periods":    req.Periods,
	})
	return leave, nil
}

// Approve transitions a pending leave to APPROVED and assigns relief for
// each vacated period in the order the request listed them. Every
// successful pick raises that teacher's workload before the next period is
// considered, so earlier periods get first choice among the least loaded.
// The approval is unconditional: unfilled periods are logged, not blocking.
func (s *LeaveService) Approve(ctx context.Context, leaveID, actorID string) (*models.AssignmentReport, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to begin approval transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	leave, err := s.leaves.FindByIDForUpdate(ctx, tx, leaveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	if leave.Status != models.LeaveStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "leave request already decided")
	}

	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	slots, err := s.slots.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	// The absent teacher never covers their own periods, including periods
	// where they hold no slot and would otherwise look free.
	roster := make([]models.Teacher, 0, len(teachers))
	for _, t := range teachers {
		if t.ID == leave.TeacherID {
			continue
		}
		roster = append(roster, t)
	}

	report := &models.AssignmentReport{
		LeaveID:   leave.ID,
		TeacherID: leave.TeacherID,
		Date:      leave.Date,
	}
	entries := make([]models.ReliefLogEntry, 0, len(leave.Periods))

	for _, raw := range leave.Periods {
		period := int(raw)
		className, subject := s.vacatedSlot(leave.TeacherID, period, slots)

		assignment := models.PeriodAssignment{
			Period:    period,
			ClassName: className,
			Subject:   subject,
		}
		entry := models.ReliefLogEntry{
			LeaveID:   leave.ID,
			Date:      leave.Date,
			ClassName: className,
			Period:    period,
			Subject:   subject,
		}

		if pick := s.engine.FindReplacement(period, subject, roster, slots); pick != nil {
			if err := s.teachers.IncrementWorkload(ctx, tx, pick.ID); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to record workload increment")
			}
			// Raise the in-memory counter too so the next period in this
			// approval sees the updated load.
			pick.WorkloadToday++

			assignment.Outcome = models.ReliefOutcomeAssigned
			assignment.AssignedTeacherID = pick.ID
			assignment.AssignedTeacherName = pick.FullName
			entry.Outcome = models.ReliefOutcomeAssigned
			entry.AssignedTeacherID = &pick.ID
			entry.AssignedTeacherName = &pick.FullName
			report.Filled++
		} else {
			assignment.Outcome = models.ReliefOutcomeUnfilled
			assignment.Detail = "no eligible teacher"
			entry.Outcome = models.ReliefOutcomeUnfilled
			entry.Detail = "no eligible teacher"
			report.Unfilled++
		}

		report.Assignments = append(report.Assignments, assignment)
		entries = append(entries, entry)
	}

	if err := s.logs.CreateBatch(ctx, tx, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to write relief log")
	}

	now := time.Now().UTC()
	if err := s.leaves.Decide(ctx, tx, leave.ID, models.LeaveStatusApproved, actorID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "leave request already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update leave status")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to commit approval")
	}

	if s.metrics != nil {
		for _, a := range report.Assignments {
			s.metrics.RecordReliefOutcome(a.Outcome)
		}
		s.metrics.RecordLeaveDecision(models.LeaveStatusApproved)
	}

	s.logger.Info("leave approved",
		zap.String("leave_id", leave.ID),
		zap.String("teacher_id", leave.TeacherID),
		zap.String("date", leave.Date),
		zap.Int("filled", report.Filled),
		zap.Int("unfilled", report.Unfilled),
	)
	s.emitAudit(ctx, actorID, models.AuditActionLeaveApprove, leave.ID, map[string]interface{}{
		"filled":   report.Filled,
		"unfilled": report.Unfilled,
	})
	return report, nil
}

// Reject transitions a pending leave to REJECTED. No assignment runs.
func (s *LeaveService) Reject(ctx context.Context, leaveID, actorID string) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to begin rejection transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	leave, err := s.leaves.FindByIDForUpdate(ctx, tx, leaveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "leave request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave request")
	}
	if leave.Status != models.LeaveStatusPending {
		return appErrors.Clone(appErrors.ErrConflict, "leave request already decided")
	}

	if err := s.leaves.Decide(ctx, tx, leave.ID, models.LeaveStatusRejected, actorID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "leave request already decided")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update leave status")
	}

	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to commit rejection")
	}

	if s.metrics != nil {
		s.metrics.RecordLeaveDecision(models.LeaveStatusRejected)
	}
	s.emitAudit(ctx, actorID, models.AuditActionLeaveReject, leave.ID, nil)
	return nil
}

// vacatedSlot resolves the class and subject the absent teacher leaves
// behind in the given period. When the published timetable has no matching
// slot the report still needs labels, so placeholders stand in; nothing is
// persisted for them.
func (s *LeaveService) vacatedSlot(teacherID string, period int, slots []models.TimetableSlot) (className, subject string) {
	for _, slot := range slots {
		if slot.Period == period && slot.TeacherID != nil && *slot.TeacherID == teacherID {
			return slot.ClassName, slot.Subject
		}
	}
	return s.cfg.PlaceholderClass, s.cfg.PlaceholderSubject
}

func (s *LeaveService) emitAudit(ctx context.Context, actorID, action, leaveID string, detail map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var payload []byte
	if detail != nil {
		payload, _ = json.Marshal(detail)
	}
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "leave_request",
		ResourceID: &leaveID,
		Detail:     payload,
		IPAddress:  "system",
		UserAgent:  "leave-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
