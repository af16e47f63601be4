package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/relief-api/internal/models"
)

const leaveColumns = "id, teacher_id, date, periods, reason, status, decided_by, decided_at, created_at"

// LeaveRepository manages persistence for leave requests.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs a LeaveRepository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

func (r *LeaveRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns leave requests matching the filter along with the total count.
func (r *LeaveRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, int, error) {
	base := "FROM leave_requests WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, filter.Date)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", leaveColumns, base, size, offset)
	var leaves []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &leaves, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list leave requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count leave requests: %w", err)
	}

	return leaves, total, nil
}

// ListAll returns every leave request, oldest first. Snapshot exports use
// this to dump the full history.
func (r *LeaveRepository) ListAll(ctx context.Context) ([]models.LeaveRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_requests ORDER BY created_at, id", leaveColumns)
	var leaves []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &leaves, query); err != nil {
		return nil, fmt.Errorf("list all leave requests: %w", err)
	}
	return leaves, nil
}

// FindByID fetches a leave request by ID.
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_requests WHERE id = $1", leaveColumns)
	var leave models.LeaveRequest
	if err := r.db.GetContext(ctx, &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// FindByIDForUpdate fetches a leave request and locks the row for the life
// of the surrounding transaction. Approval runs against this lock so two
// concurrent decisions cannot both see PENDING.
func (r *LeaveRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LeaveRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_requests WHERE id = $1 FOR UPDATE", leaveColumns)
	var leave models.LeaveRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// Create inserts a new leave request.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.LeaveRequest) error {
	if leave.ID == "" {
		leave.ID = uuid.NewString()
	}
	if leave.Status == "" {
		leave.Status = models.LeaveStatusPending
	}
	if leave.CreatedAt.IsZero() {
		leave.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO leave_requests (id, teacher_id, date, periods, reason, status, created_at)
		VALUES (:id, :teacher_id, :date, :periods, :reason, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, leave); err != nil {
		return fmt.Errorf("create leave request: %w", err)
	}
	return nil
}

// Decide transitions a pending leave request to a terminal status. The
// status guard makes terminal states sticky: a request already decided
// matches zero rows and the caller receives sql.ErrNoRows.
func (r *LeaveRepository) Decide(ctx context.Context, exec sqlx.ExtContext, id string, status models.LeaveStatus, decidedBy string, decidedAt time.Time) error {
	const query = `UPDATE leave_requests SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, id, status, decidedBy, decidedAt, models.LeaveStatusPending)
	if err != nil {
		return fmt.Errorf("decide leave request: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
