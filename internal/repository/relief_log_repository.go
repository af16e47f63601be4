package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/relief-api/internal/models"
)

const reliefLogColumns = "id, leave_id, date, class_name, period, subject, outcome, assigned_teacher_id, assigned_teacher_name, detail, created_at"

// ReliefLogRepository persists per-period assignment outcomes.
type ReliefLogRepository struct {
	db *sqlx.DB
}

// NewReliefLogRepository constructs a ReliefLogRepository.
func NewReliefLogRepository(db *sqlx.DB) *ReliefLogRepository {
	return &ReliefLogRepository{db: db}
}

func (r *ReliefLogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts relief log entries preserving their order.
func (r *ReliefLogRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.ReliefLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	target := r.exec(exec)
	const query = `INSERT INTO relief_log (id, leave_id, date, class_name, period, subject, outcome, assigned_teacher_id, assigned_teacher_name, detail, created_at)
		VALUES (:id, :leave_id, :date, :class_name, :period, :subject, :outcome, :assigned_teacher_id, :assigned_teacher_name, :detail, :created_at)`
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entries[i]); err != nil {
			return fmt.Errorf("create relief log entry: %w", err)
		}
	}
	return nil
}

// List returns relief log entries matching the filter, oldest first.
func (r *ReliefLogRepository) List(ctx context.Context, filter models.ReliefLogFilter) ([]models.ReliefLogEntry, error) {
	base := "FROM relief_log WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.LeaveID != "" {
		conditions = append(conditions, fmt.Sprintf("leave_id = $%d", len(args)+1))
		args = append(args, filter.LeaveID)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, filter.Date)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", len(args)+1))
		args = append(args, filter.Outcome)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at, period", reliefLogColumns, base)
	var entries []models.ReliefLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list relief log: %w", err)
	}
	return entries, nil
}

// CountByOutcome tallies assigned versus unfilled periods for a date.
func (r *ReliefLogRepository) CountByOutcome(ctx context.Context, date string) (assigned int, unfilled int, err error) {
	const query = `SELECT outcome, COUNT(*) AS count FROM relief_log WHERE date = $1 GROUP BY outcome`
	rows := []struct {
		Outcome models.ReliefOutcome `db:"outcome"`
		Count   int                  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return 0, 0, fmt.Errorf("count relief outcomes: %w", err)
	}
	for _, row := range rows {
		switch row.Outcome {
		case models.ReliefOutcomeAssigned:
			assigned = row.Count
		case models.ReliefOutcomeUnfilled:
			unfilled = row.Count
		}
	}
	return assigned, unfilled, nil
}
