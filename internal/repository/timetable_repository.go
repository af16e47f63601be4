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

const slotColumns = "id, class_name, period, teacher_id, subject, created_at, updated_at"

// TimetableRepository manages persistence for timetable slots.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns slots matching the filter along with the total count.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlot, int, error) {
	base := "FROM timetable_slots WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Period > 0 {
		conditions = append(conditions, fmt.Sprintf("period = $%d", len(args)+1))
		args = append(args, filter.Period)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassName != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(class_name) = LOWER($%d)", len(args)+1))
		args = append(args, filter.ClassName)
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
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY period, class_name LIMIT %d OFFSET %d", slotColumns, base, size, offset)
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable slots: %w", err)
	}

	return slots, total, nil
}

// ListAll returns the full timetable.
func (r *TimetableRepository) ListAll(ctx context.Context) ([]models.TimetableSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_slots ORDER BY period, class_name", slotColumns)
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list all timetable slots: %w", err)
	}
	return slots, nil
}

// FindByID fetches a slot by ID.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_slots WHERE id = $1", slotColumns)
	var slot models.TimetableSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create inserts a new timetable slot.
func (r *TimetableRepository) Create(ctx context.Context, slot *models.TimetableSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO timetable_slots (id, class_name, period, teacher_id, subject, created_at, updated_at)
		VALUES (:id, :class_name, :period, :teacher_id, :subject, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create timetable slot: %w", err)
	}
	return nil
}

// Delete removes a timetable slot.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetable_slots WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable slot: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearTeacher nulls the teacher reference on every slot pointing at the
// given teacher and returns the number of slots touched.
func (r *TimetableRepository) ClearTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int, error) {
	const query = `UPDATE timetable_slots SET teacher_id = NULL, updated_at = $2 WHERE teacher_id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, teacherID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clear slot teacher: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared slots: %w", err)
	}
	return int(affected), nil
}
