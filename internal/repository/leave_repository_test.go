package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/relief-api/internal/models"
)

func newLeaveMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLeaveRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newLeaveMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec("INSERT INTO leave_requests").
		WithArgs(sqlmock.AnyArg(), "t1", "2026-09-01", sqlmock.AnyArg(), "medical", string(models.LeaveStatusPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	leave := &models.LeaveRequest{
		TeacherID: "t1",
		Date:      "2026-09-01",
		Periods:   pq.Int64Array{3, 4},
		Reason:    "medical",
	}
	require.NoError(t, repo.Create(context.Background(), leave))
	assert.NotEmpty(t, leave.ID)
	assert.Equal(t, models.LeaveStatusPending, leave.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryDecide(t *testing.T) {
	db, mock, cleanup := newLeaveMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_requests SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = $5")).
		WithArgs("l1", string(models.LeaveStatusApproved), "admin", sqlmock.AnyArg(), string(models.LeaveStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Decide(context.Background(), nil, "l1", models.LeaveStatusApproved, "admin", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryDecideAlreadyTerminal(t *testing.T) {
	db, mock, cleanup := newLeaveMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec("UPDATE leave_requests SET status").
		WithArgs("l1", string(models.LeaveStatusRejected), "admin", sqlmock.AnyArg(), string(models.LeaveStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Decide(context.Background(), nil, "l1", models.LeaveStatusRejected, "admin", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestLeaveRepositoryFindByIDForUpdateLocksRow(t *testing.T) {
	db, mock, cleanup := newLeaveMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "date", "periods", "reason", "status", "decided_by", "decided_at", "created_at"}).
		AddRow("l1", "t1", "2026-09-01", "{3,4}", "medical", "PENDING", nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, date, periods, reason, status, decided_by, decided_at, created_at FROM leave_requests WHERE id = $1 FOR UPDATE")).
		WithArgs("l1").
		WillReturnRows(rows)

	leave, err := repo.FindByIDForUpdate(context.Background(), nil, "l1")
	require.NoError(t, err)
	assert.Equal(t, "l1", leave.ID)
	assert.Equal(t, pq.Int64Array{3, 4}, leave.Periods)
	assert.NoError(t, mock.ExpectationsWereMet())
}
