package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/relief-api/internal/models"
)

func newTimetableMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableRepositoryClearTeacher(t *testing.T) {
	db, mock, cleanup := newTimetableMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_slots SET teacher_id = NULL, updated_at = $2 WHERE teacher_id = $1")).
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	cleared, err := repo.ClearTeacher(context.Background(), nil, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, cleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryClearTeacherCountError(t *testing.T) {
	db, mock, cleanup := newTimetableMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_slots SET teacher_id = NULL, updated_at = $2 WHERE teacher_id = $1")).
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unsupported")))

	cleared, err := repo.ClearTeacher(context.Background(), nil, "t1")
	require.Error(t, err)
	assert.Equal(t, 0, cleared)
	assert.Contains(t, err.Error(), "count cleared slots")
}

func TestTimetableRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTimetableMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec("INSERT INTO timetable_slots").
		WithArgs(sqlmock.AnyArg(), "10A", 3, nil, "Math", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slot := &models.TimetableSlot{ClassName: "10A", Period: 3, Subject: "Math"}
	require.NoError(t, repo.Create(context.Background(), slot))
	assert.NotEmpty(t, slot.ID)
}
