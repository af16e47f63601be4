package repository

import (
	"context"
	"database/sql"
	"errors"
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

func newTeacherMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTeacherRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec("INSERT INTO teachers").
		WithArgs(sqlmock.AnyArg(), "Teacher One", sqlmock.AnyArg(), "t1@school.test", 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	teacher := &models.Teacher{
		FullName: "Teacher One",
		Subjects: pq.StringArray{"Math"},
		Contact:  "t1@school.test",
	}
	require.NoError(t, repo.Create(context.Background(), teacher))
	assert.NotEmpty(t, teacher.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryIncrementWorkload(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET workload_today = workload_today + 1, updated_at = $2 WHERE id = $1")).
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementWorkload(context.Background(), nil, "t1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryIncrementWorkloadMissingTeacher(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec("UPDATE teachers SET workload_today").
		WithArgs("ghost", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementWorkload(context.Background(), nil, "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTeacherRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teachers WHERE id = $1")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), nil, "t1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryResetWorkloads(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET workload_today = 0, updated_at = $1 WHERE workload_today <> 0")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	affected, err := repo.ResetWorkloads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, affected)
}

func TestTeacherRepositoryResetWorkloadsCountError(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET workload_today = 0, updated_at = $1 WHERE workload_today <> 0")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unsupported")))

	affected, err := repo.ResetWorkloads(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, affected)
	assert.Contains(t, err.Error(), "count reset workloads")
}

func TestTeacherRepositoryListAllOrdersByInsertion(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "full_name", "subjects", "contact", "workload_today", "created_at", "updated_at"}).
		AddRow("t1", "Teacher One", "{Math}", "", 0, now, now).
		AddRow("t2", "Teacher Two", "{Science}", "", 2, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, subjects, contact, workload_today, created_at, updated_at FROM teachers ORDER BY created_at, id")).
		WillReturnRows(rows)

	teachers, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "t1", teachers[0].ID)
	assert.Equal(t, pq.StringArray{"Math"}, teachers[0].Subjects)
}
