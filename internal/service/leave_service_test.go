package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
)

type mockLeaveStore struct {
	items   map[string]*models.LeaveRequest
	decided []string
}

func (m *mockLeaveStore) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequest, int, error) {
	var out []models.LeaveRequest
	for _, l := range m.items {
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *mockLeaveStore) FindByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	if leave, ok := m.items[id]; ok {
		cp := *leave
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLeaveStore) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.LeaveRequest, error) {
	return m.FindByID(ctx, id)
}

func (m *mockLeaveStore) Create(ctx context.Context, leave *models.LeaveRequest) error {
	if m.items == nil {
		m.items = make(map[string]*models.LeaveRequest)
	}
	if leave.ID == "" {
		leave.ID = "generated"
	}
	cp := *leave
	m.items[leave.ID] = &cp
	return nil
}

func (m *mockLeaveStore) Decide(ctx context.Context, exec sqlx.ExtContext, id string, status models.LeaveStatus, decidedBy string, decidedAt time.Time) error {
	leave, ok := m.items[id]
	if !ok || leave.Status != models.LeaveStatusPending {
		return sql.ErrNoRows
	}
	leave.Status = status
	leave.DecidedBy = &decidedBy
	leave.DecidedAt = &decidedAt
	m.decided = append(m.decided, id)
	return nil
}

type mockReliefTeachers struct {
	teachers   []models.Teacher
	increments []string
}

func (m *mockReliefTeachers) ListAll(ctx context.Context) ([]models.Teacher, error) {
	out := make([]models.Teacher, len(m.teachers))
	copy(out, m.teachers)
	return out, nil
}

func (m *mockReliefTeachers) IncrementWorkload(ctx context.Context, exec sqlx.ExtContext, id string) error {
	m.increments = append(m.increments, id)
	return nil
}

type mockSlotReader struct {
	slots []models.TimetableSlot
}

func (m *mockSlotReader) ListAll(ctx context.Context) ([]models.TimetableSlot, error) {
	return m.slots, nil
}

type mockLogWriter struct {
	batches [][]models.ReliefLogEntry
}

func (m *mockLogWriter) CreateBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.ReliefLogEntry) error {
	m.batches = append(m.batches, entries)
	return nil
}

func newTxProvider(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func newLeaveServiceForTest(t *testing.T, leaves *mockLeaveStore, teachers *mockReliefTeachers, slots *mockSlotReader, logs *mockLogWriter) (*LeaveService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newTxProvider(t)
	svc := NewLeaveService(leaves, teachers, slots, logs, NewAssignmentEngine(), db, nil, nil, validator.New(), zap.NewNop(), LeaveServiceConfig{})
	return svc, mock
}

func TestLeaveServiceSubmit(t *testing.T) {
	leaves := &mockLeaveStore{}
	svc, _ := newLeaveServiceForTest(t, leaves, &mockReliefTeachers{}, &mockSlotReader{}, &mockLogWriter{})

	leave, err := svc.Submit(context.Background(), SubmitLeaveRequest{
		TeacherID: "t1",
		Date:      "2026-09-01",
		Periods:   []int{3, 4},
		Reason:    "medical",
	}, "admin")

	require.NoError(t, err)
	assert.Equal(t, models.LeaveStatusPending, leave.Status)
	assert.Equal(t, pq.Int64Array{3, 4}, leave.Periods)
	assert.Len(t, leaves.items, 1)
}

func TestLeaveServiceSubmitRejectsBadPeriods(t *testing.T) {
	svc, _ := newLeaveServiceForTest(t, &mockLeaveStore{}, &mockReliefTeachers{}, &mockSlotReader{}, &mockLogWriter{})

	cases := []SubmitLeaveRequest{
		{TeacherID: "t1", Date: "2026-09-01"},
		{TeacherID: "t1", Date: "2026-09-01", Periods: []int{}},
		{TeacherID: "t1", Date: "2026-09-01", Periods: []int{0}},
		{TeacherID: "t1", Date: "2026-09-01", Periods: []int{-2}},
		{TeacherID: "", Date: "2026-09-01", Periods: []int{1}},
	}
	for _, req := range cases {
		_, err := svc.Submit(context.Background(), req, "admin")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestLeaveServiceApproveAssignsInPeriodOrder(t *testing.T) {
	leaves := &mockLeaveStore{items: map[string]*models.LeaveRequest{
		"l1": {ID: "l1", TeacherID: "a", Date: "2026-09-01", Periods: pq.Int64Array{3, 4}, Status: models.LeaveStatusPending},
	}}
	teachers := &mockReliefTeachers{teachers: []models.Teacher{
		{ID: "a", FullName: "A", Subjects: pq.StringArray{"Math"}},
		{ID: "b", FullName: "B", Subjects: pq.StringArray{"Math"}},
		{ID: "c", FullName: "C", Subjects: pq.StringArray{"Math"}},
	}}
	slots := &mockSlotReader{slots: []models.TimetableSlot{
		{ID: "s1", ClassName: "10A", Period: 3, TeacherID: ptrStr("a"), Subject: "Math"},
		{ID: "s2", ClassName: "10B", Period: 4, TeacherID: ptrStr("a"), Subject: "Math"},
	}}
	logs := &mockLogWriter{}
	svc, mock := newLeaveServiceForTest(t, leaves, teachers, slots, logs)
	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.Approve(context.Background(), "l1", "admin")

	require.NoError(t, err)
	assert.Equal(t, 2, report.Filled)
	assert.Equal(t, 0, report.Unfilled)
	require.Len(t, report.Assignments, 2)
	assert.Equal(t, 3, report.Assignments[0].Period)
	assert.Equal(t, "b", report.Assignments[0].AssignedTeacherID)
	assert.Equal(t, 4, report.Assignments[1].Period)
	assert.Equal(t, "c", report.Assignments[1].AssignedTeacherID, "earlier pick's workload counts against later periods")

	assert.Equal(t, []string{"b", "c"}, teachers.increments)
	require.Len(t, logs.batches, 1)
	assert.Len(t, logs.batches[0], 2)
	assert.Equal(t, models.LeaveStatusApproved, leaves.items["l1"].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveServiceApproveNeverAssignsRequester(t *testing.T) {
	leaves := &mockLeaveStore{items: map[string]*models.LeaveRequest{
		"l1": {ID: "l1", TeacherID: "a", Date: "2026-09-01", Periods: pq.Int64Array{2}, Status: models.LeaveStatusPending},
	}}
	// The requester holds no slot in period 2 and carries the lowest
	// workload, so they would win the pick if left in the roster.
	teachers := &mockReliefTeachers{teachers: []models.Teacher{
		{ID: "a", FullName: "A", Subjects: pq.StringArray{"Math"}, WorkloadToday: 0},
		{ID: "b", FullName: "B", Subjects: pq.StringArray{"Math"}, WorkloadToday: 5},
	}}
	logs := &mockLogWriter{}
	svc, mock := newLeaveServiceForTest(t, leaves, teachers, &mockSlotReader{}, logs)
	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.Approve(context.Background(), "l1", "admin")

	require.NoError(t, err)
	require.Len(t, report.Assignments, 1)
	assert.Equal(t, "b", report.Assignments[0].AssignedTeacherID)
	assert.Equal(t, []string{"b"}, teachers.increments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveServiceApproveUsesPlaceholderSlot(t *testing.T) {
	leaves := &mockLeaveStore{items: map[string]*models.LeaveRequest{
		"l1": {ID: "l1", TeacherID: "ghost", Date: "2026-09-01", Periods: pq.Int64Array{2}, Status: models.LeaveStatusPending},
	}}
	teachers := &mockReliefTeachers{teachers: []models.Teacher{
		{ID: "b", FullName: "B", Subjects: pq.StringArray{"Math"}},
	}}
	logs := &mockLogWriter{}
	svc, mock := newLeaveServiceForTest(t, leaves, teachers, &mockSlotReader{}, logs)
	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.Approve(context.Background(), "l1", "admin")

	require.NoError(t, err)
	require.Len(t, report.Assignments, 1)
	assert.Equal(t, "Unknown", report.Assignments[0].ClassName)
	assert.Equal(t, "General", report.Assignments[0].Subject)
	assert.Equal(t, models.ReliefOutcomeAssigned, report.Assignments[0].Outcome)
}

func TestLeaveServiceApproveRecordsUnfilledPeriods(t *testing.T) {
	leaves := &mockLeaveStore{items: map[string]*models.LeaveRequest{
		"l1": {ID: "l1", TeacherID: "a", Date: "2026-09-01", Periods: pq.Int64Array{1}, Status: models.LeaveStatusPending},
	}}
	logs := &mockLogWriter{}
	svc, mock := newLeaveServiceForTest(t, leaves, &mockReliefTeachers{}, &mockSlotReader{}, logs)
	mock.ExpectBegin()
	mock.ExpectCommit()

	report, err := svc.Approve(context.Background(), "l1", "admin")

	require.NoError(t, err)
	assert.Equal(t, 0, report.Filled)
	assert.Equal(t, 1, report.Unfilled)
	require.Len(t, report.Assignments, 1)
	assert.Equal(t, models.ReliefOutcomeUnfilled, report.Assignments[0].Outcome)
	assert.Equal(t, models.LeaveStatusApproved, leaves.items["l1"].Status, "shortage does not block approval")
	require.Len(t, logs.batches, 1)
	assert.Equal(t, models.ReliefOutcomeUnfilled, logs.batches[0][0].Outcome)
}

func TestLeaveServiceApproveAlreadyDecided(t *testing.T) {
	leaves := &mockLeaveStore{items: map[string]*models.LeaveRequest{
		"l1": {ID: "l1", TeacherID: "a", Date: "2026-09-01", Periods: pq.Int64Array{1}, Status: models.LeaveStatusApproved},
	}}
	svc, mock := newLeaveServiceForTest(t, leaves, &mockReliefTeachers{}, &mockSlotReader{}, &mockLogWriter{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Approve(context.Background(), "l1", "admin")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceApproveNotFound(t *testing.T) {
	svc, mock := newLeaveServiceForTest(t, &mockLeaveStore{}, &mockReliefTeachers{}, &mockSlotReader{}, &mockLogWriter{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Approve(context.Background(), "missing", "admin")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLeaveServiceReject(t *testing.T) {
	leaves := &mockLeaveStore{items: map[string]*models.LeaveRequest{
		"l1": {ID: "l1", TeacherID: "a", Date: "2026-09-01", Periods: pq.Int64Array{1}, Status: models.LeaveStatusPending},
	}}
	teachers := &mockReliefTeachers{teachers: []models.Teacher{{ID: "b"}}}
	svc, mock := newLeaveServiceForTest(t, leaves, teachers, &mockSlotReader{}, &mockLogWriter{})
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.Reject(context.Background(), "l1", "admin"))

	assert.Equal(t, models.LeaveStatusRejected, leaves.items["l1"].Status)
	assert.Empty(t, teachers.increments, "rejection never assigns relief")
}

func TestLeaveServiceRejectAlreadyDecided(t *testing.T) {
	leaves := &mockLeaveStore{items: map[string]*models.LeaveRequest{
		"l1": {ID: "l1", TeacherID: "a", Date: "2026-09-01", Periods: pq.Int64Array{1}, Status: models.LeaveStatusRejected},
	}}
	svc, mock := newLeaveServiceForTest(t, leaves, &mockReliefTeachers{}, &mockSlotReader{}, &mockLogWriter{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.Reject(context.Background(), "l1", "admin")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
