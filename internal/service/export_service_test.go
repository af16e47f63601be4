package service

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
	"github.com/noah-isme/relief-api/pkg/jobs"
	"github.com/noah-isme/relief-api/pkg/storage"
)

type exportTeacherStub struct{}

func (exportTeacherStub) ListAll(ctx context.Context) ([]models.Teacher, error) {
	return []models.Teacher{
		{ID: "t1", FullName: "Teacher One", Subjects: pq.StringArray{"Math"}},
	}, nil
}

type exportSlotStub struct{}

func (exportSlotStub) ListAll(ctx context.Context) ([]models.TimetableSlot, error) {
	return []models.TimetableSlot{
		{ID: "s1", ClassName: "10A", Period: 1, Subject: "Math"},
	}, nil
}

type exportLeaveStub struct{}

func (exportLeaveStub) ListAll(ctx context.Context) ([]models.LeaveRequest, error) {
	return []models.LeaveRequest{
		{ID: "l1", TeacherID: "t1", Date: "2026-09-01", Periods: pq.Int64Array{1}, Status: models.LeaveStatusApproved},
	}, nil
}

type exportReliefLogStub struct{}

func (exportReliefLogStub) List(ctx context.Context, filter models.ReliefLogFilter) ([]models.ReliefLogEntry, error) {
	id := "t2"
	name := "Teacher Two"
	return []models.ReliefLogEntry{
		{ID: "r1", LeaveID: "l1", Date: filter.Date, ClassName: "10A", Period: 1, Subject: "Math", Outcome: models.ReliefOutcomeAssigned, AssignedTeacherID: &id, AssignedTeacherName: &name},
		{ID: "r2", LeaveID: "l1", Date: filter.Date, ClassName: "10B", Period: 2, Subject: "Math", Outcome: models.ReliefOutcomeUnfilled, Detail: "no eligible teacher"},
	}, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewExportService(exportTeacherStub{}, exportSlotStub{}, exportLeaveStub{}, exportReliefLogStub{}, store, nil, zap.NewNop(), jobs.QueueConfig{}, ExportRetentionConfig{})
	return svc, store
}

func TestExportServiceSnapshot(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	result, err := svc.Snapshot(context.Background(), "admin")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^export_\d+\.json$`), result.Filename)
	assert.Equal(t, 1, result.Teachers)
	assert.Equal(t, 1, result.Timetable)
	assert.Equal(t, 1, result.Leaves)

	data, err := os.ReadFile(store.Path(result.Filename))
	require.NoError(t, err)

	var snapshot map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Contains(t, snapshot, "teachers")
	assert.Contains(t, snapshot, "timetable")
	assert.Contains(t, snapshot, "leaves")
	assert.True(t, strings.HasPrefix(string(data), "{\n  \""), "snapshot uses two-space indentation")
}

func TestExportServiceRenderReliefReportCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	job := &ReportJob{ID: "job-1", Date: "2026-09-01", Format: ReportFormatCSV, Status: ReportStatusPending}
	svc.reports[job.ID] = job

	err := svc.handleReportJob(context.Background(), jobs.Job{
		ID:      job.ID,
		Type:    "relief-report",
		Payload: reportPayload{JobID: job.ID, Date: job.Date, Format: job.Format},
	})
	require.NoError(t, err)

	status, err := svc.ReportStatus(job.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportStatusCompleted, status.Status)
	require.NotEmpty(t, status.Filename)

	data, err := os.ReadFile(store.Path(status.Filename))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Outcome")
	assert.Contains(t, content, "ASSIGNED")
	assert.Contains(t, content, "UNFILLED")
}

func TestExportServiceRenderReliefReportPDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	job := &ReportJob{ID: "job-2", Date: "2026-09-01", Format: ReportFormatPDF, Status: ReportStatusPending}
	svc.reports[job.ID] = job

	err := svc.handleReportJob(context.Background(), jobs.Job{
		ID:      job.ID,
		Type:    "relief-report",
		Payload: reportPayload{JobID: job.ID, Date: job.Date, Format: job.Format},
	})
	require.NoError(t, err)

	status, err := svc.ReportStatus(job.ID)
	require.NoError(t, err)
	assert.Equal(t, ReportStatusCompleted, status.Status)

	info, err := os.Stat(store.Path(status.Filename))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceEnqueueValidatesInput(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.EnqueueReliefReport("", ReportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.EnqueueReliefReport("2026-09-01", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceReportStatusNotFound(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.ReportStatus("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceCleanupExpired(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	_, err := store.Save("stale.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("fresh.csv", []byte("new"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("stale.csv"), stale, stale))

	removed, err := svc.CleanupExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale.csv"}, removed)

	_, err = os.Stat(store.Path("stale.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(store.Path("fresh.csv"))
	assert.NoError(t, err)
}

func TestExportServiceRetentionSweepRemovesExpired(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewExportService(exportTeacherStub{}, exportSlotStub{}, exportLeaveStub{}, exportReliefLogStub{}, store, nil, zap.NewNop(), jobs.QueueConfig{}, ExportRetentionConfig{
		ResultTTL:     time.Hour,
		SweepInterval: 10 * time.Millisecond,
	})

	_, err = store.Save("stale.csv", []byte("old"))
	require.NoError(t, err)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("stale.csv"), stale, stale))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartWorkers(ctx)
	defer svc.StopWorkers()

	require.Eventually(t, func() bool {
		_, statErr := os.Stat(store.Path("stale.csv"))
		return os.IsNotExist(statErr)
	}, time.Second, 10*time.Millisecond)
}
