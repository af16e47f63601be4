package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
	"github.com/noah-isme/relief-api/pkg/export"
	"github.com/noah-isme/relief-api/pkg/jobs"
	"github.com/noah-isme/relief-api/pkg/storage"
)

// Report formats accepted by the async relief report.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

// Report job states.
const (
	ReportStatusPending   = "PENDING"
	ReportStatusCompleted = "COMPLETED"
	ReportStatusFailed    = "FAILED"
)

type exportLeaveReader interface {
	ListAll(ctx context.Context) ([]models.LeaveRequest, error)
}

type exportReliefLogReader interface {
	List(ctx context.Context, filter models.ReliefLogFilter) ([]models.ReliefLogEntry, error)
}

type exportTeacherReader interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
}

type exportSlotReader interface {
	ListAll(ctx context.Context) ([]models.TimetableSlot, error)
}

// SnapshotResult describes a finished snapshot export.
type SnapshotResult struct {
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	Teachers  int    `json:"teachers"`
	Timetable int    `json:"timetable"`
	Leaves    int    `json:"leaves"`
	SizeBytes int    `json:"size_bytes"`
}

// ReportJob tracks an async relief report through the queue.
type ReportJob struct {
	ID          string     `json:"id"`
	Date        string     `json:"date"`
	Format      string     `json:"format"`
	Status      string     `json:"status"`
	Filename    string     `json:"filename,omitempty"`
	Error       string     `json:"error,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type reportPayload struct {
	JobID  string
	Date   string
	Format string
}

// ExportRetentionConfig controls the periodic sweep of old export files.
// A zero ResultTTL disables the sweep entirely.
type ExportRetentionConfig struct {
	ResultTTL     time.Duration
	SweepInterval time.Duration
}

// ExportService produces JSON snapshots synchronously and relief reports
// through the background queue.
type ExportService struct {
	teachers  exportTeacherReader
	slots     exportSlotReader
	leaves    exportLeaveReader
	reliefLog exportReliefLogReader
	storage   *storage.LocalStorage
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	audit     leaveAuditLogger
	logger    *zap.Logger
	retention ExportRetentionConfig

	queue *jobs.Queue

	mu      sync.RWMutex
	reports map[string]*ReportJob
}

// NewExportService wires export dependencies. Call StartWorkers before
// enqueueing reports.
func NewExportService(
	teachers exportTeacherReader,
	slots exportSlotReader,
	leaves exportLeaveReader,
	reliefLog exportReliefLogReader,
	store *storage.LocalStorage,
	audit leaveAuditLogger,
	logger *zap.Logger,
	queueCfg jobs.QueueConfig,
	retention ExportRetentionConfig,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention.SweepInterval <= 0 {
		retention.SweepInterval = time.Hour
	}
	s := &ExportService{
		teachers:  teachers,
		slots:     slots,
		leaves:    leaves,
		reliefLog: reliefLog,
		storage:   store,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		audit:     audit,
		logger:    logger,
		retention: retention,
		reports:   make(map[string]*ReportJob),
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.queue = jobs.NewQueue("relief-reports", s.handleReportJob, queueCfg)
	return s
}

// StartWorkers spins up the report worker pool and, when a result TTL is
// configured, the retention sweep that removes expired export files.
func (s *ExportService) StartWorkers(ctx context.Context) {
	s.queue.Start(ctx)
	if s.retention.ResultTTL > 0 {
		go s.sweepLoop(ctx)
	}
}

func (s *ExportService) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.retention.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.CleanupExpired(s.retention.ResultTTL)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}

// StopWorkers drains the report worker pool.
func (s *ExportService) StopWorkers() {
	s.queue.Stop()
}

// Snapshot serialises the full dataset to an indented JSON file named by
// the current timestamp in milliseconds. The write is atomic: readers of
// the export directory never observe a partial file.
func (s *ExportService) Snapshot(ctx context.Context, actorID string) (*SnapshotResult, error) {
	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers for export")
	}
	slots, err := s.slots.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable for export")
	}
	leaves, err := s.leaves.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave requests for export")
	}

	if teachers == nil {
		teachers = []models.Teacher{}
	}
	if slots == nil {
		slots = []models.TimetableSlot{}
	}
	if leaves == nil {
		leaves = []models.LeaveRequest{}
	}

	snapshot := struct {
		Teachers  []models.Teacher       `json:"teachers"`
		Timetable []models.TimetableSlot `json:"timetable"`
		Leaves    []models.LeaveRequest  `json:"leaves"`
	}{Teachers: teachers, Timetable: slots, Leaves: leaves}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialise snapshot")
	}

	filename := fmt.Sprintf("export_%d.json", time.Now().UnixMilli())
	path, err := s.storage.Save(filename, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to write snapshot")
	}

	s.logger.Info("snapshot exported",
		zap.String("filename", filename),
		zap.Int("teachers", len(teachers)),
		zap.Int("timetable", len(slots)),
		zap.Int("leaves", len(leaves)),
	)
	s.emitAudit(ctx, actorID, filename)

	return &SnapshotResult{
		Filename:  filename,
		Path:      path,
		Teachers:  len(teachers),
		Timetable: len(slots),
		Leaves:    len(leaves),
		SizeBytes: len(data),
	}, nil
}

// EnqueueReliefReport schedules a relief report for the given date and
// returns the job handle immediately.
func (s *ExportService) EnqueueReliefReport(date, format string) (*ReportJob, error) {
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if date == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}

	job := &ReportJob{
		ID:          uuid.NewString(),
		Date:        date,
		Format:      format,
		Status:      ReportStatusPending,
		RequestedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.reports[job.ID] = job
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    "relief-report",
		Payload: reportPayload{JobID: job.ID, Date: date, Format: format},
	})
	if err != nil {
		s.mu.Lock()
		delete(s.reports, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report")
	}
	return job, nil
}

// ReportStatus returns the current state of a report job.
func (s *ExportService) ReportStatus(jobID string) (*ReportJob, error) {
	s.mu.RLock()
	job, ok := s.reports[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	copied := *job
	return &copied, nil
}

// OpenReport resolves a completed report to its file on disk.
func (s *ExportService) OpenReport(jobID string) (string, error) {
	job, err := s.ReportStatus(jobID)
	if err != nil {
		return "", err
	}
	if job.Status != ReportStatusCompleted {
		return "", appErrors.Clone(appErrors.ErrConflict, "report is not ready")
	}
	return s.storage.Path(job.Filename), nil
}

// CleanupExpired removes export files older than the TTL.
func (s *ExportService) CleanupExpired(ttl time.Duration) ([]string, error) {
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to clean export directory")
	}
	return removed, nil
}

func (s *ExportService) handleReportJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(reportPayload)
	if !ok {
		s.logger.Error("unexpected report payload", zap.String("job_id", job.ID))
		return nil
	}

	entries, err := s.reliefLog.List(ctx, models.ReliefLogFilter{Date: payload.Date})
	if err != nil {
		s.failReport(payload.JobID, err)
		return fmt.Errorf("load relief log: %w", err)
	}

	dataset := reliefDataset(entries)

	var data []byte
	var filename string
	switch payload.Format {
	case ReportFormatPDF:
		data, err = s.pdf.Render(dataset, fmt.Sprintf("Relief Assignments %s", payload.Date))
		filename = fmt.Sprintf("relief_%s_%d.pdf", payload.Date, time.Now().UnixMilli())
	default:
		data, err = s.csv.Render(dataset)
		filename = fmt.Sprintf("relief_%s_%d.csv", payload.Date, time.Now().UnixMilli())
	}
	if err != nil {
		s.failReport(payload.JobID, err)
		return fmt.Errorf("render report: %w", err)
	}

	if _, err := s.storage.Save(filename, data); err != nil {
		s.failReport(payload.JobID, err)
		return fmt.Errorf("save report: %w", err)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if report, ok := s.reports[payload.JobID]; ok {
		report.Status = ReportStatusCompleted
		report.Filename = filename
		report.CompletedAt = &now
	}
	s.mu.Unlock()

	s.logger.Info("relief report rendered",
		zap.String("job_id", payload.JobID),
		zap.String("filename", filename),
		zap.Int("rows", len(entries)),
	)
	return nil
}

func (s *ExportService) failReport(jobID string, err error) {
	now := time.Now().UTC()
	s.mu.Lock()
	if report, ok := s.reports[jobID]; ok {
		report.Status = ReportStatusFailed
		report.Error = err.Error()
		report.CompletedAt = &now
	}
	s.mu.Unlock()
}

func reliefDataset(entries []models.ReliefLogEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		assignedID := ""
		assignedName := ""
		if e.AssignedTeacherID != nil {
			assignedID = *e.AssignedTeacherID
		}
		if e.AssignedTeacherName != nil {
			assignedName = *e.AssignedTeacherName
		}
		rows = append(rows, map[string]string{
			"Date":     e.Date,
			"Period":   strconv.Itoa(e.Period),
			"Class":    e.ClassName,
			"Subject":  e.Subject,
			"Outcome":  string(e.Outcome),
			"Relief":   assignedName,
			"ReliefID": assignedID,
			"Detail":   e.Detail,
		})
	}
	return export.Dataset{
		Headers: []string{"Date", "Period", "Class", "Subject", "Outcome", "Relief", "ReliefID", "Detail"},
		Rows:    rows,
	}
}

func (s *ExportService) emitAudit(ctx context.Context, actorID, filename string) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	detail, _ := json.Marshal(map[string]string{"filename": filename})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    userID,
		Action:    models.AuditActionExport,
		Resource:  "export",
		Detail:    detail,
		IPAddress: "system",
		UserAgent: "export-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
