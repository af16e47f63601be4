package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
)

type teacherStore interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	ListAll(ctx context.Context) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	ResetWorkloads(ctx context.Context) (int, error)
	Workloads(ctx context.Context) ([]models.TeacherLoad, error)
}

type slotClearer interface {
	ClearTeacher(ctx context.Context, exec sqlx.ExtContext, teacherID string) (int, error)
}

type teacherTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type rosterCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateTeacherRequest is the payload for registering a teacher.
type CreateTeacherRequest struct {
	FullName string   `json:"full_name" validate:"required,min=2,max=150"`
	Subjects []string `json:"subjects" validate:"omitempty,dive,min=1"`
	Contact  string   `json:"contact" validate:"omitempty,max=150"`
}

// UpdateTeacherRequest is the payload for editing a teacher.
type UpdateTeacherRequest struct {
	FullName *string   `json:"full_name" validate:"omitempty,min=2,max=150"`
	Subjects *[]string `json:"subjects" validate:"omitempty,dive,min=1"`
	Contact  *string   `json:"contact" validate:"omitempty,max=150"`
}

// TeacherCacheConfig controls the roster cache.
type TeacherCacheConfig struct {
	Enabled   bool
	KeyPrefix string
	RosterTTL time.Duration
}

// TeacherService manages the teacher roster and workload counters.
type TeacherService struct {
	teachers teacherStore
	slots    slotClearer
	tx       teacherTxProvider
	cache    rosterCache
	audit    leaveAuditLogger

	validator *validator.Validate
	logger    *zap.Logger
	cacheCfg  TeacherCacheConfig
}

// NewTeacherService wires roster dependencies. The cache may be nil when
// caching is disabled.
func NewTeacherService(
	teachers teacherStore,
	slots slotClearer,
	tx teacherTxProvider,
	cache rosterCache,
	audit leaveAuditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
	cacheCfg TeacherCacheConfig,
) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheCfg.KeyPrefix == "" {
		cacheCfg.KeyPrefix = "relief"
	}
	if cacheCfg.RosterTTL <= 0 {
		cacheCfg.RosterTTL = 5 * time.Minute
	}
	return &TeacherService{
		teachers:  teachers,
		slots:     slots,
		tx:        tx,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cacheCfg:  cacheCfg,
	}
}

// List returns paginated teachers.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.teachers.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return teachers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListAll returns the full roster, from cache when warm.
func (s *TeacherService) ListAll(ctx context.Context) ([]models.Teacher, error) {
	key := s.cacheKey("roster:all")
	if s.cacheEnabled() {
		var cached []models.Teacher
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("roster cache read failed", zap.Error(err))
		}
	}

	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, key, teachers, s.cacheCfg.RosterTTL); err != nil {
			s.logger.Warn("roster cache write failed", zap.Error(err))
		}
	}
	return teachers, nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a teacher with a zero workload counter.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	teacher := &models.Teacher{
		FullName: strings.TrimSpace(req.FullName),
		Subjects: pq.StringArray(req.Subjects),
		Contact:  strings.TrimSpace(req.Contact),
	}
	if teacher.Subjects == nil {
		teacher.Subjects = pq.StringArray{}
	}
	if err := s.teachers.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	s.invalidateRoster(ctx)
	return teacher, nil
}

// Update edits teacher fields. Workload is managed by the relief flow and
// cannot be set here.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		teacher.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Subjects != nil {
		teacher.Subjects = pq.StringArray(*req.Subjects)
		if teacher.Subjects == nil {
			teacher.Subjects = pq.StringArray{}
		}
	}
	if req.Contact != nil {
		teacher.Contact = strings.TrimSpace(*req.Contact)
	}

	if err := s.teachers.Update(ctx, teacher); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}

	s.invalidateRoster(ctx)
	return teacher, nil
}

// Delete removes a teacher and clears every timetable slot that still
// references them, in one transaction. Slots survive as vacant.
func (s *TeacherService) Delete(ctx context.Context, id, actorID string) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to begin delete transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	cleared, err := s.slots.ClearTeacher(ctx, tx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to clear timetable references")
	}

	if err := s.teachers.Delete(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete teacher")
	}

	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to commit delete")
	}

	s.logger.Info("teacher deleted",
		zap.String("teacher_id", id),
		zap.Int("slots_cleared", cleared),
	)
	s.invalidateRoster(ctx)
	s.emitAudit(ctx, actorID, models.AuditActionTeacherDelete, id, map[string]interface{}{"slots_cleared": cleared})
	return nil
}

// ResetWorkloads zeroes every workload counter, typically at the start of
// a term or day, and returns how many teachers were touched.
func (s *TeacherService) ResetWorkloads(ctx context.Context, actorID string) (int, error) {
	affected, err := s.teachers.ResetWorkloads(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to reset workloads")
	}
	s.invalidateRoster(ctx)
	s.emitAudit(ctx, actorID, models.AuditActionWorkloadReset, "", map[string]interface{}{"teachers_reset": affected})
	return affected, nil
}

// Workloads returns the current workload distribution.
func (s *TeacherService) Workloads(ctx context.Context) ([]models.TeacherLoad, error) {
	loads, err := s.teachers.Workloads(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workloads")
	}
	return loads, nil
}

func (s *TeacherService) cacheEnabled() bool {
	return s.cache != nil && s.cacheCfg.Enabled
}

func (s *TeacherService) cacheKey(suffix string) string {
	return fmt.Sprintf("%s:%s", s.cacheCfg.KeyPrefix, suffix)
}

func (s *TeacherService) invalidateRoster(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, s.cacheKey("roster:*")); err != nil {
		s.logger.Warn("roster cache invalidation failed", zap.Error(err))
	}
}

func (s *TeacherService) emitAudit(ctx context.Context, actorID, action, resourceID string, detail map[string]interface{}) {
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
	var resID *string
	if resourceID != "" {
		resID = &resourceID
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "teacher",
		ResourceID: resID,
		Detail:     payload,
		IPAddress:  "system",
		UserAgent:  "teacher-service",
	}); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
