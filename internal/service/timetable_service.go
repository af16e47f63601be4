package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
)

type timetableStore interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlot, int, error)
	ListAll(ctx context.Context) ([]models.TimetableSlot, error)
	FindByID(ctx context.Context, id string) (*models.TimetableSlot, error)
	Create(ctx context.Context, slot *models.TimetableSlot) error
	Delete(ctx context.Context, id string) error
}

// CreateSlotRequest is the payload for adding a timetable slot. The
// teacher reference is free-form; a slot may name staff outside the
// roster or stay vacant.
type CreateSlotRequest struct {
	ClassName string  `json:"class_name" validate:"required,min=1,max=100"`
	Period    int     `json:"period" validate:"required,gt=0"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,min=1"`
	Subject   string  `json:"subject" validate:"required,min=1,max=100"`
}

// TimetableService manages the published timetable.
type TimetableService struct {
	slots     timetableStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(slots timetableStore, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{slots: slots, validator: validate, logger: logger}
}

// List returns paginated slots.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlot, *models.Pagination, error) {
	slots, total, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return slots, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a slot by id.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableSlot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slot")
	}
	return slot, nil
}

// Create adds a slot to the timetable.
func (s *TimetableService) Create(ctx context.Context, req CreateSlotRequest) (*models.TimetableSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}

	slot := &models.TimetableSlot{
		ClassName: strings.TrimSpace(req.ClassName),
		Period:    req.Period,
		Subject:   strings.TrimSpace(req.Subject),
	}
	if req.TeacherID != nil {
		id := strings.TrimSpace(*req.TeacherID)
		if id != "" {
			slot.TeacherID = &id
		}
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable slot")
	}
	return slot, nil
}

// Delete removes a slot.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if err := s.slots.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete timetable slot")
	}
	return nil
}
