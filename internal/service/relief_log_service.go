package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
)

type reliefLogReader interface {
	List(ctx context.Context, filter models.ReliefLogFilter) ([]models.ReliefLogEntry, error)
}

// ReliefLogService exposes the assignment audit trail.
type ReliefLogService struct {
	logs   reliefLogReader
	logger *zap.Logger
}

// NewReliefLogService wires the relief log reader.
func NewReliefLogService(logs reliefLogReader, logger *zap.Logger) *ReliefLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReliefLogService{logs: logs, logger: logger}
}

// List returns relief log entries matching the filter.
func (s *ReliefLogService) List(ctx context.Context, filter models.ReliefLogFilter) ([]models.ReliefLogEntry, error) {
	entries, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list relief log")
	}
	if entries == nil {
		entries = []models.ReliefLogEntry{}
	}
	return entries, nil
}
