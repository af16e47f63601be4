package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
)

type summaryLogReader interface {
	CountByOutcome(ctx context.Context, date string) (assigned int, unfilled int, err error)
}

type summaryTeacherReader interface {
	Workloads(ctx context.Context) ([]models.TeacherLoad, error)
}

// DashboardCacheConfig controls summary caching.
type DashboardCacheConfig struct {
	Enabled    bool
	KeyPrefix  string
	SummaryTTL time.Duration
}

// DashboardService aggregates relief activity for the office overview.
type DashboardService struct {
	logs     summaryLogReader
	teachers summaryTeacherReader
	cache    rosterCache
	metrics  *MetricsService
	logger   *zap.Logger
	cacheCfg DashboardCacheConfig
}

// NewDashboardService wires dashboard dependencies. Cache and metrics may
// be nil.
func NewDashboardService(
	logs summaryLogReader,
	teachers summaryTeacherReader,
	cache rosterCache,
	metrics *MetricsService,
	logger *zap.Logger,
	cacheCfg DashboardCacheConfig,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheCfg.KeyPrefix == "" {
		cacheCfg.KeyPrefix = "relief"
	}
	if cacheCfg.SummaryTTL <= 0 {
		cacheCfg.SummaryTTL = time.Minute
	}
	return &DashboardService{
		logs:     logs,
		teachers: teachers,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheCfg: cacheCfg,
	}
}

// ReliefSummary returns per-date assignment totals plus the current
// workload distribution. Summaries are cached briefly; the workload board
// changes with every approval, so the TTL stays short.
func (s *DashboardService) ReliefSummary(ctx context.Context, date string) (*models.ReliefSummary, error) {
	if date == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}

	key := fmt.Sprintf("%s:summary:%s", s.cacheCfg.KeyPrefix, date)
	if s.cacheEnabled() {
		var cached models.ReliefSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if errors.Is(err, appErrors.ErrCacheMiss) {
			s.metrics.RecordCacheOperation(false)
		} else {
			s.logger.Warn("summary cache read failed", zap.Error(err))
		}
	}

	assigned, unfilled, err := s.logs.CountByOutcome(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count relief outcomes")
	}
	loads, err := s.teachers.Workloads(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workloads")
	}
	if loads == nil {
		loads = []models.TeacherLoad{}
	}

	summary := &models.ReliefSummary{
		Date:        date,
		Assigned:    assigned,
		Unfilled:    unfilled,
		Workloads:   loads,
		GeneratedAt: time.Now().UTC(),
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, key, summary, s.cacheCfg.SummaryTTL); err != nil {
			s.logger.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// SystemMetrics exposes the aggregated instrumentation snapshot.
func (s *DashboardService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

func (s *DashboardService) cacheEnabled() bool {
	return s.cache != nil && s.cacheCfg.Enabled
}
