package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/pkg/cache"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

type performanceLocationReader interface {
	FindByID(ctx context.Context, id string) (*models.Location, error)
	Children(ctx context.Context, parentID string) ([]models.Location, error)
	List(ctx context.Context, filter models.LocationFilter) ([]models.Location, error)
}

type submissionWindowReader interface {
	ListWindow(ctx context.Context, locationIDs []string, since, until time.Time) ([]models.Submission, error)
}

type teamLeadFinder interface {
	FindTeamLead(ctx context.Context, regionID string) (*models.User, error)
}

type performanceHistoryStore interface {
	InsertMetric(ctx context.Context, metric *models.PerformanceMetric) error
	History(ctx context.Context, regionID string, limit int) ([]models.PerformanceMetric, error)
}

// PerformanceService scores regions from their recent submissions.
type PerformanceService struct {
	locations   performanceLocationReader
	submissions submissionWindowReader
	users       teamLeadFinder
	history     performanceHistoryStore
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         ScoringConfig
	cacheTTL    time.Duration
	now         func() time.Time
}

// PerformanceServiceOption configures the service.
type PerformanceServiceOption func(*PerformanceService)

// WithPerformanceCache enables score caching with the given TTL.
func WithPerformanceCache(c *CacheService, ttl time.Duration) PerformanceServiceOption {
	return func(s *PerformanceService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithPerformanceClock overrides the time source.
func WithPerformanceClock(now func() time.Time) PerformanceServiceOption {
	return func(s *PerformanceService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPerformanceService constructs the service.
func NewPerformanceService(locations performanceLocationReader, submissions submissionWindowReader, users teamLeadFinder, history performanceHistoryStore, cfg ScoringConfig, metrics *MetricsService, logger *zap.Logger, opts ...PerformanceServiceOption) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PerformanceService{
		locations:   locations,
		submissions: submissions,
		users:       users,
		history:     history,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func regionScoreKey(regionID string) string {
	return cache.Key("performance", "region", regionID)
}

func overviewKey() string {
	return cache.Key("performance", "overview")
}

// ScoreRegion returns the score of a region over the trailing window.
func (s *PerformanceService) ScoreRegion(ctx context.Context, regionID string) (*models.PerformanceScore, error) {
	region, err := s.loadRegion(ctx, regionID)
	if err != nil {
		return nil, err
	}
	return s.scoreRegion(ctx, region, true)
}

func (s *PerformanceService) loadRegion(ctx context.Context, regionID string) (*models.Location, error) {
	region, err := s.locations.FindByID(ctx, regionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "region not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load region")
	}
	if !region.IsRegion() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "region not found")
	}
	return region, nil
}

func (s *PerformanceService) scoreRegion(ctx context.Context, region *models.Location, useCache bool) (*models.PerformanceScore, error) {
	key := regionScoreKey(region.ID)
	if useCache {
		var cached models.PerformanceScore
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	districts, err := s.locations.Children(ctx, region.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load districts")
	}
	ids := make([]string, 0, len(districts)+1)
	ids = append(ids, region.ID)
	for _, district := range districts {
		ids = append(ids, district.ID)
	}

	now := s.now()
	since := s.cfg.Window(now)
	start := time.Now()
	subs, err := s.submissions.ListWindow(ctx, ids, since, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	s.metrics.ObserveDBQuery("performance_window", time.Since(start))

	score := ScoreSubmissions(region.ID, subs, s.cfg, since, now)
	s.metrics.SetRegionScore(region.ID, score.Total)
	s.cache.Set(ctx, key, score, s.cacheTTL)
	return &score, nil
}

// Overview scores every region and attaches its team lead.
func (s *PerformanceService) Overview(ctx context.Context) ([]models.RegionalPerformance, error) {
	var cached []models.RegionalPerformance
	if s.cache.Get(ctx, overviewKey(), &cached) {
		return cached, nil
	}

	regions, err := s.locations.List(ctx, models.LocationFilter{Type: models.LocationRegion})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list regions")
	}
	out := make([]models.RegionalPerformance, 0, len(regions))
	for i := range regions {
		region := regions[i]
		score, err := s.scoreRegion(ctx, &region, true)
		if err != nil {
			return nil, err
		}
		entry := models.RegionalPerformance{Region: region, Score: *score}
		lead, err := s.users.FindTeamLead(ctx, region.ID)
		switch {
		case err == nil:
			entry.TeamLead = &models.UserInfo{ID: lead.ID, Name: lead.Name, Matriculate: lead.Matriculate, Role: lead.Role, LocationID: lead.LocationID}
		case !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team lead")
		}
		out = append(out, entry)
	}
	s.cache.Set(ctx, overviewKey(), out, s.cacheTTL)
	return out, nil
}

// History lists persisted snapshots of a region, newest first.
func (s *PerformanceService) History(ctx context.Context, regionID string, limit int) ([]models.PerformanceMetric, error) {
	if _, err := s.loadRegion(ctx, regionID); err != nil {
		return nil, err
	}
	metrics, err := s.history.History(ctx, regionID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load performance history")
	}
	return metrics, nil
}

// SnapshotAll recomputes every region, bypassing the cache, and persists one
// metric row per region. It returns the number of snapshots written.
func (s *PerformanceService) SnapshotAll(ctx context.Context) (int, error) {
	regions, err := s.locations.List(ctx, models.LocationFilter{Type: models.LocationRegion})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list regions")
	}
	written := 0
	for i := range regions {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		score, err := s.scoreRegion(ctx, &regions[i], false)
		if err != nil {
			return written, err
		}
		metric := &models.PerformanceMetric{
			RegionID:        score.RegionID,
			Score:           score.Total,
			TitheScore:      score.SubScores.Tithe,
			MembersScore:    score.SubScores.Members,
			SubmissionScore: score.SubScores.Submissions,
			CommentScore:    score.SubScores.Comments,
			SubmissionCount: score.SubmissionCount,
			CalculatedAt:    score.ComputedAt,
		}
		if err := s.history.InsertMetric(ctx, metric); err != nil {
			return written, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist performance snapshot")
		}
		written++
	}
	s.cache.Invalidate(ctx, overviewKey())
	s.logger.Info("performance snapshot completed", zap.Int("regions", written))
	return written, nil
}

// InvalidateLocation drops cached scores affected by a write at locationID,
// which may be a district or a region.
func (s *PerformanceService) InvalidateLocation(ctx context.Context, locationID string) {
	if !s.cache.Enabled() {
		return
	}
	regionID := locationID
	location, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		s.logger.Warn("resolve location for cache invalidation", zap.String("location_id", locationID), zap.Error(err))
		s.cache.Invalidate(ctx, cache.Pattern("performance"))
		return
	}
	if location.ParentID != nil {
		regionID = *location.ParentID
	}
	s.cache.Invalidate(ctx, regionScoreKey(regionID))
	s.cache.Invalidate(ctx, overviewKey())
}
