package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/region-ops-api/internal/models"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

type stubLocations struct {
	items []models.Location
	err   error
}

func (s *stubLocations) FindByID(_ context.Context, id string) (*models.Location, error) {
	for _, l := range s.items {
		if l.ID == id {
			l := l
			return &l, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubLocations) Children(_ context.Context, parentID string) ([]models.Location, error) {
	var out []models.Location
	for _, l := range s.items {
		if l.ParentID != nil && *l.ParentID == parentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubLocations) List(_ context.Context, filter models.LocationFilter) ([]models.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Location
	for _, l := range s.items {
		if filter.Type != "" && l.Type != filter.Type {
			continue
		}
		if filter.ParentID != "" && (l.ParentID == nil || *l.ParentID != filter.ParentID) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

type stubSubmissionWindow struct {
	subs  []models.Submission
	calls int
	ids   []string
	since time.Time
	until time.Time
}

func (s *stubSubmissionWindow) ListWindow(_ context.Context, ids []string, since, until time.Time) ([]models.Submission, error) {
	s.calls++
	s.ids = ids
	s.since = since
	s.until = until
	allowed := map[string]bool{}
	for _, id := range ids {
		allowed[id] = true
	}
	var out []models.Submission
	for _, sub := range s.subs {
		if allowed[sub.LocationID] && !sub.SubmittedAt.Before(since) && !sub.SubmittedAt.After(until) {
			out = append(out, sub)
		}
	}
	return out, nil
}

type stubTeamLeads map[string]models.User

func (s stubTeamLeads) FindTeamLead(_ context.Context, regionID string) (*models.User, error) {
	if u, ok := s[regionID]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

type stubHistory struct {
	inserted []models.PerformanceMetric
	fail     bool
}

func (s *stubHistory) InsertMetric(_ context.Context, metric *models.PerformanceMetric) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.inserted = append(s.inserted, *metric)
	return nil
}

func (s *stubHistory) History(_ context.Context, regionID string, _ int) ([]models.PerformanceMetric, error) {
	var out []models.PerformanceMetric
	for _, m := range s.inserted {
		if m.RegionID == regionID {
			out = append(out, m)
		}
	}
	return out, nil
}

type performanceFixture struct {
	locations *stubLocations
	subs      *stubSubmissionWindow
	history   *stubHistory
	cache     *memoryCache
	svc       *PerformanceService
	now       time.Time
}

func newPerformanceFixture(t *testing.T) *performanceFixture {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	locations := &stubLocations{items: []models.Location{
		{ID: "r1", Name: "North", Type: models.LocationRegion},
		{ID: "r2", Name: "South", Type: models.LocationRegion},
		{ID: "d1", Name: "Abobo", Type: models.LocationDistrict, ParentID: strPtr("r1")},
		{ID: "d2", Name: "Cocody", Type: models.LocationDistrict, ParentID: strPtr("r1")},
		{ID: "d9", Name: "Bassam", Type: models.LocationDistrict, ParentID: strPtr("r2")},
	}}
	subs := weeklySubmissions(12, 100_000, strPtr("all good"))
	for i := range subs {
		subs[i].SubmittedAt = now.AddDate(0, 0, -7*(i+1))
		if i%2 == 1 {
			subs[i].LocationID = "d2"
		}
	}
	subs = append(subs,
		models.Submission{ID: "old", SubmittedAt: now.AddDate(0, 0, -120), TitheAmount: 5_000_000, LocationID: "d1"},
		models.Submission{ID: "other", SubmittedAt: now.AddDate(0, 0, -3), TitheAmount: 5_000_000, LocationID: "d9"},
		models.Submission{ID: "future", SubmittedAt: now.AddDate(75, 0, 0), TitheAmount: 5_000_000, LocationID: "d1"},
	)
	fx := &performanceFixture{
		locations: locations,
		subs:      &stubSubmissionWindow{subs: subs},
		history:   &stubHistory{},
		cache:     newMemoryCache(),
		now:       now,
	}
	cacheSvc := NewCacheService(fx.cache, nil, time.Minute, nil, true)
	fx.svc = NewPerformanceService(locations, fx.subs, stubTeamLeads{"r1": {ID: "lead", Name: "Kone", Role: models.RoleTeamLead, LocationID: strPtr("r1")}},
		fx.history, DefaultScoringConfig(), NewMetricsService(), nil,
		WithPerformanceCache(cacheSvc, time.Minute),
		WithPerformanceClock(func() time.Time { return now }))
	return fx
}

func TestPerformanceScoreRegion(t *testing.T) {
	fx := newPerformanceFixture(t)
	ctx := context.Background()

	score, err := fx.svc.ScoreRegion(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 70.36, score.Total)
	assert.Equal(t, "Good", score.Label)
	assert.Equal(t, 12, score.SubmissionCount)
	assert.ElementsMatch(t, []string{"r1", "d1", "d2"}, fx.subs.ids)
	assert.Equal(t, fx.now.AddDate(0, 0, -90), fx.subs.since)
	assert.Equal(t, fx.now, fx.subs.until)

	again, err := fx.svc.ScoreRegion(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, score.Total, again.Total)
	assert.Equal(t, 1, fx.subs.calls)
}

func TestPerformanceScoreRegionRejectsDistrict(t *testing.T) {
	fx := newPerformanceFixture(t)

	_, err := fx.svc.ScoreRegion(context.Background(), "d1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	_, err = fx.svc.ScoreRegion(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPerformanceRegionWithoutDistricts(t *testing.T) {
	fx := newPerformanceFixture(t)
	fx.locations.items = append(fx.locations.items, models.Location{ID: "r3", Name: "East", Type: models.LocationRegion})

	score, err := fx.svc.ScoreRegion(context.Background(), "r3")
	require.NoError(t, err)
	assert.False(t, score.HasData)
	assert.Equal(t, 0.0, score.Total)
	assert.Equal(t, "Poor", score.Label)
}

func TestPerformanceOverview(t *testing.T) {
	fx := newPerformanceFixture(t)

	overview, err := fx.svc.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, overview, 2)
	assert.Equal(t, "r1", overview[0].Region.ID)
	require.NotNil(t, overview[0].TeamLead)
	assert.Equal(t, "Kone", overview[0].TeamLead.Name)
	assert.Nil(t, overview[1].TeamLead)
	assert.True(t, overview[1].Score.HasData)
}

func TestPerformanceSnapshotAllBypassesCache(t *testing.T) {
	fx := newPerformanceFixture(t)
	ctx := context.Background()

	_, err := fx.svc.ScoreRegion(ctx, "r1")
	require.NoError(t, err)

	written, err := fx.svc.SnapshotAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, 3, fx.subs.calls)
	require.Len(t, fx.history.inserted, 2)
	assert.Equal(t, 70.36, fx.history.inserted[0].Score)

	history, err := fx.svc.History(ctx, "r1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	fx.history.fail = true
	_, err = fx.svc.SnapshotAll(ctx)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestPerformanceInvalidateLocation(t *testing.T) {
	fx := newPerformanceFixture(t)
	ctx := context.Background()

	_, err := fx.svc.ScoreRegion(ctx, "r1")
	require.NoError(t, err)
	_, err = fx.svc.ScoreRegion(ctx, "r2")
	require.NoError(t, err)

	fx.svc.InvalidateLocation(ctx, "d2")
	_, err = fx.svc.ScoreRegion(ctx, "r1")
	require.NoError(t, err)
	_, err = fx.svc.ScoreRegion(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, 3, fx.subs.calls)
}
