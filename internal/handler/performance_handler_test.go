package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/region-ops-api/internal/models"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

type fakePerformanceSrv struct {
	scored       []string
	historyLimit int
	err          error
}

func (f *fakePerformanceSrv) Overview(context.Context) ([]models.RegionalPerformance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.RegionalPerformance{{Region: models.Location{ID: "r1"}, Score: models.PerformanceScore{RegionID: "r1", Total: 70.36, Label: "Good"}}}, nil
}

func (f *fakePerformanceSrv) ScoreRegion(_ context.Context, regionID string) (*models.PerformanceScore, error) {
	f.scored = append(f.scored, regionID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.PerformanceScore{RegionID: regionID, Total: 55.5, Label: "Average", Class: "average", HasData: true}, nil
}

func (f *fakePerformanceSrv) History(_ context.Context, regionID string, limit int) ([]models.PerformanceMetric, error) {
	f.historyLimit = limit
	return []models.PerformanceMetric{{RegionID: regionID, Score: 55.5}}, f.err
}

func regionContext(method, target, regionID string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	c, rec := newTestContext(method, target, "", claims)
	c.Params = gin.Params{{Key: "id", Value: regionID}}
	return c, rec
}

func TestPerformanceHandlerRegionForViewer(t *testing.T) {
	srv := &fakePerformanceSrv{}
	handler := NewPerformanceHandler(srv)

	c, rec := regionContext(http.MethodGet, "/performance/regions/r1", "r1", &models.JWTClaims{UserID: "v", Role: models.RoleViewer})
	handler.Region(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, 55.5, envelope.Data["total"])
	assert.Equal(t, "Average", envelope.Data["label"])
	assert.Equal(t, []string{"r1"}, srv.scored)
}

func TestPerformanceHandlerTeamLeadScope(t *testing.T) {
	srv := &fakePerformanceSrv{}
	handler := NewPerformanceHandler(srv)
	lead := &models.JWTClaims{UserID: "l", Role: models.RoleTeamLead, LocationID: "r1"}

	c, rec := regionContext(http.MethodGet, "/performance/regions/r1", "r1", lead)
	handler.Region(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = regionContext(http.MethodGet, "/performance/regions/r2", "r2", lead)
	handler.Region(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{"r1"}, srv.scored)

	c, rec = regionContext(http.MethodGet, "/performance/regions/r1", "r1", clerkClaims)
	handler.Region(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPerformanceHandlerHistoryLimit(t *testing.T) {
	srv := &fakePerformanceSrv{}
	handler := NewPerformanceHandler(srv)
	viewer := &models.JWTClaims{UserID: "v", Role: models.RoleViewer}

	c, rec := regionContext(http.MethodGet, "/performance/regions/r1/history?limit=5", "r1", viewer)
	handler.History(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, srv.historyLimit)

	c, _ = regionContext(http.MethodGet, "/performance/regions/r1/history", "r1", viewer)
	handler.History(c)
	assert.Equal(t, 30, srv.historyLimit)
}

func TestPerformanceHandlerOverviewError(t *testing.T) {
	handler := NewPerformanceHandler(&fakePerformanceSrv{err: appErrors.Clone(appErrors.ErrInternal, "boom")})

	c, rec := newTestContext(http.MethodGet, "/performance/overview", "", nil)
	handler.Overview(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decode(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrInternal.Code, envelope.Error.Code)
}
