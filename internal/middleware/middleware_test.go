package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/service"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, CurrentClaims(c).UserID)
	})
	router.GET("/protected", handlers...)
	return router
}

func serve(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	validator := stubValidator{"good": {UserID: "u1", Role: models.RoleDataEntry}}
	router := newRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Basic good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "Bearer bad").Code)

	rec := serve(router, "bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestRequireRoles(t *testing.T) {
	validator := stubValidator{
		"viewer": {UserID: "v1", Role: models.RoleViewer},
		"clerk":  {UserID: "c1", Role: models.RoleDataEntry},
	}
	router := newRouter(JWT(validator), RequireRoles(models.RoleViewer, models.RoleTeamLead))

	assert.Equal(t, http.StatusOK, serve(router, "Bearer viewer").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, "Bearer clerk").Code)

	bare := newRouter(RequireRoles(models.RoleViewer))
	assert.Equal(t, http.StatusUnauthorized, serve(bare, "").Code)
}

func TestMetricsMiddlewareLabelsUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics, "/health"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/ping", "/wp-admin", "/.env"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, uint64(3), metrics.Snapshot().RequestsTotal)
}
