package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/region-ops-api/internal/middleware"
	"github.com/noah-isme/region-ops-api/internal/models"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
	"github.com/noah-isme/region-ops-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentClaims(c)
}

// requireClaims writes 401 and returns nil when the request is anonymous.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

var errRegionForbidden = appErrors.Clone(appErrors.ErrForbidden, "region is outside your scope")

// canViewRegion limits team leads to their own region. Viewers see all.
func canViewRegion(claims *models.JWTClaims, regionID string) bool {
	switch claims.Role {
	case models.RoleViewer:
		return true
	case models.RoleTeamLead:
		return claims.LocationID == regionID
	}
	return false
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
