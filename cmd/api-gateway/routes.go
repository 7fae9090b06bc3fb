package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/region-ops-api/internal/handler"
	"github.com/noah-isme/region-ops-api/internal/middleware"
	"github.com/noah-isme/region-ops-api/internal/models"
	"github.com/noah-isme/region-ops-api/internal/service"
	"github.com/noah-isme/region-ops-api/pkg/config"
	"github.com/noah-isme/region-ops-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/region-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/region-ops-api/pkg/middleware/requestid"
)

type handlers struct {
	auth          *handler.AuthHandler
	users         *handler.UserHandler
	locations     *handler.LocationHandler
	submissions   *handler.SubmissionHandler
	changeRequest *handler.ChangeRequestHandler
	promotions    *handler.PromotionHandler
	notifications *handler.NotificationHandler
	performance   *handler.PerformanceHandler
	exports       *handler.ExportHandler
	metrics       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, tokens middleware.TokenValidator, h handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health"))

	r.GET("/health", h.metrics.Health)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	viewer := middleware.RequireRoles(models.RoleViewer)
	leads := middleware.RequireRoles(models.RoleViewer, models.RoleTeamLead)
	fieldStaff := middleware.RequireRoles(models.RoleDataEntry, models.RoleTeamLead)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", h.auth.Register)
	auth.POST("/login", h.auth.Login)
	auth.POST("/refresh", h.auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.POST("/auth/logout", h.auth.Logout)
	secured.GET("/auth/me", h.auth.Me)

	secured.GET("/system/metrics", viewer, h.metrics.System)

	users := secured.Group("/users", viewer)
	users.GET("", h.users.List)
	users.GET("/:id", h.users.Get)
	users.PUT("/:id", h.users.Update)

	locations := secured.Group("/locations")
	locations.GET("/tree", leads, h.locations.Tree)
	locations.GET("", leads, h.locations.List)
	locations.GET("/:id", leads, h.locations.Get)
	locations.POST("/regions", viewer, h.locations.CreateRegion)
	locations.POST("/districts", viewer, h.locations.CreateDistrict)
	locations.DELETE("/:id", viewer, h.locations.Delete)

	submissions := secured.Group("/submissions")
	submissions.POST("", fieldStaff, h.submissions.Create)
	submissions.PUT("/:id", fieldStaff, h.submissions.Update)
	submissions.GET("", h.submissions.List)

	changeRequests := secured.Group("/change-requests")
	changeRequests.POST("", h.changeRequest.Create)
	changeRequests.GET("", h.changeRequest.List)
	changeRequests.GET("/:id", h.changeRequest.Get)
	changeRequests.POST("/:id/approve", h.changeRequest.Approve)
	changeRequests.POST("/:id/reject", h.changeRequest.Reject)

	promotions := secured.Group("/promotion-requests")
	promotions.POST("", middleware.RequireRoles(models.RoleDataEntry), h.promotions.Create)
	promotions.GET("", h.promotions.List)
	promotions.POST("/:id/review", viewer, h.promotions.Review)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.notifications.List)
	notifications.GET("/unread-count", h.notifications.UnreadCount)
	notifications.POST("/:id/read", h.notifications.MarkRead)
	notifications.POST("/read-all", h.notifications.MarkAllRead)

	performance := secured.Group("/performance/regions", leads)
	performance.GET("", viewer, h.performance.Overview)
	performance.GET("/:id", h.performance.Region)
	performance.GET("/:id/history", h.performance.History)

	if h.exports != nil {
		exports := secured.Group("/exports", leads)
		exports.GET("/regions/:id/submissions", h.exports.RegionSubmissions)
		exports.GET("/monthly-members", h.exports.MonthlyMembers)
	}

	return r
}
