package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/region-ops-api/api/swagger"
	"github.com/noah-isme/region-ops-api/internal/handler"
	"github.com/noah-isme/region-ops-api/internal/repository"
	"github.com/noah-isme/region-ops-api/internal/service"
	"github.com/noah-isme/region-ops-api/pkg/cache"
	"github.com/noah-isme/region-ops-api/pkg/config"
	"github.com/noah-isme/region-ops-api/pkg/database"
	"github.com/noah-isme/region-ops-api/pkg/jobs"
	"github.com/noah-isme/region-ops-api/pkg/logger"
	"github.com/noah-isme/region-ops-api/pkg/scheduler"
)

// @title Region Ops API
// @version 1.0.0
// @description Regional field operations: locations, weekly submissions, relocation workflow and performance scoring
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	application := buildApp(cfg, db, redisClient, logr)

	if application.queue != nil {
		application.queue.Start(ctx)
		defer application.queue.Stop()
	}

	cronScheduler := scheduler.New(logr, 5*time.Minute)
	if cfg.Performance.SnapshotEnabled {
		err := cronScheduler.Register("performance_snapshot", cfg.Performance.SnapshotSchedule, func(ctx context.Context) error {
			_, err := application.performance.SnapshotAll(ctx)
			return err
		})
		if err != nil {
			logr.Sugar().Fatalw("failed to register snapshot job", "error", err)
		}
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           application.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

type app struct {
	router      *gin.Engine
	queue       *jobs.Queue
	performance *service.PerformanceService
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *app {
	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	promotionRepo := repository.NewPromotionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	performanceRepo := repository.NewPerformanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Performance.CacheTTL, logr, cfg.Performance.CacheEnabled && redisClient != nil)

	var queue *jobs.Queue
	notificationOpts := []service.NotificationServiceOption{service.WithNotificationMetrics(metrics)}
	if cfg.Notifications.Async {
		queue = jobs.NewQueue("notifications", jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
		notificationOpts = append(notificationOpts, service.WithNotificationQueue(queue))
	}
	notificationSvc := service.NewNotificationService(notificationRepo, logr, notificationOpts...)

	performanceSvc := service.NewPerformanceService(locationRepo, submissionRepo, userRepo, performanceRepo,
		service.ScoringConfigFrom(cfg.Performance), metrics, logr,
		service.WithPerformanceCache(cacheSvc, cfg.Performance.CacheTTL))

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, performanceSvc, logr)
	locationSvc := service.NewLocationService(locationRepo, userRepo, performanceSvc, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, userRepo, locationRepo, performanceSvc, validate, logr)
	changeRequestSvc := service.NewChangeRequestService(changeRequestRepo, locationRepo, notificationSvc, validate, logr,
		service.WithMinReasonLength(cfg.Workflow.MinReasonLength),
		service.WithChangeRequestMetrics(metrics))
	promotionSvc := service.NewPromotionService(promotionRepo, locationRepo, userRepo, notificationSvc, performanceSvc, validate, logr)

	checks := map[string]handler.HealthCheck{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	h := handlers{
		auth:          handler.NewAuthHandler(authSvc),
		users:         handler.NewUserHandler(userSvc),
		locations:     handler.NewLocationHandler(locationSvc),
		submissions:   handler.NewSubmissionHandler(submissionSvc),
		changeRequest: handler.NewChangeRequestHandler(changeRequestSvc),
		promotions:    handler.NewPromotionHandler(promotionSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		performance:   handler.NewPerformanceHandler(performanceSvc),
		metrics:       handler.NewMetricsHandler(metrics, checks),
	}
	if cfg.Exports.Enabled {
		h.exports = handler.NewExportHandler(service.NewExportService(submissionRepo, locationRepo, logr))
	}

	return &app{
		router:      newRouter(cfg, logr, metrics, authSvc, h),
		queue:       queue,
		performance: performanceSvc,
	}
}
