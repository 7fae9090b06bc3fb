package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/region-ops-api/internal/models"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
	"github.com/noah-isme/region-ops-api/pkg/jobs"
	"github.com/noah-isme/region-ops-api/pkg/sanitize"
)

// NotificationJobType is the queue job type that persists one notification.
const NotificationJobType = "notification.deliver"

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type jobQueue interface {
	Handle(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

// NotificationService writes and reads in-app notifications.
type NotificationService struct {
	repo    notificationRepository
	queue   jobQueue
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NotificationServiceOption configures the service.
type NotificationServiceOption func(*NotificationService)

// WithNotificationQueue delivers notifications through the worker queue.
func WithNotificationQueue(q jobQueue) NotificationServiceOption {
	return func(s *NotificationService) {
		s.queue = q
	}
}

// WithNotificationMetrics counts failed deliveries.
func WithNotificationMetrics(m *MetricsService) NotificationServiceOption {
	return func(s *NotificationService) {
		s.metrics = m
	}
}

// NewNotificationService constructs the service. With a queue configured the
// delivery handler is registered on it.
func NewNotificationService(repo notificationRepository, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.queue != nil {
		svc.queue.Handle(NotificationJobType, svc.deliverJob)
	}
	return svc
}

// Notify stores a message for userID. When a queue is configured the write
// happens on a worker and Notify only reports enqueue failures.
func (s *NotificationService) Notify(ctx context.Context, userID, message string) error {
	text := sanitize.Text(message)
	if userID == "" || text == "" {
		return appErrors.Clone(appErrors.ErrValidation, "notification needs a recipient and a message")
	}
	notification := models.Notification{UserID: userID, Message: text, CreatedAt: s.now()}

	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{Type: NotificationJobType, Payload: notification})
		if err == nil {
			return nil
		}
		if !errors.Is(err, jobs.ErrNotStarted) {
			s.metrics.RecordNotificationFailure()
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue notification")
		}
		s.logger.Debug("notification queue not running, writing inline", zap.String("user_id", userID))
	}
	return s.deliver(ctx, &notification)
}

func (s *NotificationService) deliverJob(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	return s.deliver(ctx, &notification)
}

func (s *NotificationService) deliver(ctx context.Context, notification *models.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		s.metrics.RecordNotificationFailure()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store notification")
	}
	return nil
}

// List returns a page of the user's inbox.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one notification owned by userID.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

// MarkAllRead flags the whole inbox and returns how many rows changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return n, nil
}
