package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/region-ops-api/internal/models"
	appErrors "github.com/noah-isme/region-ops-api/pkg/errors"
	"github.com/noah-isme/region-ops-api/pkg/jobs"
)

type memoryNotificationRepo struct {
	mu        sync.Mutex
	items     []models.Notification
	createErr error
	created   chan struct{}
}

func (m *memoryNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = "n" + string(rune('0'+len(m.items)))
	m.items = append(m.items, *n)
	if m.created != nil {
		m.created <- struct{}{}
	}
	return nil
}

func (m *memoryNotificationRepo) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.items {
		if n.UserID == filter.UserID && (!filter.UnreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *memoryNotificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	items, _, _ := m.List(context.Background(), models.NotificationFilter{UserID: userID, UnreadOnly: true})
	return len(items), nil
}

func (m *memoryNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items[i].Read = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.items {
		if m.items[i].UserID == userID && !m.items[i].Read {
			m.items[i].Read = true
			n++
		}
	}
	return n, nil
}

func TestNotificationServiceNotifyInline(t *testing.T) {
	repo := &memoryNotificationRepo{}
	svc := NewNotificationService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, "u1", "<b>Your request</b> was approved"))
	require.Len(t, repo.items, 1)
	assert.Equal(t, "Your request was approved", repo.items[0].Message)

	err := svc.Notify(ctx, "u1", "<script>x</script>")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	repo.createErr = errors.New("connection reset")
	err = svc.Notify(ctx, "u1", "hello")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestNotificationServiceNotifyThroughQueue(t *testing.T) {
	repo := &memoryNotificationRepo{created: make(chan struct{}, 1)}
	queue := jobs.NewQueue("notifications", jobs.QueueConfig{Workers: 1})
	svc := NewNotificationService(repo, nil, WithNotificationQueue(queue), WithNotificationMetrics(NewMetricsService()))

	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, svc.Notify(context.Background(), "u2", "new change request"))
	select {
	case <-repo.created:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never delivered")
	}
	count, err := svc.UnreadCount(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNotificationServiceStoppedQueueWritesInline(t *testing.T) {
	repo := &memoryNotificationRepo{}
	queue := jobs.NewQueue("notifications", jobs.QueueConfig{})
	svc := NewNotificationService(repo, nil, WithNotificationQueue(queue))

	require.NoError(t, svc.Notify(context.Background(), "u3", "hello"))
	assert.Len(t, repo.items, 1)
}

func TestNotificationServiceInbox(t *testing.T) {
	repo := &memoryNotificationRepo{}
	svc := NewNotificationService(repo, nil)
	ctx := context.Background()
	require.NoError(t, svc.Notify(ctx, "u1", "first"))
	require.NoError(t, svc.Notify(ctx, "u1", "second"))
	require.NoError(t, svc.Notify(ctx, "u2", "other"))

	items, page, err := svc.List(ctx, models.NotificationFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, page.TotalCount)

	err = svc.MarkRead(ctx, items[0].ID, "u2")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, svc.MarkRead(ctx, items[0].ID, "u1"))

	changed, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
