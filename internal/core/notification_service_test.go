package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tripplanner/internal/models"
)

func TestNotificationCreate(t *testing.T) {
	repo := newFakeNotificationRepo()
	pub := &fakePublisher{}
	svc := NewNotificationService(repo, pub, nil, nil)

	n, err := svc.Create(context.Background(), models.Notification{
		RecipientEmail: " Bob@Example.com ",
		TripID:         "t1",
		Message:        "  hello  ",
		Read:           true,
	})
	require.NoError(t, err)

	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, "bob@example.com", n.RecipientEmail)
	assert.Equal(t, "hello", n.Message)
	assert.Equal(t, models.NotificationGeneral, n.Type)
	assert.False(t, n.Read)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "n1", pub.events[0].NotificationID)
	assert.Equal(t, "bob@example.com", pub.events[0].RecipientEmail)
}

func TestNotificationCreate_Invalid(t *testing.T) {
	svc := NewNotificationService(newFakeNotificationRepo(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.Notification{Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidNotification)

	_, err = svc.Create(ctx, models.Notification{RecipientEmail: "bob@example.com", Message: "  "})
	assert.ErrorIs(t, err, ErrInvalidNotification)

	_, err = svc.Create(ctx, models.Notification{RecipientEmail: "bob@example.com", Message: "hi", Type: "spam"})
	assert.ErrorIs(t, err, ErrInvalidNotification)
}

func TestNotificationCreate_PublishFailureStillStores(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, &fakePublisher{err: errors.New("broker down")}, nil, nil)

	n, err := svc.Create(context.Background(), models.Notification{RecipientEmail: "bob@example.com", Message: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, 1, repo.count())
}

func TestNotificationLists(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil, nil, nil)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		_, err := svc.Create(ctx, models.Notification{RecipientEmail: "bob@example.com", Message: msg})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, models.Notification{RecipientEmail: "carol@example.com", Message: "other"})
	require.NoError(t, err)

	all, err := svc.ListAll(ctx, "BOB@example.com")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Message)
	assert.Equal(t, "first", all[2].Message)

	require.NoError(t, svc.MarkRead(ctx, "bob@example.com", all[1].ID))

	unread, err := svc.ListUnread(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	count, err := svc.UnreadCount(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	empty, err := svc.ListAll(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestNotificationMarkRead(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil, nil, nil)
	ctx := context.Background()

	n, err := svc.Create(ctx, models.Notification{RecipientEmail: "bob@example.com", Message: "hi"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(ctx, "carol@example.com", n.ID), ErrNotificationForbidden)
	assert.ErrorIs(t, svc.MarkRead(ctx, "bob@example.com", "missing"), ErrNotificationNotFound)

	require.NoError(t, svc.MarkRead(ctx, "bob@example.com", n.ID))
	// Marking twice is fine.
	require.NoError(t, svc.MarkRead(ctx, "bob@example.com", n.ID))

	count, err := svc.UnreadCount(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNotificationMarkAllRead(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, models.Notification{RecipientEmail: "bob@example.com", Message: "hi"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, models.Notification{RecipientEmail: "carol@example.com", Message: "hi"})
	require.NoError(t, err)

	marked, err := svc.MarkAllRead(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	marked, err = svc.MarkAllRead(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Zero(t, marked)

	count, err := svc.UnreadCount(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type recordingQueue struct {
	queue string
	body  []byte
}

func (q *recordingQueue) Publish(_ context.Context, queue string, body []byte) error {
	q.queue, q.body = queue, body
	return nil
}

func (q *recordingQueue) Consume(context.Context, string, func([]byte) error) error { return nil }

func (q *recordingQueue) Close() error { return nil }

func TestQueuePublisher(t *testing.T) {
	q := &recordingQueue{}
	pub := NewQueuePublisher(q, "notifications")

	err := pub.PublishNotification(context.Background(), models.NotificationEvent{NotificationID: "n1", RecipientEmail: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "notifications", q.queue)
	assert.Contains(t, string(q.body), `"notificationId":"n1"`)
}
