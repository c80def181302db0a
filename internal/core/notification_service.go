package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/db"
	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/models"
	"github.com/example/tripplanner/pkg/messagequeue"
)

// Custom errors for the NotificationService
var (
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrNotificationForbidden = errors.New("notification belongs to another recipient")
	ErrInvalidNotification   = errors.New("notification needs a recipient and a message")
)

var notificationTypes = map[string]bool{
	models.NotificationGeneral:      true,
	models.NotificationJoin:         true,
	models.NotificationLeave:        true,
	models.NotificationMessage:      true,
	models.NotificationWeatherAlert: true,
}

// notificationService implements the NotificationService interface.
type notificationService struct {
	repo      db.NotificationRepository
	publisher EventPublisher
	metrics   metrics.Recorder
	logger    *zap.Logger
}

// NewNotificationService creates a new NotificationService instance.
// publisher may be nil when no message queue is configured.
func NewNotificationService(repo db.NotificationRepository, publisher EventPublisher, recorder metrics.Recorder, logger *zap.Logger) NotificationService {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &notificationService{repo: repo, publisher: publisher, metrics: recorder, logger: logger}
}

// Create stores a notification. Type defaults to general and read is always false.
// The queue event is best effort: a publish failure is logged and the notification still counts as created.
func (s *notificationService) Create(ctx context.Context, n models.Notification) (*models.Notification, error) {
	n.RecipientEmail = models.NormalizeEmail(n.RecipientEmail)
	n.Message = strings.TrimSpace(n.Message)
	if n.RecipientEmail == "" || n.Message == "" {
		return nil, ErrInvalidNotification
	}
	if n.Type == "" {
		n.Type = models.NotificationGeneral
	}
	if !notificationTypes[n.Type] {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, n.Type)
	}
	n.Read = false
	n.ID = ""
	n.Timestamp = time.Time{} // assigned by the server

	id, err := s.repo.Create(ctx, &n)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	s.metrics.RecordNotificationCreated(n.Type)

	if s.publisher != nil {
		event := models.NotificationEvent{
			NotificationID: id,
			RecipientEmail: n.RecipientEmail,
			TripID:         n.TripID,
			Type:           n.Type,
			Message:        n.Message,
			Destination:    n.Destination,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.publisher.PublishNotification(ctx, event); err != nil {
			s.logger.Warn("Failed to publish notification event", zap.String("notificationID", id), zap.Error(err))
		}
	}
	return &n, nil
}

func (s *notificationService) ListAll(ctx context.Context, recipient string) ([]*models.Notification, error) {
	recipient = models.NormalizeEmail(recipient)
	if recipient == "" {
		return nil, ErrInvalidNotification
	}
	list, err := s.repo.ListByRecipient(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return list, nil
}

func (s *notificationService) ListUnread(ctx context.Context, recipient string) ([]*models.Notification, error) {
	recipient = models.NormalizeEmail(recipient)
	if recipient == "" {
		return nil, ErrInvalidNotification
	}
	list, err := s.repo.ListUnread(ctx, recipient)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Notification{}
	}
	return list, nil
}

// MarkRead flips one notification after checking it belongs to recipient.
func (s *notificationService) MarkRead(ctx context.Context, recipient, notificationID string) error {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	if n.RecipientEmail != models.NormalizeEmail(recipient) {
		return ErrNotificationForbidden
	}
	if n.Read {
		return nil
	}
	return s.repo.MarkRead(ctx, notificationID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	unread, err := s.ListUnread(ctx, recipient)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(unread))
	for _, n := range unread {
		ids = append(ids, n.ID)
	}
	if err := s.repo.MarkReadBatch(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *notificationService) UnreadCount(ctx context.Context, recipient string) (int, error) {
	list, err := s.ListAll(ctx, recipient)
	if err != nil {
		return 0, err
	}
	return models.CountUnread(list), nil
}

// queuePublisher sends notification events to a message queue.
type queuePublisher struct {
	mq    messagequeue.MessageQueue
	queue string
}

// NewQueuePublisher adapts a message queue to EventPublisher.
func NewQueuePublisher(mq messagequeue.MessageQueue, queue string) EventPublisher {
	return &queuePublisher{mq: mq, queue: queue}
}

func (p *queuePublisher) PublishNotification(ctx context.Context, event models.NotificationEvent) error {
	return messagequeue.PublishJSON(ctx, p.mq, p.queue, event)
}
