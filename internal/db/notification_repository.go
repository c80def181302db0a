package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/example/tripplanner/internal/models"
)

// firestoreNotificationRepository implements the NotificationRepository interface using Firestore.
type firestoreNotificationRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreNotificationRepository creates a new instance of firestoreNotificationRepository.
func NewFirestoreNotificationRepository(client *firestore.Client, logger *zap.Logger) NotificationRepository {
	if client == nil {
		panic("Firestore client is not initialized for NotificationRepository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &firestoreNotificationRepository{client: client, logger: logger}
}

// Create adds a notification with an auto-generated ID. Timestamp is assigned by the server.
func (r *firestoreNotificationRepository) Create(ctx context.Context, n *models.Notification) (string, error) {
	ref := r.client.Collection(notificationsCollection).NewDoc()
	if _, err := ref.Create(ctx, n); err != nil {
		return "", fmt.Errorf("failed to create notification for '%s': %w", n.RecipientEmail, err)
	}
	n.ID = ref.ID
	return ref.ID, nil
}

// GetByID retrieves one notification.
func (r *firestoreNotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if id == "" {
		return nil, errors.New("notification ID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(notificationsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, translate(err, "failed to get notification '%s'", id)
	}
	return decodeNotification(snap)
}

func (r *firestoreNotificationRepository) byRecipient(email string) firestore.Query {
	return r.client.Collection(notificationsCollection).Where("recipientEmail", "==", email)
}

// ListByRecipient returns every notification of email, newest first.
// Without the (recipientEmail, timestamp) index the query is retried unordered and sorted here.
func (r *firestoreNotificationRepository) ListByRecipient(ctx context.Context, email string) ([]*models.Notification, error) {
	if email == "" {
		return nil, errors.New("recipient email cannot be empty")
	}
	list, err := r.collect(ctx, r.byRecipient(email).OrderBy("timestamp", firestore.Desc))
	if errors.Is(err, ErrIndexRequired) {
		r.logger.Warn("Notification index missing, sorting client side", zap.String("recipient", email))
		list, err = r.collect(ctx, r.byRecipient(email))
		SortNotificationsNewestFirst(list)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for '%s': %w", email, err)
	}
	return list, nil
}

// ListUnread returns the notifications of email with read=false, newest first.
func (r *firestoreNotificationRepository) ListUnread(ctx context.Context, email string) ([]*models.Notification, error) {
	if email == "" {
		return nil, errors.New("recipient email cannot be empty")
	}
	list, err := r.collect(ctx, r.byRecipient(email).Where("read", "==", false))
	if err != nil {
		return nil, fmt.Errorf("failed to list unread notifications for '%s': %w", email, err)
	}
	SortNotificationsNewestFirst(list)
	return list, nil
}

// MarkRead sets read=true on one notification.
func (r *firestoreNotificationRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.client.Collection(notificationsCollection).Doc(id).
		Update(ctx, []firestore.Update{{Path: "read", Value: true}})
	return translate(err, "failed to mark notification '%s' as read", id)
}

// MarkReadBatch sets read=true on every listed notification using a BulkWriter.
func (r *firestoreNotificationRepository) MarkReadBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(ids))
	for _, id := range ids {
		job, err := bw.Update(r.client.Collection(notificationsCollection).Doc(id),
			[]firestore.Update{{Path: "read", Value: true}})
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue read update for notification '%s': %w", id, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, translate(err, "notification '%s'", ids[i]))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to mark %d of %d notifications as read: %w", len(errs), len(ids), errors.Join(errs...))
	}
	return nil
}

// WatchByRecipient streams the notifications of email until ctx is done.
func (r *firestoreNotificationRepository) WatchByRecipient(ctx context.Context, email string, fn func([]*models.Notification)) error {
	it := r.byRecipient(email).OrderBy("timestamp", firestore.Desc).Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			return listenerError(ctx, err, "notification listener for '%s' failed", email)
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			return listenerError(ctx, err, "notification snapshot read for '%s' failed", email)
		}
		list := make([]*models.Notification, 0, len(docs))
		for _, doc := range docs {
			n, err := decodeNotification(doc)
			if err != nil {
				r.logger.Warn("Skipping undecodable notification", zap.String("id", doc.Ref.ID), zap.Error(err))
				continue
			}
			list = append(list, n)
		}
		fn(list)
	}
}

func (r *firestoreNotificationRepository) collect(ctx context.Context, q firestore.Query) ([]*models.Notification, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var list []*models.Notification
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translate(err, "failed to iterate notifications")
		}
		n, err := decodeNotification(doc)
		if err != nil {
			r.logger.Warn("Skipping undecodable notification", zap.String("id", doc.Ref.ID), zap.Error(err))
			continue
		}
		list = append(list, n)
	}
	return list, nil
}

func decodeNotification(snap *firestore.DocumentSnapshot) (*models.Notification, error) {
	var n models.Notification
	if err := snap.DataTo(&n); err != nil {
		return nil, fmt.Errorf("failed to decode notification '%s': %w", snap.Ref.ID, err)
	}
	n.ID = snap.Ref.ID
	return &n, nil
}

// SortNotificationsNewestFirst orders by timestamp descending. Pending server timestamps sort first.
func SortNotificationsNewestFirst(list []*models.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		ti, tj := list[i].Timestamp, list[j].Timestamp
		if ti.IsZero() != tj.IsZero() {
			return ti.IsZero()
		}
		return ti.After(tj)
	})
}
