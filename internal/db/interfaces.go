package db

import (
	"context"

	"github.com/example/tripplanner/internal/models"
)

// TripRepository defines the storage operations on the AITrips collection.
type TripRepository interface {
	Create(ctx context.Context, trip *models.Trip) error
	GetByID(ctx context.Context, tripID string) (*models.Trip, error)
	ListByOwner(ctx context.Context, email string) ([]*models.Trip, error)
	ListPublic(ctx context.Context) ([]*models.Trip, error)
	// ListByMember returns trips the user joined or owns.
	ListByMember(ctx context.Context, email string) ([]*models.Trip, error)
	// ToggleVisibility flips isPublic, stamps the owner info and makes sure joinedUsers exists.
	// It returns the stored value after the flip.
	ToggleVisibility(ctx context.Context, tripID string, owner models.Member) (bool, error)
	UpdateNotes(ctx context.Context, tripID, notes string) error
	AddMember(ctx context.Context, tripID string, member models.Membership) error
	RemoveMember(ctx context.Context, tripID, email string) error
	Delete(ctx context.Context, tripID string) error

	// Watch calls fn with the trip on every change, and with nil once it is deleted.
	// It blocks until ctx is cancelled or the listener fails.
	Watch(ctx context.Context, tripID string, fn func(*models.Trip)) error
	// WatchPublic calls fn with the full list of public trips on every change.
	WatchPublic(ctx context.Context, fn func([]*models.Trip)) error
}

// NotificationRepository defines the storage operations on the notifications collection.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (string, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	// ListByRecipient returns all notifications of a recipient, newest first.
	ListByRecipient(ctx context.Context, email string) ([]*models.Notification, error)
	ListUnread(ctx context.Context, email string) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	// MarkReadBatch flips read on every listed notification in one batched write.
	MarkReadBatch(ctx context.Context, ids []string) error

	// WatchByRecipient calls fn with the full newest-first list on every change.
	// It blocks until ctx is cancelled or the listener fails.
	WatchByRecipient(ctx context.Context, email string, fn func([]*models.Notification)) error
}

// MessageRepository defines the storage operations on the tripMessages collection.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) (string, error)
	// ListByTrip returns the messages of a trip ordered by timestamp.
	// It returns ErrIndexRequired when the composite index is missing.
	ListByTrip(ctx context.Context, tripID string) ([]*models.ChatMessage, error)
	// ListByTripUnordered returns the same messages in storage order.
	ListByTripUnordered(ctx context.Context, tripID string) ([]*models.ChatMessage, error)
	// WatchByTrip calls fn with the full list on every change, ordered when possible.
	WatchByTrip(ctx context.Context, tripID string, fn func([]*models.ChatMessage)) error
}
