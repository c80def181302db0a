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

// firestoreMessageRepository implements the MessageRepository interface using Firestore.
type firestoreMessageRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreMessageRepository creates a new instance of firestoreMessageRepository.
func NewFirestoreMessageRepository(client *firestore.Client, logger *zap.Logger) MessageRepository {
	if client == nil {
		panic("Firestore client is not initialized for MessageRepository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &firestoreMessageRepository{client: client, logger: logger}
}

func (r *firestoreMessageRepository) byTrip(tripID string) firestore.Query {
	return r.client.Collection(messagesCollection).Where("tripId", "==", tripID)
}

// Create adds a chat message with an auto-generated ID and a server timestamp.
func (r *firestoreMessageRepository) Create(ctx context.Context, msg *models.ChatMessage) (string, error) {
	ref := r.client.Collection(messagesCollection).NewDoc()
	if _, err := ref.Create(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to create message for trip '%s': %w", msg.TripID, err)
	}
	msg.ID = ref.ID
	return ref.ID, nil
}

// ListByTrip returns the messages of a trip, oldest first, ordered by the server.
func (r *firestoreMessageRepository) ListByTrip(ctx context.Context, tripID string) ([]*models.ChatMessage, error) {
	if tripID == "" {
		return nil, errors.New("tripID cannot be empty for ListByTrip operation")
	}
	return r.collect(ctx, r.byTrip(tripID).OrderBy("timestamp", firestore.Asc))
}

// ListByTripUnordered returns the messages of a trip without server ordering.
func (r *firestoreMessageRepository) ListByTripUnordered(ctx context.Context, tripID string) ([]*models.ChatMessage, error) {
	if tripID == "" {
		return nil, errors.New("tripID cannot be empty for ListByTripUnordered operation")
	}
	return r.collect(ctx, r.byTrip(tripID))
}

// WatchByTrip streams the messages of a trip. When the ordered listener is rejected for a
// missing index it reopens an unordered one and sorts every snapshot here.
func (r *firestoreMessageRepository) WatchByTrip(ctx context.Context, tripID string, fn func([]*models.ChatMessage)) error {
	err := r.watch(ctx, r.byTrip(tripID).OrderBy("timestamp", firestore.Asc), tripID, fn)
	if errors.Is(err, ErrIndexRequired) {
		r.logger.Warn("Message index missing, sorting client side", zap.String("tripID", tripID))
		return r.watch(ctx, r.byTrip(tripID), tripID, func(list []*models.ChatMessage) {
			SortMessagesOldestFirst(list)
			fn(list)
		})
	}
	return err
}

func (r *firestoreMessageRepository) watch(ctx context.Context, q firestore.Query, tripID string, fn func([]*models.ChatMessage)) error {
	it := q.Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			return listenerError(ctx, err, "message listener for trip '%s' failed", tripID)
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			return listenerError(ctx, err, "message snapshot read for trip '%s' failed", tripID)
		}
		list := make([]*models.ChatMessage, 0, len(docs))
		for _, doc := range docs {
			msg, err := decodeMessage(doc)
			if err != nil {
				r.logger.Warn("Skipping undecodable message", zap.String("id", doc.Ref.ID), zap.Error(err))
				continue
			}
			list = append(list, msg)
		}
		fn(list)
	}
}

func (r *firestoreMessageRepository) collect(ctx context.Context, q firestore.Query) ([]*models.ChatMessage, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var list []*models.ChatMessage
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translate(err, "failed to iterate messages")
		}
		msg, err := decodeMessage(doc)
		if err != nil {
			r.logger.Warn("Skipping undecodable message", zap.String("id", doc.Ref.ID), zap.Error(err))
			continue
		}
		list = append(list, msg)
	}
	return list, nil
}

func decodeMessage(snap *firestore.DocumentSnapshot) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := snap.DataTo(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode message '%s': %w", snap.Ref.ID, err)
	}
	msg.ID = snap.Ref.ID
	return &msg, nil
}

// SortMessagesOldestFirst orders by timestamp ascending. Pending server timestamps sort last.
func SortMessagesOldestFirst(list []*models.ChatMessage) {
	sort.SliceStable(list, func(i, j int) bool {
		ti, tj := list[i].Timestamp, list[j].Timestamp
		if ti.IsZero() != tj.IsZero() {
			return tj.IsZero()
		}
		return ti.Before(tj)
	})
}
