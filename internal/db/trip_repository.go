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

// firestoreTripRepository implements the TripRepository interface using Firestore.
type firestoreTripRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreTripRepository creates a new instance of firestoreTripRepository.
func NewFirestoreTripRepository(client *firestore.Client, logger *zap.Logger) TripRepository {
	if client == nil {
		panic("Firestore client is not initialized for TripRepository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &firestoreTripRepository{client: client, logger: logger}
}

func (r *firestoreTripRepository) doc(tripID string) *firestore.DocumentRef {
	return r.client.Collection(tripsCollection).Doc(tripID)
}

// Create stores a new trip under trip.ID. It fails with ErrAlreadyExists on an ID clash.
func (r *firestoreTripRepository) Create(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		return errors.New("trip ID cannot be empty for Create operation")
	}
	if trip.JoinedUsers == nil {
		trip.JoinedUsers = models.MemberSet{}
	}
	if _, err := r.doc(trip.ID).Create(ctx, trip); err != nil {
		return translate(err, "failed to create trip with ID '%s'", trip.ID)
	}
	return nil
}

// GetByID retrieves a trip document by its ID.
func (r *firestoreTripRepository) GetByID(ctx context.Context, tripID string) (*models.Trip, error) {
	if tripID == "" {
		return nil, errors.New("tripID cannot be empty for GetByID operation")
	}
	snap, err := r.doc(tripID).Get(ctx)
	if err != nil {
		return nil, translate(err, "failed to get trip with ID '%s'", tripID)
	}
	return decodeTrip(snap)
}

// ListByOwner returns the trips created by email, newest first.
func (r *firestoreTripRepository) ListByOwner(ctx context.Context, email string) ([]*models.Trip, error) {
	if email == "" {
		return nil, errors.New("email cannot be empty for ListByOwner operation")
	}
	trips, err := r.collect(ctx, r.client.Collection(tripsCollection).Where("userEmail", "==", email))
	if err != nil {
		return nil, fmt.Errorf("failed to list trips for owner '%s': %w", email, err)
	}
	sortTripsNewestFirst(trips)
	return trips, nil
}

// ListPublic returns every trip with isPublic=true, newest first.
func (r *firestoreTripRepository) ListPublic(ctx context.Context) ([]*models.Trip, error) {
	trips, err := r.collect(ctx, publicTripsQuery(r.client))
	if err != nil {
		return nil, fmt.Errorf("failed to list public trips: %w", err)
	}
	sortTripsNewestFirst(trips)
	return trips, nil
}

// ListByMember merges the trips owned by email with the trips it joined.
func (r *firestoreTripRepository) ListByMember(ctx context.Context, email string) ([]*models.Trip, error) {
	if email == "" {
		return nil, errors.New("email cannot be empty for ListByMember operation")
	}
	owned, err := r.collect(ctx, r.client.Collection(tripsCollection).Where("userEmail", "==", email))
	if err != nil {
		return nil, fmt.Errorf("failed to list owned trips for '%s': %w", email, err)
	}
	joinedQuery := r.client.Collection(tripsCollection).
		WherePath(firestore.FieldPath{"joinedUsers", email, "email"}, "==", email)
	joined, err := r.collect(ctx, joinedQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list joined trips for '%s': %w", email, err)
	}

	seen := make(map[string]bool, len(owned)+len(joined))
	trips := make([]*models.Trip, 0, len(owned)+len(joined))
	for _, t := range append(owned, joined...) {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		trips = append(trips, t)
	}
	sortTripsNewestFirst(trips)
	return trips, nil
}

// ToggleVisibility flips isPublic inside a transaction so the read and the patch see the same document.
func (r *firestoreTripRepository) ToggleVisibility(ctx context.Context, tripID string, owner models.Member) (bool, error) {
	ref := r.doc(tripID)
	var isPublic bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		trip, err := decodeTrip(snap)
		if err != nil {
			return err
		}
		isPublic = !trip.IsPublic
		updates := []firestore.Update{
			{Path: "isPublic", Value: isPublic},
			{Path: "userInfo", Value: owner},
		}
		if _, err := snap.DataAt("joinedUsers"); err != nil {
			updates = append(updates, firestore.Update{Path: "joinedUsers", Value: map[string]interface{}{}})
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return false, translate(err, "failed to toggle visibility of trip '%s'", tripID)
	}
	return isPublic, nil
}

// UpdateNotes replaces the journal notes of a trip.
func (r *firestoreTripRepository) UpdateNotes(ctx context.Context, tripID, notes string) error {
	_, err := r.doc(tripID).Update(ctx, []firestore.Update{{Path: "notes", Value: notes}})
	return translate(err, "failed to update notes of trip '%s'", tripID)
}

// AddMember writes joinedUsers.<email>. FieldPath keeps the dots of the address literal.
func (r *firestoreTripRepository) AddMember(ctx context.Context, tripID string, member models.Membership) error {
	_, err := r.doc(tripID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"joinedUsers", member.Email}, Value: member},
	})
	return translate(err, "failed to add member '%s' to trip '%s'", member.Email, tripID)
}

// RemoveMember deletes joinedUsers.<email>.
func (r *firestoreTripRepository) RemoveMember(ctx context.Context, tripID, email string) error {
	_, err := r.doc(tripID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"joinedUsers", email}, Value: firestore.Delete},
	})
	return translate(err, "failed to remove member '%s' from trip '%s'", email, tripID)
}

// Delete removes a trip document. Messages and notifications that reference it are kept.
func (r *firestoreTripRepository) Delete(ctx context.Context, tripID string) error {
	if tripID == "" {
		return errors.New("tripID cannot be empty for Delete operation")
	}
	_, err := r.doc(tripID).Delete(ctx, firestore.Exists)
	return translate(err, "failed to delete trip '%s'", tripID)
}

// Watch streams the trip document until ctx is done.
func (r *firestoreTripRepository) Watch(ctx context.Context, tripID string, fn func(*models.Trip)) error {
	it := r.doc(tripID).Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			return listenerError(ctx, err, "trip listener for '%s' failed", tripID)
		}
		if !snap.Exists() {
			fn(nil)
			continue
		}
		trip, err := decodeTrip(snap)
		if err != nil {
			r.logger.Warn("Skipping undecodable trip snapshot", zap.String("tripID", tripID), zap.Error(err))
			continue
		}
		fn(trip)
	}
}

// WatchPublic streams the public trip listing until ctx is done.
func (r *firestoreTripRepository) WatchPublic(ctx context.Context, fn func([]*models.Trip)) error {
	it := publicTripsQuery(r.client).Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			return listenerError(ctx, err, "public trips listener failed")
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			return listenerError(ctx, err, "public trips snapshot read failed")
		}
		trips := make([]*models.Trip, 0, len(docs))
		for _, doc := range docs {
			trip, err := decodeTrip(doc)
			if err != nil {
				r.logger.Warn("Skipping undecodable trip", zap.String("tripID", doc.Ref.ID), zap.Error(err))
				continue
			}
			trips = append(trips, trip)
		}
		sortTripsNewestFirst(trips)
		fn(trips)
	}
}

func publicTripsQuery(client *firestore.Client) firestore.Query {
	return client.Collection(tripsCollection).Where("isPublic", "==", true)
}

func (r *firestoreTripRepository) collect(ctx context.Context, q firestore.Query) ([]*models.Trip, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var trips []*models.Trip
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, translate(err, "failed to iterate trips")
		}
		trip, err := decodeTrip(doc)
		if err != nil {
			r.logger.Warn("Skipping undecodable trip", zap.String("tripID", doc.Ref.ID), zap.Error(err))
			continue
		}
		trips = append(trips, trip)
	}
	return trips, nil
}

func decodeTrip(snap *firestore.DocumentSnapshot) (*models.Trip, error) {
	var trip models.Trip
	if err := snap.DataTo(&trip); err != nil {
		return nil, fmt.Errorf("failed to decode trip data for ID '%s': %w", snap.Ref.ID, err)
	}
	trip.ID = snap.Ref.ID
	if trip.JoinedUsers == nil {
		trip.JoinedUsers = models.MemberSet{}
	}
	return &trip, nil
}

func sortTripsNewestFirst(trips []*models.Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].CreatedAt.After(trips[j].CreatedAt)
	})
}

// listenerError turns the terminal error of a snapshot iterator into the Watch result.
func listenerError(ctx context.Context, err error, format string, args ...interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == iterator.Done {
		return fmt.Errorf(format+": stream closed", args...)
	}
	return translate(err, format, args...)
}
