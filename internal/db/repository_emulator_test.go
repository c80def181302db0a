package db

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tripplanner/internal/models"
)

// emulatorClient connects to the Firestore emulator; the tests are skipped without one.
func emulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "tripplanner-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestTripRepositoryMembershipEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	repo := NewFirestoreTripRepository(client, nil)

	owner := models.Member{Email: "owner@example.com", Name: "Owner"}
	trip := &models.Trip{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		UserEmail: owner.Email,
		UserSelection: models.UserSelection{
			Location: models.Location{Label: "Cox's Bazar, Bangladesh"},
			NoOfDays: 3, Budget: "moderate", Traveler: "2 People", StartDate: "2024-06-01",
		},
	}
	require.NoError(t, repo.Create(ctx, trip))
	t.Cleanup(func() { _ = repo.Delete(context.Background(), trip.ID) })
	assert.ErrorIs(t, repo.Create(ctx, trip), ErrAlreadyExists)

	isPublic, err := repo.ToggleVisibility(ctx, trip.ID, owner)
	require.NoError(t, err)
	assert.True(t, isPublic)

	member := models.Membership{Email: "b.user@example.com", Name: "B", JoinedAt: time.Now().UTC()}
	require.NoError(t, repo.AddMember(ctx, trip.ID, member))

	got, err := repo.GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.True(t, got.JoinedUsers.Has("b.user@example.com"))
	assert.Equal(t, owner.Email, got.UserInfo.Email)

	joined, err := repo.ListByMember(ctx, member.Email)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, trip.ID, joined[0].ID)

	require.NoError(t, repo.RemoveMember(ctx, trip.ID, member.Email))
	got, err = repo.GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.False(t, got.JoinedUsers.Has(member.Email))

	isPublic, err = repo.ToggleVisibility(ctx, trip.ID, owner)
	require.NoError(t, err)
	assert.False(t, isPublic)
}

func TestNotificationRepositoryEmulator(t *testing.T) {
	client := emulatorClient(t)
	ctx := context.Background()
	repo := NewFirestoreNotificationRepository(client, nil)

	recipient := "n" + strconv.FormatInt(time.Now().UnixNano(), 10) + "@example.com"
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, &models.Notification{
			RecipientEmail: recipient, TripID: "t1", Message: "hello", Type: models.NotificationGeneral,
		})
		require.NoError(t, err)
	}

	unread, err := repo.ListUnread(ctx, recipient)
	require.NoError(t, err)
	require.Len(t, unread, 3)

	ids := make([]string, 0, len(unread))
	for _, n := range unread {
		ids = append(ids, n.ID)
	}
	require.NoError(t, repo.MarkReadBatch(ctx, ids))

	unread, err = repo.ListUnread(ctx, recipient)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := repo.ListByRecipient(ctx, recipient)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
