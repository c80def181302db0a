package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tripplanner/internal/llm"
	"github.com/example/tripplanner/internal/models"
)

type tripFixture struct {
	svc       *tripService
	trips     *fakeTripRepo
	notifRepo *fakeNotificationRepo
	gen       *fakeItineraryGenerator
	costs     *fakeCostEstimator
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTripFixture(trips ...*models.Trip) *tripFixture {
	f := &tripFixture{
		trips:     newFakeTripRepo(trips...),
		notifRepo: newFakeNotificationRepo(),
		gen:       &fakeItineraryGenerator{},
		costs:     &fakeCostEstimator{},
	}
	notifications := NewNotificationService(f.notifRepo, nil, nil, nil)
	f.svc = NewTripService(f.trips, notifications, f.gen, f.costs, nil, nil).(*tripService)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func validCreateRequest() models.CreateTripRequest {
	return models.CreateTripRequest{
		Location:  models.Location{Label: "Cox's Bazar", DisplayName: "Cox's Bazar, Chattogram Division, Bangladesh", Lat: 21.4, Lon: 92},
		StartDate: "2025-07-01",
		NoOfDays:  3,
		Budget:    "Moderate",
		Traveler:  "2 People",
	}
}

func TestCreateTrip(t *testing.T) {
	f := newTripFixture()

	trip, err := f.svc.CreateTrip(context.Background(), alice, validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, "1748779200000", trip.ID)
	assert.Equal(t, "moderate", trip.UserSelection.Budget)
	assert.Equal(t, "alice@example.com", trip.UserEmail)
	assert.Equal(t, "Alice", trip.UserInfo.Name)
	assert.False(t, trip.IsPublic)
	assert.Empty(t, trip.JoinedUsers)
	assert.Len(t, trip.TripData.Itinerary, 3)

	require.Len(t, f.gen.calls, 1)
	assert.Equal(t, llm.ItineraryRequest{
		Location: "Cox's Bazar, Chattogram Division, Bangladesh",
		Days:     3,
		Traveler: "2 People",
		Budget:   "moderate",
	}, f.gen.calls[0])

	stored := f.trips.stored(trip.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "2025-07-01", stored.UserSelection.StartDate)
}

func TestCreateTrip_MediumBudgetForTwo(t *testing.T) {
	f := newTripFixture()
	req := validCreateRequest()
	req.NoOfDays = 3
	req.Budget = "Medium"
	req.Traveler = "2"

	trip, err := f.svc.CreateTrip(context.Background(), alice, req)
	require.NoError(t, err)

	stored := f.trips.stored(trip.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "Cox's Bazar", stored.UserSelection.Location.Label)
	assert.Equal(t, 3, stored.UserSelection.NoOfDays)
	assert.Equal(t, "medium", stored.UserSelection.Budget)
	assert.Equal(t, "2", stored.UserSelection.Traveler)
	assert.Len(t, stored.TripData.Itinerary, 3)
	require.Len(t, f.gen.calls, 1)
	assert.Equal(t, "medium", f.gen.calls[0].Budget)
}

func TestCreateTrip_IDClashMovesToNextMillisecond(t *testing.T) {
	f := newTripFixture()
	f.trips.taken["1748779200000"] = true

	trip, err := f.svc.CreateTrip(context.Background(), alice, validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "1748779200001", trip.ID)
}

func TestCreateTrip_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.CreateTripRequest)
	}{
		{"missing location", func(r *models.CreateTripRequest) { r.Location = models.Location{} }},
		{"zero days", func(r *models.CreateTripRequest) { r.NoOfDays = 0 }},
		{"too many days", func(r *models.CreateTripRequest) { r.NoOfDays = 31 }},
		{"unknown budget", func(r *models.CreateTripRequest) { r.Budget = "free" }},
		{"missing traveler", func(r *models.CreateTripRequest) { r.Traveler = " " }},
		{"bad date", func(r *models.CreateTripRequest) { r.StartDate = "01/07/2025" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTripFixture()
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := f.svc.CreateTrip(context.Background(), alice, req)
			assert.ErrorIs(t, err, ErrInvalidTripRequest)
			assert.Empty(t, f.gen.calls)
		})
	}
}

func TestCreateTrip_DisplayNameOnlyLocation(t *testing.T) {
	f := newTripFixture()
	req := validCreateRequest()
	req.Location.Label = ""

	trip, err := f.svc.CreateTrip(context.Background(), alice, req)
	require.NoError(t, err)
	assert.Equal(t, req.Location.DisplayName, trip.UserSelection.Location.Label)
}

func TestCreateTrip_GenerationFailureStoresNothing(t *testing.T) {
	f := newTripFixture()
	f.gen.err = llm.ErrItineraryInvalid

	_, err := f.svc.CreateTrip(context.Background(), alice, validCreateRequest())
	assert.ErrorIs(t, err, ErrItineraryGeneration)
	assert.Nil(t, f.trips.stored("1748779200000"))
}

func TestToggleVisibility_TwiceRestoresState(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", false))

	first, err := f.svc.ToggleVisibility(context.Background(), alice, "t1")
	require.NoError(t, err)
	assert.True(t, first.IsPublic)
	stamp := *f.trips.stored("t1").UserInfo

	second, err := f.svc.ToggleVisibility(context.Background(), alice, "t1")
	require.NoError(t, err)
	assert.False(t, second.IsPublic)
	assert.Equal(t, stamp, *f.trips.stored("t1").UserInfo)
	assert.Equal(t, alice.Member(), stamp)
}

func TestToggleVisibility_OwnerOnly(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", true))

	_, err := f.svc.ToggleVisibility(context.Background(), bob, "t1")
	assert.ErrorIs(t, err, ErrNotTripOwner)

	_, err = f.svc.ToggleVisibility(context.Background(), alice, "missing")
	assert.ErrorIs(t, err, ErrTripNotFound)
}

func TestGetTrip_Visibility(t *testing.T) {
	f := newTripFixture(aliceTrip("private", false), aliceTrip("public", true))

	_, err := f.svc.GetTrip(context.Background(), nil, "private")
	assert.ErrorIs(t, err, ErrTripForbidden)
	_, err = f.svc.GetTrip(context.Background(), &bob, "private")
	assert.ErrorIs(t, err, ErrTripForbidden)

	trip, err := f.svc.GetTrip(context.Background(), &alice, "private")
	require.NoError(t, err)
	assert.Equal(t, "private", trip.ID)

	_, err = f.svc.GetTrip(context.Background(), nil, "public")
	assert.NoError(t, err)
}

func TestJoinTrip_NotifiesOwnerAndOtherMembers(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", true))
	ctx := context.Background()

	_, err := f.svc.JoinTrip(ctx, carol, "t1")
	require.NoError(t, err)
	_, err = f.svc.JoinTrip(ctx, bob, "t1")
	require.NoError(t, err)

	ownerInbox := f.notifRepo.forRecipient("alice@example.com")
	require.Len(t, ownerInbox, 2)
	assert.Equal(t, "Carol has joined your trip to Cox's Bazar", ownerInbox[0].Message)
	assert.Equal(t, "Bob has joined your trip to Cox's Bazar", ownerInbox[1].Message)
	assert.Equal(t, models.NotificationJoin, ownerInbox[1].Type)
	assert.Equal(t, "Cox's Bazar", ownerInbox[1].Destination)
	assert.Equal(t, "t1", ownerInbox[1].TripID)

	carolInbox := f.notifRepo.forRecipient("carol@example.com")
	require.Len(t, carolInbox, 1)
	assert.Equal(t, "Bob has joined the trip to Cox's Bazar", carolInbox[0].Message)

	assert.Empty(t, f.notifRepo.forRecipient("bob@example.com"))

	stored := f.trips.stored("t1")
	assert.True(t, stored.JoinedUsers.Has("bob@example.com"))
	assert.True(t, stored.JoinedUsers.Has("carol@example.com"))
}

func TestJoinTrip_RepeatIsNoOp(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", true))
	ctx := context.Background()

	_, err := f.svc.JoinTrip(ctx, bob, "t1")
	require.NoError(t, err)
	before := f.notifRepo.count()

	trip, err := f.svc.JoinTrip(ctx, bob, "t1")
	require.NoError(t, err)
	assert.Len(t, trip.JoinedUsers, 1)
	assert.Equal(t, before, f.notifRepo.count())
}

func TestJoinTrip_Rules(t *testing.T) {
	f := newTripFixture(aliceTrip("private", false), aliceTrip("public", true))

	_, err := f.svc.JoinTrip(context.Background(), bob, "private")
	assert.ErrorIs(t, err, ErrTripNotPublic)

	_, err = f.svc.JoinTrip(context.Background(), alice, "public")
	assert.ErrorIs(t, err, ErrOwnerCannotJoin)

	_, err = f.svc.JoinTrip(context.Background(), bob, "nope")
	assert.ErrorIs(t, err, ErrTripNotFound)
}

func TestLeaveTrip(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", true))
	ctx := context.Background()

	_, err := f.svc.JoinTrip(ctx, bob, "t1")
	require.NoError(t, err)
	_, err = f.svc.JoinTrip(ctx, carol, "t1")
	require.NoError(t, err)

	trip, err := f.svc.LeaveTrip(ctx, bob, "t1")
	require.NoError(t, err)
	assert.False(t, trip.JoinedUsers.Has("bob@example.com"))

	ownerInbox := f.notifRepo.forRecipient("alice@example.com")
	assert.Equal(t, "Bob has left your trip to Cox's Bazar", ownerInbox[len(ownerInbox)-1].Message)
	assert.Equal(t, models.NotificationLeave, ownerInbox[len(ownerInbox)-1].Type)

	carolInbox := f.notifRepo.forRecipient("carol@example.com")
	assert.Equal(t, "Bob has left the trip to Cox's Bazar", carolInbox[len(carolInbox)-1].Message)

	// Leaving again changes nothing.
	before := f.notifRepo.count()
	_, err = f.svc.LeaveTrip(ctx, bob, "t1")
	require.NoError(t, err)
	assert.Equal(t, before, f.notifRepo.count())
}

func TestLeaveTrip_AfterProfileChange(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", true))
	ctx := context.Background()

	_, err := f.svc.JoinTrip(ctx, bob, "t1")
	require.NoError(t, err)

	renamed := bob
	renamed.Name = "Robert"
	renamed.Picture = "https://img/new.png"
	renamed.Email = "BOB@example.com"
	_, err = f.svc.LeaveTrip(ctx, renamed, "t1")
	require.NoError(t, err)

	assert.Empty(t, f.trips.stored("t1").JoinedUsers)
}

func TestMembershipSequences(t *testing.T) {
	sequences := [][]string{
		{"join"},
		{"join", "leave"},
		{"join", "join", "leave"},
		{"join", "leave", "join"},
		{"leave", "join", "join"},
		{"leave", "leave"},
	}
	for _, seq := range sequences {
		t.Run(strings.Join(seq, ","), func(t *testing.T) {
			f := newTripFixture(aliceTrip("t1", true))
			joined := false
			for _, op := range seq {
				var err error
				if op == "join" {
					_, err = f.svc.JoinTrip(context.Background(), bob, "t1")
					joined = true
				} else {
					_, err = f.svc.LeaveTrip(context.Background(), bob, "t1")
					joined = false
				}
				require.NoError(t, err)
			}
			assert.Equal(t, joined, f.trips.stored("t1").JoinedUsers.Has(bob.Email))
		})
	}
}

func TestFanOut_PartialFailureContinues(t *testing.T) {
	trip := aliceTrip("t1", true)
	trip.JoinedUsers["carol@example.com"] = models.Membership{Email: "carol@example.com", Name: "Carol", JoinedAt: fixedNow}
	trip.JoinedUsers["dave@example.com"] = models.Membership{Email: "dave@example.com", Name: "Dave", JoinedAt: fixedNow.Add(time.Minute)}
	f := newTripFixture(trip)
	f.notifRepo.failFor["carol@example.com"] = true

	_, err := f.svc.JoinTrip(context.Background(), bob, "t1")
	require.NoError(t, err)

	assert.Len(t, f.notifRepo.forRecipient("alice@example.com"), 1)
	assert.Empty(t, f.notifRepo.forRecipient("carol@example.com"))
	assert.Len(t, f.notifRepo.forRecipient("dave@example.com"), 1)
	assert.True(t, f.trips.stored("t1").JoinedUsers.Has("bob@example.com"))
}

func TestSaveNotes(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", true))
	ctx := context.Background()

	trip, err := f.svc.SaveNotes(ctx, alice, "t1", `<p>Pack <strong>sunscreen</strong></p><script>alert(1)</script><a href="javascript:x">x</a>`)
	require.NoError(t, err)
	assert.Equal(t, "<p>Pack <strong>sunscreen</strong></p>x", trip.Notes)
	assert.Equal(t, trip.Notes, f.trips.stored("t1").Notes)

	_, err = f.svc.SaveNotes(ctx, bob, "t1", "hi")
	assert.ErrorIs(t, err, ErrTripForbidden)

	_, err = f.svc.JoinTrip(ctx, bob, "t1")
	require.NoError(t, err)
	_, err = f.svc.SaveNotes(ctx, bob, "t1", "members can write too")
	assert.NoError(t, err)

	_, err = f.svc.SaveNotes(ctx, alice, "t1", strings.Repeat("a", MaxNotesLength+1))
	assert.ErrorIs(t, err, ErrNotesTooLong)
}

func TestDeleteTrip(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", true))

	assert.ErrorIs(t, f.svc.DeleteTrip(context.Background(), bob, "t1"), ErrNotTripOwner)
	require.NoError(t, f.svc.DeleteTrip(context.Background(), alice, "t1"))
	assert.Nil(t, f.trips.stored("t1"))
	assert.ErrorIs(t, f.svc.DeleteTrip(context.Background(), alice, "t1"), ErrTripNotFound)
}

func TestListTrips(t *testing.T) {
	joined := aliceTrip("t2", true)
	joined.JoinedUsers["bob@example.com"] = models.Membership{Email: "bob@example.com"}
	bobsOwn := aliceTrip("t3", false)
	bobsOwn.UserEmail = "bob@example.com"
	bobMember := bob.Member()
	bobsOwn.UserInfo = &bobMember
	f := newTripFixture(aliceTrip("t1", false), joined, bobsOwn)
	ctx := context.Background()

	mine, err := f.svc.ListMyTrips(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	public, err := f.svc.ListPublicTrips(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "t2", public[0].ID)

	group, err := f.svc.ListGroupTrips(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, group, 2)

	none, err := f.svc.ListGroupTrips(ctx, dave)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestEstimateCost(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", false))
	f.costs.estimate = &llm.CostEstimate{
		Breakdown: models.CostBreakdown{Accommodation: 3000, Food: 1200, Transportation: 4500, Activities: 800},
		Raw:       "{...}",
		Tier:      llm.TierBraces,
	}

	resp, err := f.svc.EstimateCost(context.Background(), &alice, "t1", models.CostEstimateRequest{})
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, 2, resp.Data.Travelers)
	assert.Equal(t, 3, resp.Data.Days)
	assert.Equal(t, 2*(3*(3000.0+1200+800)+4500), resp.Data.Total)
	assert.Equal(t, llm.CostRequest{Destination: "Cox's Bazar, Chattogram, Bangladesh", Days: 3, Budget: "moderate"}, f.costs.calls[0])

	resp, err = f.svc.EstimateCost(context.Background(), &alice, "t1", models.CostEstimateRequest{Travelers: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Data.Travelers)

	_, err = f.svc.EstimateCost(context.Background(), &bob, "t1", models.CostEstimateRequest{})
	assert.ErrorIs(t, err, ErrTripForbidden)
}

func TestEstimateCost_ExtractionFailure(t *testing.T) {
	f := newTripFixture(aliceTrip("t1", true))
	f.costs.err = &llm.ExtractionError{Reason: "no json", Raw: "Sorry"}

	resp, err := f.svc.EstimateCost(context.Background(), nil, "t1", models.CostEstimateRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "no json", resp.Error)
	assert.Equal(t, "Sorry", resp.RawResponse)
	assert.Nil(t, resp.Data)

	f.costs.err = errors.New("upstream down")
	resp, err = f.svc.EstimateCost(context.Background(), nil, "t1", models.CostEstimateRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "upstream down")
}

func TestExportTrip(t *testing.T) {
	trip := aliceTrip("t1", false)
	trip.Notes = "<p>Bring <strong>hat</strong></p>"
	f := newTripFixture(trip)

	page, err := f.svc.ExportTrip(context.Background(), &alice, "t1")
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "<title>Cox&#39;s Bazar - 3 day trip</title>")
	assert.Contains(t, html, "Beach &lt;walk&gt;")
	assert.Contains(t, html, "<p>Bring <strong>hat</strong></p>")
	assert.Contains(t, html, "Day 3")

	_, err = f.svc.ExportTrip(context.Background(), &bob, "t1")
	assert.ErrorIs(t, err, ErrTripForbidden)
}
