package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/tripplanner/internal/db"
	"github.com/example/tripplanner/internal/llm"
	"github.com/example/tripplanner/internal/models"
)

func cloneTrip(t *models.Trip) *models.Trip {
	c := *t
	c.JoinedUsers = make(models.MemberSet, len(t.JoinedUsers))
	for k, v := range t.JoinedUsers {
		c.JoinedUsers[k] = v
	}
	if t.UserInfo != nil {
		info := *t.UserInfo
		c.UserInfo = &info
	}
	return &c
}

// fakeTripRepo is an in-memory db.TripRepository.
type fakeTripRepo struct {
	mu    sync.Mutex
	trips map[string]*models.Trip
	// existing IDs make Create fail with ErrAlreadyExists.
	taken map[string]bool
}

func newFakeTripRepo(trips ...*models.Trip) *fakeTripRepo {
	r := &fakeTripRepo{trips: map[string]*models.Trip{}, taken: map[string]bool{}}
	for _, t := range trips {
		if t.JoinedUsers == nil {
			t.JoinedUsers = models.MemberSet{}
		}
		r.trips[t.ID] = cloneTrip(t)
	}
	return r
}

func (r *fakeTripRepo) stored(id string) *models.Trip {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trips[id]; ok {
		return cloneTrip(t)
	}
	return nil
}

func (r *fakeTripRepo) Create(_ context.Context, trip *models.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trips[trip.ID]; ok || r.taken[trip.ID] {
		return fmt.Errorf("create: %w", db.ErrAlreadyExists)
	}
	r.trips[trip.ID] = cloneTrip(trip)
	return nil
}

func (r *fakeTripRepo) GetByID(_ context.Context, id string) (*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, db.ErrNotFound)
	}
	return cloneTrip(t), nil
}

func (r *fakeTripRepo) filter(keep func(*models.Trip) bool) []*models.Trip {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Trip
	for _, t := range r.trips {
		if keep(t) {
			out = append(out, cloneTrip(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakeTripRepo) ListByOwner(_ context.Context, email string) ([]*models.Trip, error) {
	return r.filter(func(t *models.Trip) bool { return t.UserEmail == email }), nil
}

func (r *fakeTripRepo) ListPublic(_ context.Context) ([]*models.Trip, error) {
	return r.filter(func(t *models.Trip) bool { return t.IsPublic }), nil
}

func (r *fakeTripRepo) ListByMember(_ context.Context, email string) ([]*models.Trip, error) {
	return r.filter(func(t *models.Trip) bool { return t.UserEmail == email || t.JoinedUsers.Has(email) }), nil
}

func (r *fakeTripRepo) ToggleVisibility(_ context.Context, id string, owner models.Member) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return false, db.ErrNotFound
	}
	t.IsPublic = !t.IsPublic
	t.UserInfo = &owner
	if t.JoinedUsers == nil {
		t.JoinedUsers = models.MemberSet{}
	}
	return t.IsPublic, nil
}

func (r *fakeTripRepo) UpdateNotes(_ context.Context, id, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return db.ErrNotFound
	}
	t.Notes = notes
	return nil
}

func (r *fakeTripRepo) AddMember(_ context.Context, id string, m models.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return db.ErrNotFound
	}
	t.JoinedUsers[m.Email] = m
	return nil
}

func (r *fakeTripRepo) RemoveMember(_ context.Context, id, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return db.ErrNotFound
	}
	delete(t.JoinedUsers, email)
	return nil
}

func (r *fakeTripRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trips[id]; !ok {
		return db.ErrNotFound
	}
	delete(r.trips, id)
	return nil
}

func (r *fakeTripRepo) Watch(ctx context.Context, id string, fn func(*models.Trip)) error {
	fn(r.stored(id))
	<-ctx.Done()
	return ctx.Err()
}

func (r *fakeTripRepo) WatchPublic(ctx context.Context, fn func([]*models.Trip)) error {
	list, _ := r.ListPublic(ctx)
	fn(list)
	<-ctx.Done()
	return ctx.Err()
}

// fakeNotificationRepo is an in-memory db.NotificationRepository.
type fakeNotificationRepo struct {
	mu     sync.Mutex
	items  []*models.Notification
	nextID int
	// failFor makes Create fail for these recipients.
	failFor map[string]bool
	clock   time.Time
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{failFor: map[string]bool{}, clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[n.RecipientEmail] {
		return "", errors.New("write failed")
	}
	r.nextID++
	r.clock = r.clock.Add(time.Second)
	stored := *n
	stored.ID = fmt.Sprintf("n%d", r.nextID)
	stored.Timestamp = r.clock
	r.items = append(r.items, &stored)
	return stored.ID, nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id {
			c := *n
			return &c, nil
		}
	}
	return nil, fmt.Errorf("get %s: %w", id, db.ErrNotFound)
}

func (r *fakeNotificationRepo) list(email string, unreadOnly bool) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.items {
		if n.RecipientEmail == email && (!unreadOnly || !n.Read) {
			c := *n
			out = append(out, &c)
		}
	}
	db.SortNotificationsNewestFirst(out)
	return out
}

func (r *fakeNotificationRepo) ListByRecipient(_ context.Context, email string) ([]*models.Notification, error) {
	return r.list(email, false), nil
}

func (r *fakeNotificationRepo) ListUnread(_ context.Context, email string) ([]*models.Notification, error) {
	return r.list(email, true), nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return db.ErrNotFound
}

func (r *fakeNotificationRepo) MarkReadBatch(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := r.MarkRead(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeNotificationRepo) WatchByRecipient(ctx context.Context, email string, fn func([]*models.Notification)) error {
	fn(r.list(email, false))
	<-ctx.Done()
	return ctx.Err()
}

// forRecipient returns the messages sent to email, oldest first.
func (r *fakeNotificationRepo) forRecipient(email string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.items {
		if n.RecipientEmail == email {
			out = append(out, *n)
		}
	}
	return out
}

func (r *fakeNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// fakeMessageRepo is an in-memory db.MessageRepository.
type fakeMessageRepo struct {
	mu           sync.Mutex
	items        []*models.ChatMessage
	indexMissing bool
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *models.ChatMessage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = fmt.Sprintf("m%d", len(r.items)+1)
	c := *msg
	r.items = append(r.items, &c)
	return msg.ID, nil
}

func (r *fakeMessageRepo) ListByTrip(ctx context.Context, tripID string) ([]*models.ChatMessage, error) {
	if r.indexMissing {
		return nil, fmt.Errorf("list: %w", db.ErrIndexRequired)
	}
	list, _ := r.ListByTripUnordered(ctx, tripID)
	db.SortMessagesOldestFirst(list)
	return list, nil
}

func (r *fakeMessageRepo) ListByTripUnordered(_ context.Context, tripID string) ([]*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ChatMessage
	for _, m := range r.items {
		if m.TripID == tripID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) WatchByTrip(ctx context.Context, tripID string, fn func([]*models.ChatMessage)) error {
	list, _ := r.ListByTrip(ctx, tripID)
	fn(list)
	<-ctx.Done()
	return ctx.Err()
}

type fakeItineraryGenerator struct {
	calls []llm.ItineraryRequest
	err   error
}

func (g *fakeItineraryGenerator) Generate(_ context.Context, req llm.ItineraryRequest) (*models.Itinerary, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	it := sampleItinerary(req.Days)
	return &it, nil
}

func sampleItinerary(days int) models.Itinerary {
	it := models.Itinerary{
		Hotels: []models.Hotel{{Name: "Sea Pearl", Address: "Inani", Price: "8000 BDT", Rating: 4.5}},
	}
	for d := 1; d <= days; d++ {
		it.Itinerary = append(it.Itinerary, models.DayPlan{
			Day:  fmt.Sprintf("Day %d", d),
			Plan: []models.PlanItem{{Time: "09:00", Place: "Beach <walk>", Details: "Morning walk"}},
		})
	}
	return it
}

type fakeCostEstimator struct {
	calls    []llm.CostRequest
	estimate *llm.CostEstimate
	err      error
}

func (c *fakeCostEstimator) Estimate(_ context.Context, req llm.CostRequest) (*llm.CostEstimate, error) {
	c.calls = append(c.calls, req)
	return c.estimate, c.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.NotificationEvent
	err    error
}

func (p *fakePublisher) PublishNotification(_ context.Context, e models.NotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fakeForecast struct {
	report *models.WeatherReport
	asked  []models.Location
}

func (f *fakeForecast) Report(_ context.Context, loc models.Location) (*models.WeatherReport, error) {
	f.asked = append(f.asked, loc)
	r := *f.report
	r.Location = loc
	return &r, nil
}

type fakeGeocoder struct {
	loc *models.Location
	err error
}

func (g *fakeGeocoder) Geocode(context.Context, string) (*models.Location, error) {
	return g.loc, g.err
}

var (
	alice = models.User{ID: "a1", Email: "Alice@Example.com", Name: "Alice", Picture: "https://img/a.png"}
	bob   = models.User{ID: "b1", Email: "bob@example.com", Name: "Bob"}
	carol = models.User{ID: "c1", Email: "carol@example.com", Name: "Carol"}
	dave  = models.User{ID: "d1", Email: "dave@example.com", Name: "Dave"}
)

// aliceTrip is a trip owned by alice.
func aliceTrip(id string, public bool) *models.Trip {
	owner := alice.Member()
	return &models.Trip{
		ID: id,
		UserSelection: models.UserSelection{
			Location: models.Location{Label: "Cox's Bazar, Chattogram, Bangladesh", Lat: 21.4, Lon: 92.0},
			NoOfDays: 3,
			Budget:   "moderate",
			Traveler: "2 People",
		},
		TripData:    sampleItinerary(3),
		UserEmail:   owner.Email,
		UserInfo:    &owner,
		IsPublic:    public,
		JoinedUsers: models.MemberSet{},
	}
}
