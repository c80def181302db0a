package api

import (
	"context"

	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"

	"github.com/example/tripplanner/internal/auth"
	"github.com/example/tripplanner/internal/models"
)

type mockTripService struct{ mock.Mock }

func (m *mockTripService) CreateTrip(ctx context.Context, user models.User, req models.CreateTripRequest) (*models.Trip, error) {
	args := m.Called(ctx, user, req)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

func (m *mockTripService) GetTrip(ctx context.Context, viewer *models.User, tripID string) (*models.Trip, error) {
	args := m.Called(ctx, viewer, tripID)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

func (m *mockTripService) ListMyTrips(ctx context.Context, user models.User) ([]*models.Trip, error) {
	args := m.Called(ctx, user)
	trips, _ := args.Get(0).([]*models.Trip)
	return trips, args.Error(1)
}

func (m *mockTripService) ListPublicTrips(ctx context.Context) ([]*models.Trip, error) {
	args := m.Called(ctx)
	trips, _ := args.Get(0).([]*models.Trip)
	return trips, args.Error(1)
}

func (m *mockTripService) ListGroupTrips(ctx context.Context, user models.User) ([]*models.Trip, error) {
	args := m.Called(ctx, user)
	trips, _ := args.Get(0).([]*models.Trip)
	return trips, args.Error(1)
}

func (m *mockTripService) ToggleVisibility(ctx context.Context, user models.User, tripID string) (*models.Trip, error) {
	args := m.Called(ctx, user, tripID)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

func (m *mockTripService) SaveNotes(ctx context.Context, user models.User, tripID, notes string) (*models.Trip, error) {
	args := m.Called(ctx, user, tripID, notes)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

func (m *mockTripService) DeleteTrip(ctx context.Context, user models.User, tripID string) error {
	return m.Called(ctx, user, tripID).Error(0)
}

func (m *mockTripService) JoinTrip(ctx context.Context, user models.User, tripID string) (*models.Trip, error) {
	args := m.Called(ctx, user, tripID)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

func (m *mockTripService) LeaveTrip(ctx context.Context, user models.User, tripID string) (*models.Trip, error) {
	args := m.Called(ctx, user, tripID)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

func (m *mockTripService) ExportTrip(ctx context.Context, viewer *models.User, tripID string) ([]byte, error) {
	args := m.Called(ctx, viewer, tripID)
	page, _ := args.Get(0).([]byte)
	return page, args.Error(1)
}

func (m *mockTripService) EstimateCost(ctx context.Context, viewer *models.User, tripID string, req models.CostEstimateRequest) (*models.CostEstimateResponse, error) {
	args := m.Called(ctx, viewer, tripID, req)
	resp, _ := args.Get(0).(*models.CostEstimateResponse)
	return resp, args.Error(1)
}

type mockNotificationService struct{ mock.Mock }

func (m *mockNotificationService) Create(ctx context.Context, n models.Notification) (*models.Notification, error) {
	args := m.Called(ctx, n)
	out, _ := args.Get(0).(*models.Notification)
	return out, args.Error(1)
}

func (m *mockNotificationService) ListAll(ctx context.Context, recipient string) ([]*models.Notification, error) {
	args := m.Called(ctx, recipient)
	list, _ := args.Get(0).([]*models.Notification)
	return list, args.Error(1)
}

func (m *mockNotificationService) ListUnread(ctx context.Context, recipient string) ([]*models.Notification, error) {
	args := m.Called(ctx, recipient)
	list, _ := args.Get(0).([]*models.Notification)
	return list, args.Error(1)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, recipient, notificationID string) error {
	return m.Called(ctx, recipient, notificationID).Error(0)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	args := m.Called(ctx, recipient)
	return args.Int(0), args.Error(1)
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, recipient string) (int, error) {
	args := m.Called(ctx, recipient)
	return args.Int(0), args.Error(1)
}

type mockChatService struct{ mock.Mock }

func (m *mockChatService) SendMessage(ctx context.Context, user models.User, tripID string, req models.SendMessageRequest) (*models.ChatMessage, error) {
	args := m.Called(ctx, user, tripID, req)
	msg, _ := args.Get(0).(*models.ChatMessage)
	return msg, args.Error(1)
}

func (m *mockChatService) ListMessages(ctx context.Context, user models.User, tripID string) ([]*models.ChatMessage, error) {
	args := m.Called(ctx, user, tripID)
	list, _ := args.Get(0).([]*models.ChatMessage)
	return list, args.Error(1)
}

func (m *mockChatService) Authorize(ctx context.Context, user models.User, tripID string) (*models.Trip, error) {
	args := m.Called(ctx, user, tripID)
	trip, _ := args.Get(0).(*models.Trip)
	return trip, args.Error(1)
}

type mockWeatherService struct{ mock.Mock }

func (m *mockWeatherService) TripWeather(ctx context.Context, viewer *models.User, tripID string) (*models.WeatherReport, error) {
	args := m.Called(ctx, viewer, tripID)
	report, _ := args.Get(0).(*models.WeatherReport)
	return report, args.Error(1)
}

func (m *mockWeatherService) CheckTripWeather(ctx context.Context, user models.User, tripID string) (*models.WeatherReport, *models.Notification, error) {
	args := m.Called(ctx, user, tripID)
	report, _ := args.Get(0).(*models.WeatherReport)
	n, _ := args.Get(1).(*models.Notification)
	return report, n, args.Error(2)
}

type mockIdentity struct{ mock.Mock }

func (m *mockIdentity) AuthCodeURL(state string) string {
	return m.Called(state).String(0)
}

func (m *mockIdentity) Exchange(ctx context.Context, code string) (*models.User, *oauth2.Token, error) {
	args := m.Called(ctx, code)
	user, _ := args.Get(0).(*models.User)
	token, _ := args.Get(1).(*oauth2.Token)
	return user, token, args.Error(2)
}

func (m *mockIdentity) FetchUserInfo(ctx context.Context, accessToken string) (*models.User, error) {
	args := m.Called(ctx, accessToken)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type mockSessionService struct{ mock.Mock }

func (m *mockSessionService) Create(ctx context.Context, user models.User, accessToken string) (*auth.Session, error) {
	args := m.Called(ctx, user, accessToken)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *mockSessionService) Invalidate(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockSessionService) NewState(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockSessionService) ConsumeState(ctx context.Context, state string) error {
	return m.Called(ctx, state).Error(0)
}

type mockPlaces struct{ mock.Mock }

func (m *mockPlaces) Search(ctx context.Context, query string, limit int) ([]models.Location, error) {
	args := m.Called(ctx, query, limit)
	places, _ := args.Get(0).([]models.Location)
	return places, args.Error(1)
}

type mockPhotos struct{ mock.Mock }

func (m *mockPhotos) PhotoURL(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

// staticSessions resolves a fixed set of bearer tokens for the auth middleware.
type staticSessions map[string]*auth.Session

func (s staticSessions) Get(_ context.Context, token string) (*auth.Session, error) {
	if session, ok := s[token]; ok {
		return session, nil
	}
	return nil, auth.ErrSessionNotFound
}

// pushTripWatcher feeds trip listeners from channels.
type pushTripWatcher struct {
	trips  chan *models.Trip
	public chan []*models.Trip
}

func newPushTripWatcher() *pushTripWatcher {
	return &pushTripWatcher{trips: make(chan *models.Trip), public: make(chan []*models.Trip)}
}

func (w *pushTripWatcher) Watch(ctx context.Context, _ string, fn func(*models.Trip)) error {
	for {
		select {
		case t := <-w.trips:
			fn(t)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *pushTripWatcher) WatchPublic(ctx context.Context, fn func([]*models.Trip)) error {
	for {
		select {
		case list := <-w.public:
			fn(list)
		case <-ctx.Done():
			return nil
		}
	}
}

// pushNotificationWatcher feeds notification listeners from a channel.
type pushNotificationWatcher struct {
	updates chan []*models.Notification
}

func newPushNotificationWatcher() *pushNotificationWatcher {
	return &pushNotificationWatcher{updates: make(chan []*models.Notification)}
}

func (w *pushNotificationWatcher) WatchByRecipient(ctx context.Context, _ string, fn func([]*models.Notification)) error {
	for {
		select {
		case list := <-w.updates:
			fn(list)
		case <-ctx.Done():
			return nil
		}
	}
}
