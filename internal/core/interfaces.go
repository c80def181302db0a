package core

import (
	"context"

	"github.com/example/tripplanner/internal/llm"
	"github.com/example/tripplanner/internal/models"
)

// TripService defines the trip lifecycle, visibility and membership operations.
type TripService interface {
	CreateTrip(ctx context.Context, user models.User, req models.CreateTripRequest) (*models.Trip, error)
	// GetTrip returns a trip the viewer may see: public trips, or trips the viewer owns or joined.
	// viewer is nil for anonymous requests.
	GetTrip(ctx context.Context, viewer *models.User, tripID string) (*models.Trip, error)
	ListMyTrips(ctx context.Context, user models.User) ([]*models.Trip, error)
	ListPublicTrips(ctx context.Context) ([]*models.Trip, error)
	// ListGroupTrips returns the trips the user owns or joined.
	ListGroupTrips(ctx context.Context, user models.User) ([]*models.Trip, error)
	ToggleVisibility(ctx context.Context, user models.User, tripID string) (*models.Trip, error)
	SaveNotes(ctx context.Context, user models.User, tripID, notes string) (*models.Trip, error)
	DeleteTrip(ctx context.Context, user models.User, tripID string) error
	JoinTrip(ctx context.Context, user models.User, tripID string) (*models.Trip, error)
	LeaveTrip(ctx context.Context, user models.User, tripID string) (*models.Trip, error)
	// ExportTrip renders the trip as a standalone HTML document.
	ExportTrip(ctx context.Context, viewer *models.User, tripID string) ([]byte, error)
	// EstimateCost asks the model for a cost breakdown. Model parse failures are reported in
	// the response (success=false, rawResponse) rather than as an error.
	EstimateCost(ctx context.Context, viewer *models.User, tripID string, req models.CostEstimateRequest) (*models.CostEstimateResponse, error)
}

// NotificationService defines the operations on a recipient's notifications.
type NotificationService interface {
	Create(ctx context.Context, n models.Notification) (*models.Notification, error)
	ListAll(ctx context.Context, recipient string) ([]*models.Notification, error)
	ListUnread(ctx context.Context, recipient string) ([]*models.Notification, error)
	MarkRead(ctx context.Context, recipient, notificationID string) error
	// MarkAllRead flips every unread notification of recipient and returns how many there were.
	MarkAllRead(ctx context.Context, recipient string) (int, error)
	UnreadCount(ctx context.Context, recipient string) (int, error)
}

// ChatService defines the group chat of a trip.
type ChatService interface {
	SendMessage(ctx context.Context, user models.User, tripID string, req models.SendMessageRequest) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, user models.User, tripID string) ([]*models.ChatMessage, error)
	// Authorize returns the trip when the user may read its chat.
	Authorize(ctx context.Context, user models.User, tripID string) (*models.Trip, error)
}

// WeatherService defines forecast lookups for a trip.
type WeatherService interface {
	TripWeather(ctx context.Context, viewer *models.User, tripID string) (*models.WeatherReport, error)
	// CheckTripWeather fetches the forecast and stores the first alert, if any, as a
	// weather_alert notification for the trip owner.
	CheckTripWeather(ctx context.Context, user models.User, tripID string) (*models.WeatherReport, *models.Notification, error)
}

// ItineraryGenerator produces a validated itinerary. Implemented by llm.ItineraryGenerator.
type ItineraryGenerator interface {
	Generate(ctx context.Context, req llm.ItineraryRequest) (*models.Itinerary, error)
}

// CostEstimator produces per-category cost estimates. Implemented by llm.CostEstimator.
type CostEstimator interface {
	Estimate(ctx context.Context, req llm.CostRequest) (*llm.CostEstimate, error)
}

// ForecastProvider returns the forecast report for a location. Implemented by lookup.WeatherClient.
type ForecastProvider interface {
	Report(ctx context.Context, loc models.Location) (*models.WeatherReport, error)
}

// EventPublisher forwards notification events to out-of-process consumers.
type EventPublisher interface {
	PublishNotification(ctx context.Context, event models.NotificationEvent) error
}
