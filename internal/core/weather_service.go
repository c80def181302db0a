package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/db"
	"github.com/example/tripplanner/internal/models"
)

// ErrWeatherUnavailable is returned when the trip location cannot be resolved to coordinates.
var ErrWeatherUnavailable = errors.New("weather is not available for this trip")

// Geocoder resolves a place name to a location. Implemented by lookup.Geocoder.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*models.Location, error)
}

// weatherService implements the WeatherService interface.
type weatherService struct {
	trips         db.TripRepository
	forecasts     ForecastProvider
	geocoder      Geocoder
	notifications NotificationService
	logger        *zap.Logger
}

// NewWeatherService creates a new WeatherService instance. geocoder may be nil; it is used
// for trips whose stored location has no coordinates.
func NewWeatherService(
	trips db.TripRepository,
	forecasts ForecastProvider,
	geocoder Geocoder,
	notifications NotificationService,
	logger *zap.Logger,
) WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &weatherService{
		trips:         trips,
		forecasts:     forecasts,
		geocoder:      geocoder,
		notifications: notifications,
		logger:        logger,
	}
}

func (s *weatherService) loadVisible(ctx context.Context, viewer *models.User, tripID string) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	if trip.IsPublic || (viewer != nil && trip.CanAccess(viewer.Email)) {
		return trip, nil
	}
	return nil, ErrTripForbidden
}

func (s *weatherService) report(ctx context.Context, trip *models.Trip) (*models.WeatherReport, error) {
	loc := trip.UserSelection.Location
	if loc.Lat == 0 && loc.Lon == 0 {
		if s.geocoder == nil {
			return nil, ErrWeatherUnavailable
		}
		query := loc.DisplayName
		if query == "" {
			query = loc.Label
		}
		found, err := s.geocoder.Geocode(ctx, query)
		if err != nil {
			s.logger.Warn("Could not geocode trip location", zap.String("tripID", trip.ID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrWeatherUnavailable, err)
		}
		loc.Lat, loc.Lon = found.Lat, found.Lon
	}
	return s.forecasts.Report(ctx, loc)
}

func (s *weatherService) TripWeather(ctx context.Context, viewer *models.User, tripID string) (*models.WeatherReport, error) {
	trip, err := s.loadVisible(ctx, viewer, tripID)
	if err != nil {
		return nil, err
	}
	return s.report(ctx, trip)
}

// CheckTripWeather stores the first derived alert for the owner. An identical alert that is
// still unread is not stored again.
func (s *weatherService) CheckTripWeather(ctx context.Context, user models.User, tripID string) (*models.WeatherReport, *models.Notification, error) {
	trip, err := s.loadVisible(ctx, &user, tripID)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.report(ctx, trip)
	if err != nil {
		return nil, nil, err
	}
	if len(report.Alerts) == 0 {
		return report, nil, nil
	}

	owner := trip.OwnerEmail()
	dest := trip.DestinationName("your trip location")
	message := fmt.Sprintf("Weather Alert for %s: %s", dest, report.Alerts[0].Event)

	unread, err := s.notifications.ListUnread(ctx, owner)
	if err != nil {
		s.logger.Warn("Could not check existing weather alerts", zap.String("tripID", tripID), zap.Error(err))
	}
	for _, n := range unread {
		if n.TripID == trip.ID && n.Type == models.NotificationWeatherAlert && n.Message == message {
			return report, n, nil
		}
	}

	n, err := s.notifications.Create(ctx, models.Notification{
		RecipientEmail: owner,
		TripID:         trip.ID,
		Message:        message,
		Type:           models.NotificationWeatherAlert,
		Destination:    dest,
	})
	if err != nil {
		s.logger.Error("Failed to store weather alert", zap.String("tripID", tripID), zap.Error(err))
		return report, nil, nil
	}
	return report, n, nil
}
