package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/db"
	"github.com/example/tripplanner/internal/llm"
	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/models"
)

// Custom errors for the TripService
var (
	ErrTripNotFound        = errors.New("trip not found")
	ErrTripForbidden       = errors.New("user does not have access to this trip")
	ErrNotTripOwner        = errors.New("only the trip owner can do this")
	ErrTripNotPublic       = errors.New("trip is not public")
	ErrOwnerCannotJoin     = errors.New("the owner cannot join their own trip")
	ErrInvalidTripRequest  = errors.New("invalid trip request")
	ErrItineraryGeneration = errors.New("failed to generate itinerary")
	ErrNotesTooLong        = errors.New("notes are too long")
)

// Budget tiers accepted by CreateTrip. Both the form's labels and the low/medium/high scale are
// valid; the tier is stored lowercased as given.
var budgetTiers = map[string]bool{
	"cheap": true, "moderate": true, "luxury": true,
	"low": true, "medium": true, "high": true,
}

const maxTripIDAttempts = 3

// tripService implements the TripService interface.
type tripService struct {
	repo          db.TripRepository
	notifications NotificationService
	itineraries   ItineraryGenerator
	costs         CostEstimator
	validate      *validator.Validate
	notes         *bluemonday.Policy
	metrics       metrics.Recorder
	logger        *zap.Logger
	now           func() time.Time
}

// NewTripService creates a new TripService instance.
func NewTripService(
	repo db.TripRepository,
	notifications NotificationService,
	itineraries ItineraryGenerator,
	costs CostEstimator,
	recorder metrics.Recorder,
	logger *zap.Logger,
) TripService {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tripService{
		repo:          repo,
		notifications: notifications,
		itineraries:   itineraries,
		costs:         costs,
		validate:      validator.New(),
		notes:         notesPolicy(),
		metrics:       recorder,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateTrip validates the form, generates the itinerary and stores the trip under a
// millisecond timestamp ID. Nothing is stored when the itinerary cannot be generated.
func (s *tripService) CreateTrip(ctx context.Context, user models.User, req models.CreateTripRequest) (*models.Trip, error) {
	req.Budget = strings.ToLower(strings.TrimSpace(req.Budget))
	req.Traveler = strings.TrimSpace(req.Traveler)
	req.Location.Label = strings.TrimSpace(req.Location.Label)
	if req.Location.Label == "" {
		req.Location.Label = strings.TrimSpace(req.Location.DisplayName)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTripRequest, err)
	}
	if !budgetTiers[req.Budget] {
		return nil, fmt.Errorf("%w: budget must be one of cheap, moderate, luxury, low, medium, high", ErrInvalidTripRequest)
	}

	location := req.Location.DisplayName
	if location == "" {
		location = req.Location.Label
	}
	itinerary, err := s.itineraries.Generate(ctx, llm.ItineraryRequest{
		Location: location,
		Days:     req.NoOfDays,
		Traveler: req.Traveler,
		Budget:   req.Budget,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrItineraryGeneration, err)
	}

	owner := user.Member()
	trip := &models.Trip{
		UserSelection: models.UserSelection{
			Location:  req.Location,
			StartDate: req.StartDate,
			NoOfDays:  req.NoOfDays,
			Budget:    req.Budget,
			Traveler:  req.Traveler,
		},
		TripData:    *itinerary,
		UserEmail:   owner.Email,
		UserInfo:    &owner,
		JoinedUsers: models.MemberSet{},
	}

	createdAt := s.now()
	for attempt := 0; attempt < maxTripIDAttempts; attempt++ {
		trip.ID = strconv.FormatInt(createdAt.UnixMilli()+int64(attempt), 10)
		err = s.repo.Create(ctx, trip)
		if !errors.Is(err, db.ErrAlreadyExists) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store trip: %w", err)
	}
	trip.CreatedAt = createdAt.UTC()

	s.logger.Info("Trip created",
		zap.String("tripID", trip.ID),
		zap.String("owner", owner.Email),
		zap.Int("days", req.NoOfDays))
	return trip, nil
}

func (s *tripService) load(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return trip, nil
}

// loadVisible returns the trip when it is public or the viewer owns or joined it.
func (s *tripService) loadVisible(ctx context.Context, viewer *models.User, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.IsPublic || (viewer != nil && trip.CanAccess(viewer.Email)) {
		return trip, nil
	}
	return nil, ErrTripForbidden
}

func (s *tripService) GetTrip(ctx context.Context, viewer *models.User, tripID string) (*models.Trip, error) {
	return s.loadVisible(ctx, viewer, tripID)
}

func (s *tripService) ListMyTrips(ctx context.Context, user models.User) ([]*models.Trip, error) {
	return nonNilTrips(s.repo.ListByOwner(ctx, models.NormalizeEmail(user.Email)))
}

func (s *tripService) ListPublicTrips(ctx context.Context) ([]*models.Trip, error) {
	return nonNilTrips(s.repo.ListPublic(ctx))
}

func (s *tripService) ListGroupTrips(ctx context.Context, user models.User) ([]*models.Trip, error) {
	return nonNilTrips(s.repo.ListByMember(ctx, models.NormalizeEmail(user.Email)))
}

func nonNilTrips(trips []*models.Trip, err error) ([]*models.Trip, error) {
	if err != nil {
		return nil, err
	}
	if trips == nil {
		trips = []*models.Trip{}
	}
	return trips, nil
}

// ToggleVisibility flips isPublic and stamps the current owner profile on the trip.
func (s *tripService) ToggleVisibility(ctx context.Context, user models.User, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsOwner(user.Email) {
		return nil, ErrNotTripOwner
	}

	owner := user.Member()
	isPublic, err := s.repo.ToggleVisibility(ctx, tripID, owner)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	trip.IsPublic = isPublic
	trip.UserInfo = &owner

	s.logger.Info("Trip visibility changed", zap.String("tripID", tripID), zap.Bool("isPublic", isPublic))
	return trip, nil
}

// SaveNotes replaces the journal notes. Owner and members may write them.
func (s *tripService) SaveNotes(ctx context.Context, user models.User, tripID, notes string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.CanAccess(user.Email) {
		return nil, ErrTripForbidden
	}

	clean := sanitizeNotes(s.notes, notes)
	if len(clean) > MaxNotesLength {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrNotesTooLong, len(clean), MaxNotesLength)
	}
	if err := s.repo.UpdateNotes(ctx, tripID, clean); err != nil {
		return nil, err
	}
	trip.Notes = clean
	return trip, nil
}

// DeleteTrip removes a trip. Only the owner may delete it.
func (s *tripService) DeleteTrip(ctx context.Context, user models.User, tripID string) error {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return err
	}
	if !trip.IsOwner(user.Email) {
		return ErrNotTripOwner
	}
	if err := s.repo.Delete(ctx, tripID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrTripNotFound
		}
		return err
	}
	s.logger.Info("Trip deleted", zap.String("tripID", tripID), zap.String("owner", trip.OwnerEmail()))
	return nil
}

// JoinTrip adds the user to a public trip. Joining again is a no-op and sends nothing.
func (s *tripService) JoinTrip(ctx context.Context, user models.User, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(user.Email)
	if trip.IsOwner(email) {
		return nil, ErrOwnerCannotJoin
	}
	if trip.JoinedUsers.Has(email) {
		return trip, nil
	}
	if !trip.IsPublic {
		return nil, ErrTripNotPublic
	}

	member := user.Member()
	membership := models.Membership{
		Email:    email,
		Name:     member.Name,
		Picture:  member.Picture,
		JoinedAt: s.now().UTC(),
	}
	if err := s.repo.AddMember(ctx, tripID, membership); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	trip.JoinedUsers[email] = membership

	s.fanOutMembership(ctx, trip, user, models.NotificationJoin, "joined")
	return trip, nil
}

// LeaveTrip removes the user from a trip. Leaving a trip the user is not part of is a no-op.
func (s *tripService) LeaveTrip(ctx context.Context, user models.User, tripID string) (*models.Trip, error) {
	trip, err := s.load(ctx, tripID)
	if err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(user.Email)
	if !trip.JoinedUsers.Has(email) {
		return trip, nil
	}

	if err := s.repo.RemoveMember(ctx, tripID, email); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	delete(trip.JoinedUsers, email)

	s.fanOutMembership(ctx, trip, user, models.NotificationLeave, "left")
	return trip, nil
}

// fanOutMembership notifies the owner and every other member about a join or leave.
// Writes run one after another; a failed write is logged and the loop moves on.
func (s *tripService) fanOutMembership(ctx context.Context, trip *models.Trip, actor models.User, kind, verb string) {
	actorEmail := models.NormalizeEmail(actor.Email)
	name := actor.DisplayName()
	dest := trip.DestinationName("Trip")
	owner := trip.OwnerEmail()

	type delivery struct {
		recipient string
		message   string
	}
	var deliveries []delivery
	if owner != "" && owner != actorEmail {
		deliveries = append(deliveries, delivery{owner, fmt.Sprintf("%s has %s your trip to %s", name, verb, dest)})
	}
	for _, m := range trip.JoinedUsers.List() {
		if m.Email == actorEmail || m.Email == owner {
			continue
		}
		deliveries = append(deliveries, delivery{m.Email, fmt.Sprintf("%s has %s the trip to %s", name, verb, dest)})
	}

	for _, d := range deliveries {
		_, err := s.notifications.Create(ctx, models.Notification{
			RecipientEmail: d.recipient,
			TripID:         trip.ID,
			Message:        d.message,
			Type:           kind,
			Destination:    dest,
		})
		if err != nil {
			s.metrics.RecordFanOutFailure(kind)
			s.logger.Error("Failed to send membership notification",
				zap.String("tripID", trip.ID),
				zap.String("recipient", d.recipient),
				zap.String("type", kind),
				zap.Error(err))
		}
	}
}

// EstimateCost runs the cost estimator for a trip the viewer can see.
func (s *tripService) EstimateCost(ctx context.Context, viewer *models.User, tripID string, req models.CostEstimateRequest) (*models.CostEstimateResponse, error) {
	trip, err := s.loadVisible(ctx, viewer, tripID)
	if err != nil {
		return nil, err
	}

	destination := trip.UserSelection.Location.DisplayName
	if destination == "" {
		destination = trip.UserSelection.Location.Label
	}
	if strings.TrimSpace(destination) == "" {
		return &models.CostEstimateResponse{
			Success: false,
			Error:   "No destination specified. Please select a destination for your trip.",
		}, nil
	}

	days := trip.UserSelection.NoOfDays
	if days < 1 {
		days = 1
	}
	budget := trip.UserSelection.Budget
	if budget == "" {
		budget = "moderate"
	}
	travelers := req.Travelers
	if travelers < 1 {
		travelers = trip.UserSelection.TravelerCount()
	}

	estimate, err := s.costs.Estimate(ctx, llm.CostRequest{Destination: destination, Days: days, Budget: budget})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var extractErr *llm.ExtractionError
		if errors.As(err, &extractErr) {
			return &models.CostEstimateResponse{Success: false, Error: extractErr.Reason, RawResponse: extractErr.Raw}, nil
		}
		s.logger.Error("Cost estimation failed", zap.String("tripID", tripID), zap.Error(err))
		return &models.CostEstimateResponse{Success: false, Error: err.Error()}, nil
	}

	summary := llm.Summarize(estimate.Breakdown, days, travelers)
	return &models.CostEstimateResponse{Success: true, Data: &summary, RawResponse: estimate.Raw}, nil
}
