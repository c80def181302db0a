package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/db"
	"github.com/example/tripplanner/internal/metrics"
	"github.com/example/tripplanner/internal/models"
)

// Limits on chat messages.
const (
	MaxImageBytes    = 1 << 20 // decoded image payload
	MaxMessageLength = 4000
	// maxImageURLLength keeps the encoded data URL inside a single Firestore document.
	maxImageURLLength = 1_000_000
)

// Custom errors for the ChatService
var (
	ErrNotTripMember   = errors.New("only the owner and members can use the trip chat")
	ErrEmptyMessage    = errors.New("message needs text or an image")
	ErrMessageTooLong  = errors.New("message text is too long")
	ErrInvalidImageURL = errors.New("image must be a base64 encoded data:image URL")
	ErrImageTooLarge   = errors.New("image is larger than 1MB")
)

// chatService implements the ChatService interface.
type chatService struct {
	trips         db.TripRepository
	messages      db.MessageRepository
	notifications NotificationService
	metrics       metrics.Recorder
	logger        *zap.Logger
}

// NewChatService creates a new ChatService instance.
func NewChatService(
	trips db.TripRepository,
	messages db.MessageRepository,
	notifications NotificationService,
	recorder metrics.Recorder,
	logger *zap.Logger,
) ChatService {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &chatService{
		trips:         trips,
		messages:      messages,
		notifications: notifications,
		metrics:       recorder,
		logger:        logger,
	}
}

func (s *chatService) Authorize(ctx context.Context, user models.User, tripID string) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	if !trip.CanAccess(user.Email) {
		return nil, ErrNotTripMember
	}
	return trip, nil
}

// SendMessage stores a chat message and notifies everyone else on the trip.
func (s *chatService) SendMessage(ctx context.Context, user models.User, tripID string, req models.SendMessageRequest) (*models.ChatMessage, error) {
	text := sanitizeChatText(req.Text)
	imageURL := strings.TrimSpace(req.ImageURL)
	if text == "" && imageURL == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if imageURL != "" {
		if err := ValidateImageDataURL(imageURL); err != nil {
			return nil, err
		}
	}

	trip, err := s.Authorize(ctx, user, tripID)
	if err != nil {
		return nil, err
	}

	senderID := user.ID
	if senderID == "" {
		senderID = models.NormalizeEmail(user.Email)
	}
	msg := &models.ChatMessage{
		TripID:   tripID,
		Text:     text,
		ImageURL: imageURL,
		Sender: models.Sender{
			ID:      senderID,
			Name:    user.DisplayName(),
			Picture: user.Picture,
		},
	}
	if _, err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	msg.Timestamp = time.Now().UTC()

	s.notifyMembers(ctx, trip, user)
	return msg, nil
}

// notifyMembers sends a message notification to every member and the owner except the sender.
func (s *chatService) notifyMembers(ctx context.Context, trip *models.Trip, sender models.User) {
	senderEmail := models.NormalizeEmail(sender.Email)
	dest := strings.TrimSpace(trip.UserSelection.Location.Label)
	if dest == "" {
		dest = "the trip"
	}
	message := fmt.Sprintf("%s sent a message in %s", sender.DisplayName(), dest)

	recipients := make([]string, 0, len(trip.JoinedUsers)+1)
	owner := trip.OwnerEmail()
	if owner != "" && owner != senderEmail {
		recipients = append(recipients, owner)
	}
	for _, m := range trip.JoinedUsers.List() {
		if m.Email != senderEmail && m.Email != owner {
			recipients = append(recipients, m.Email)
		}
	}

	for _, recipient := range recipients {
		_, err := s.notifications.Create(ctx, models.Notification{
			RecipientEmail: recipient,
			TripID:         trip.ID,
			Message:        message,
			Type:           models.NotificationMessage,
			Destination:    dest,
		})
		if err != nil {
			s.metrics.RecordFanOutFailure(models.NotificationMessage)
			s.logger.Error("Failed to send chat notification",
				zap.String("tripID", trip.ID),
				zap.String("recipient", recipient),
				zap.Error(err))
		}
	}
}

// ListMessages returns the chat of a trip, oldest first. Without the composite index the
// messages are read unordered and sorted here.
func (s *chatService) ListMessages(ctx context.Context, user models.User, tripID string) ([]*models.ChatMessage, error) {
	if _, err := s.Authorize(ctx, user, tripID); err != nil {
		return nil, err
	}

	list, err := s.messages.ListByTrip(ctx, tripID)
	if errors.Is(err, db.ErrIndexRequired) {
		s.logger.Warn("Message index missing, sorting client side", zap.String("tripID", tripID))
		list, err = s.messages.ListByTripUnordered(ctx, tripID)
		if err == nil {
			db.SortMessagesOldestFirst(list)
		}
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.ChatMessage{}
	}
	return list, nil
}

// ValidateImageDataURL accepts data:image/<type>;base64,<payload> URLs whose decoded payload
// is at most MaxImageBytes.
func ValidateImageDataURL(raw string) error {
	if !strings.HasPrefix(raw, "data:image/") {
		return ErrInvalidImageURL
	}
	if len(raw) > maxImageURLLength {
		return ErrImageTooLarge
	}
	header, payload, ok := strings.Cut(raw, ",")
	if !ok || !strings.HasSuffix(header, ";base64") || payload == "" {
		return ErrInvalidImageURL
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return ErrImageTooLarge
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ErrInvalidImageURL
	}
	if len(decoded) > MaxImageBytes {
		return ErrImageTooLarge
	}
	return nil
}
