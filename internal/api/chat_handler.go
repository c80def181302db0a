package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/core"
	"github.com/example/tripplanner/internal/models"
	"github.com/example/tripplanner/internal/realtime"
)

// maxMessageBody bounds chat request bodies; images travel inline as data URLs.
const maxMessageBody = 2 << 20

// ChatHandler handles the group chat of a trip.
type ChatHandler struct {
	chatService core.ChatService
	hub         *realtime.TripWatchHub
	logger      *zap.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(cs core.ChatService, hub *realtime.TripWatchHub, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chatService: cs, hub: hub, logger: logger}
}

// ListMessages handles GET /trips/:tripId/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	messages, err := h.chatService.ListMessages(c.Request.Context(), *user, c.Param("tripId"))
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage handles POST /trips/:tripId/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMessageBody)
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	msg, err := h.chatService.SendMessage(c.Request.Context(), *user, c.Param("tripId"), req)
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// StreamMessages handles GET /trips/:tripId/messages/stream
func (h *ChatHandler) StreamMessages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	tripID := c.Param("tripId")
	if _, err := h.chatService.Authorize(c.Request.Context(), *user, tripID); err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	streamSubscription(c, h.hub.WatchMessages(tripID), func(messages []*models.ChatMessage) frame {
		if messages == nil {
			messages = []*models.ChatMessage{}
		}
		return frame{Event: "messages", Data: messages}
	})
}
