package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/core"
	"github.com/example/tripplanner/internal/middleware"
	"github.com/example/tripplanner/internal/realtime"
)

// NotificationHandler handles the notification endpoints of the signed-in user.
type NotificationHandler struct {
	notificationService core.NotificationService
	distributor         *realtime.NotificationDistributor
	logger              *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(ns core.NotificationService, distributor *realtime.NotificationDistributor, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{notificationService: ns, distributor: distributor, logger: logger}
}

func (h *NotificationHandler) mapNotificationErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrNotificationNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrNotificationNotFound.Error()}
	case errors.Is(err, core.ErrNotificationForbidden):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrNotificationForbidden.Error()}
	case errors.Is(err, core.ErrInvalidNotification):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrInvalidNotification.Error()}
	default:
		h.logger.Error("Internal Server Error", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// ListNotifications handles GET /notifications. ?unread=true limits the list to unread ones.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	list := h.notificationService.ListAll
	if unreadOnly {
		list = h.notificationService.ListUnread
	}
	notifications, err := list(c.Request.Context(), user.Email)
	if err != nil {
		h.mapNotificationErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// UnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	count, err := h.notificationService.UnreadCount(c.Request.Context(), user.Email)
	if err != nil {
		h.mapNotificationErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, UnreadCountResponse{UnreadCount: count})
}

// MarkRead handles PATCH /notifications/:notificationId/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), user.Email, c.Param("notificationId")); err != nil {
		h.mapNotificationErrorToStatus(c, err)
		return
	}
	h.distributor.Refresh(c.Request.Context(), user.Email)
	c.JSON(http.StatusOK, SuccessResponse{Message: "Notification marked as read"})
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), user.Email)
	if err != nil {
		h.mapNotificationErrorToStatus(c, err)
		return
	}
	if updated > 0 {
		h.distributor.Refresh(c.Request.Context(), user.Email)
	}
	c.JSON(http.StatusOK, MarkAllReadResponse{Updated: updated})
}

// StreamNotifications handles GET /notifications/stream. The stream shares one listener per
// recipient and is closed when the session it was opened with is invalidated.
func (h *NotificationHandler) StreamNotifications(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var sessionToken string
	if session, ok := middleware.CurrentSession(c); ok {
		sessionToken = session.Token
	}
	sub := h.distributor.Subscribe(user.Email, sessionToken)
	streamSubscription(c, sub, func(state realtime.NotificationState) frame {
		return frame{Event: "notifications", Data: state}
	})
}
