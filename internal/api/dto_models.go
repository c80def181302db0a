package api

import (
	"time"

	"github.com/example/tripplanner/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A high-level error message or code
	Details string `json:"details,omitempty"` // More specific details about the error, if available
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// GoogleLoginRequest carries a Google access token obtained by the browser.
type GoogleLoginRequest struct {
	AccessToken string `json:"accessToken" binding:"required"`
}

// AuthResponse is returned when a session is created.
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// UnreadCountResponse is returned by GET /notifications/unread-count.
type UnreadCountResponse struct {
	UnreadCount int `json:"unreadCount"`
}

// MarkAllReadResponse is returned by POST /notifications/read-all.
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

// PlacesResponse is returned by GET /lookup/places.
type PlacesResponse struct {
	Places []models.Location `json:"places"`
}

// PhotoResponse is returned by GET /lookup/photo.
type PhotoResponse struct {
	URL string `json:"url"`
}

// WeatherCheckResponse is returned by POST /trips/:tripId/weather/check. Notification is the
// stored alert, or the unread one already reported, and is nil when the forecast has no alert.
type WeatherCheckResponse struct {
	Report       *models.WeatherReport `json:"report"`
	Notification *models.Notification  `json:"notification,omitempty"`
}
