package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/core"
	"github.com/example/tripplanner/internal/middleware"
)

// WeatherHandler serves trip forecasts and weather alert checks.
type WeatherHandler struct {
	weatherService core.WeatherService
	logger         *zap.Logger
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(ws core.WeatherService, logger *zap.Logger) *WeatherHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherHandler{weatherService: ws, logger: logger}
}

// TripWeather handles GET /trips/:tripId/weather
func (h *WeatherHandler) TripWeather(c *gin.Context) {
	viewer, _ := middleware.CurrentUser(c)
	report, err := h.weatherService.TripWeather(c.Request.Context(), viewer, c.Param("tripId"))
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CheckTripWeather handles POST /trips/:tripId/weather/check
func (h *WeatherHandler) CheckTripWeather(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	report, notification, err := h.weatherService.CheckTripWeather(c.Request.Context(), *user, c.Param("tripId"))
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, WeatherCheckResponse{Report: report, Notification: notification})
}
