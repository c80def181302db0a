package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/core"
	"github.com/example/tripplanner/internal/lookup"
	"github.com/example/tripplanner/internal/middleware"
	"github.com/example/tripplanner/internal/models"
	"github.com/example/tripplanner/internal/realtime"
)

// TripHandler handles API endpoints related to trips.
type TripHandler struct {
	tripService core.TripService
	hub         *realtime.TripWatchHub
	logger      *zap.Logger
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(ts core.TripService, hub *realtime.TripWatchHub, logger *zap.Logger) *TripHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TripHandler{tripService: ts, hub: hub, logger: logger}
}

// mapTripErrorToStatus maps errors from the trip, chat and weather services to HTTP status codes.
func mapTripErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrTripNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrTripNotFound.Error()}
	case errors.Is(err, core.ErrTripForbidden):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrTripForbidden.Error()}
	case errors.Is(err, core.ErrNotTripOwner):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrNotTripOwner.Error()}
	case errors.Is(err, core.ErrTripNotPublic):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrTripNotPublic.Error()}
	case errors.Is(err, core.ErrNotTripMember):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrNotTripMember.Error()}
	case errors.Is(err, core.ErrOwnerCannotJoin):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrOwnerCannotJoin.Error()}
	case errors.Is(err, core.ErrInvalidTripRequest):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Validation failed", Details: err.Error()}
	case errors.Is(err, core.ErrNotesTooLong):
		statusCode = http.StatusRequestEntityTooLarge
		errResponse = ErrorResponse{Error: core.ErrNotesTooLong.Error()}
	case errors.Is(err, core.ErrEmptyMessage), errors.Is(err, core.ErrMessageTooLong), errors.Is(err, core.ErrInvalidImageURL):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: err.Error()}
	case errors.Is(err, core.ErrImageTooLarge):
		statusCode = http.StatusRequestEntityTooLarge
		errResponse = ErrorResponse{Error: core.ErrImageTooLarge.Error()}
	case errors.Is(err, core.ErrItineraryGeneration):
		logger.Warn("Itinerary generation failed", zap.Error(err))
		statusCode = http.StatusBadGateway
		errResponse = ErrorResponse{Error: "Failed to generate the itinerary, please try again"}
	case errors.Is(err, core.ErrWeatherUnavailable):
		statusCode = http.StatusUnprocessableEntity
		errResponse = ErrorResponse{Error: core.ErrWeatherUnavailable.Error()}
	case errors.Is(err, lookup.ErrNotConfigured):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: lookup.ErrNotConfigured.Error()}
	case errors.Is(err, lookup.ErrNoResult):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: lookup.ErrNoResult.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusGatewayTimeout
		errResponse = ErrorResponse{Error: "The request timed out"}
	default:
		logger.Error("Internal Server Error", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// requireUser returns the signed-in user or answers 401.
func requireUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return nil, false
	}
	return user, true
}

// CreateTrip handles POST /trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	trip, err := h.tripService.CreateTrip(c.Request.Context(), *user, req)
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

// ListMyTrips handles GET /trips
func (h *TripHandler) ListMyTrips(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	trips, err := h.tripService.ListMyTrips(c.Request.Context(), *user)
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// ListGroupTrips handles GET /trips/group
func (h *TripHandler) ListGroupTrips(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	trips, err := h.tripService.ListGroupTrips(c.Request.Context(), *user)
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// ListPublicTrips handles GET /public-trips
func (h *TripHandler) ListPublicTrips(c *gin.Context) {
	trips, err := h.tripService.ListPublicTrips(c.Request.Context())
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// StreamPublicTrips handles GET /public-trips/stream
func (h *TripHandler) StreamPublicTrips(c *gin.Context) {
	streamSubscription(c, h.hub.WatchPublic(), func(trips []*models.Trip) frame {
		if trips == nil {
			trips = []*models.Trip{}
		}
		return frame{Event: "trips", Data: trips}
	})
}

// GetTrip handles GET /trips/:tripId
func (h *TripHandler) GetTrip(c *gin.Context) {
	viewer, _ := middleware.CurrentUser(c)
	trip, err := h.tripService.GetTrip(c.Request.Context(), viewer, c.Param("tripId"))
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// StreamTrip handles GET /trips/:tripId/stream. The stream ends when the trip is deleted or
// stops being visible to the viewer.
func (h *TripHandler) StreamTrip(c *gin.Context) {
	viewer, _ := middleware.CurrentUser(c)
	tripID := c.Param("tripId")
	if _, err := h.tripService.GetTrip(c.Request.Context(), viewer, tripID); err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}

	streamSubscription(c, h.hub.WatchTrip(tripID), func(trip *models.Trip) frame {
		if trip == nil {
			return frame{Event: "deleted", Data: gin.H{"id": tripID}, Last: true}
		}
		if !trip.IsPublic && (viewer == nil || !trip.CanAccess(viewer.Email)) {
			return frame{Event: "forbidden", Data: ErrorResponse{Error: core.ErrTripForbidden.Error()}, Last: true}
		}
		return frame{Event: "trip", Data: *trip}
	})
}

// ToggleVisibility handles PATCH /trips/:tripId/visibility
func (h *TripHandler) ToggleVisibility(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	trip, err := h.tripService.ToggleVisibility(c.Request.Context(), *user, c.Param("tripId"))
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// SaveNotes handles PUT /trips/:tripId/notes
func (h *TripHandler) SaveNotes(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	trip, err := h.tripService.SaveNotes(c.Request.Context(), *user, c.Param("tripId"), req.Notes)
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// DeleteTrip handles DELETE /trips/:tripId
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.tripService.DeleteTrip(c.Request.Context(), *user, c.Param("tripId")); err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// JoinTrip handles POST /trips/:tripId/join
func (h *TripHandler) JoinTrip(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	trip, err := h.tripService.JoinTrip(c.Request.Context(), *user, c.Param("tripId"))
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// LeaveTrip handles POST /trips/:tripId/leave
func (h *TripHandler) LeaveTrip(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	trip, err := h.tripService.LeaveTrip(c.Request.Context(), *user, c.Param("tripId"))
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// ExportTrip handles GET /trips/:tripId/export. ?download=1 asks the browser to save the page.
func (h *TripHandler) ExportTrip(c *gin.Context) {
	viewer, _ := middleware.CurrentUser(c)
	tripID := c.Param("tripId")
	page, err := h.tripService.ExportTrip(c.Request.Context(), viewer, tripID)
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	disposition := "inline"
	if c.Query("download") != "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition+`; filename="trip-`+tripID+`.html"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// EstimateCost handles POST /trips/:tripId/cost. The body is optional. A model answer that
// could not be read is reported with success=false and status 502.
func (h *TripHandler) EstimateCost(c *gin.Context) {
	viewer, _ := middleware.CurrentUser(c)
	var req models.CostEstimateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
			return
		}
	}
	resp, err := h.tripService.EstimateCost(c.Request.Context(), viewer, c.Param("tripId"), req)
	if err != nil {
		mapTripErrorToStatus(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, resp)
}
