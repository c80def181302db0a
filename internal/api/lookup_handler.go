package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/lookup"
	"github.com/example/tripplanner/internal/models"
)

// PlaceSearcher suggests destinations. Implemented by lookup.Geocoder.
type PlaceSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Location, error)
}

// PhotoFinder finds a destination photo. Implemented by lookup.ImageSearch.
type PhotoFinder interface {
	PhotoURL(ctx context.Context, query string) (string, error)
}

// LookupHandler proxies the destination autocomplete and photo lookups so API keys stay on
// the server.
type LookupHandler struct {
	places PlaceSearcher
	photos PhotoFinder
	logger *zap.Logger
}

// NewLookupHandler creates a new LookupHandler. A nil searcher or finder answers 503.
func NewLookupHandler(places PlaceSearcher, photos PhotoFinder, logger *zap.Logger) *LookupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupHandler{places: places, photos: photos, logger: logger}
}

func (h *LookupHandler) mapLookupErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	var statusErr *lookup.StatusError
	switch {
	case errors.Is(err, lookup.ErrNotConfigured):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: lookup.ErrNotConfigured.Error()}
	case errors.Is(err, lookup.ErrNoResult):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: lookup.ErrNoResult.Error()}
	case errors.As(err, &statusErr):
		h.logger.Warn("Lookup provider failed", zap.String("provider", statusErr.Provider), zap.Int("status", statusErr.StatusCode))
		statusCode = http.StatusBadGateway
		errResponse = ErrorResponse{Error: "Lookup provider failed", Details: statusErr.Provider}
	default:
		h.logger.Error("Lookup failed", zap.String("path", c.FullPath()), zap.Error(err))
		statusCode = http.StatusBadGateway
		errResponse = ErrorResponse{Error: "Lookup failed"}
	}
	c.JSON(statusCode, errResponse)
}

// SearchPlaces handles GET /lookup/places?q=&limit=
func (h *LookupHandler) SearchPlaces(c *gin.Context) {
	if h.places == nil {
		h.mapLookupErrorToStatus(c, lookup.ErrNotConfigured)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	places, err := h.places.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.mapLookupErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, PlacesResponse{Places: places})
}

// DestinationPhoto handles GET /lookup/photo?q=
func (h *LookupHandler) DestinationPhoto(c *gin.Context) {
	if h.photos == nil {
		h.mapLookupErrorToStatus(c, lookup.ErrNotConfigured)
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Query parameter q is required"})
		return
	}
	url, err := h.photos.PhotoURL(c.Request.Context(), query)
	if err != nil {
		h.mapLookupErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, PhotoResponse{URL: url})
}
