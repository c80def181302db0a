package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/models"
)

// MinQueryLength is the shortest query sent to the geocoder.
const MinQueryLength = 3

const defaultSuggestionLimit = 5

// Geocoder resolves place names through a Nominatim compatible search API.
type Geocoder struct {
	fetcher
	baseURL string
}

// NewGeocoder creates a Geocoder. Nominatim rejects requests without a User-Agent.
func NewGeocoder(baseURL string, opts Options) *Geocoder {
	if opts.UserAgent == "" {
		opts.UserAgent = "tripplanner/1.0"
	}
	return &Geocoder{fetcher: newFetcher("nominatim", opts), baseURL: strings.TrimRight(baseURL, "/")}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
}

// Search returns up to limit candidate places. Queries shorter than MinQueryLength return nothing.
func (g *Geocoder) Search(ctx context.Context, query string, limit int) ([]models.Location, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return []models.Location{}, nil
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}

	key := g.cacheKey(query, strconv.Itoa(limit))
	var out []models.Location
	if g.cached(ctx, key, &out) {
		return out, nil
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(limit))

	var places []nominatimPlace
	if err := g.getJSON(ctx, g.baseURL+"/search?"+q.Encode(), &places); err != nil {
		return nil, err
	}

	out = make([]models.Location, 0, len(places))
	for _, p := range places {
		loc, err := p.location()
		if err != nil {
			g.logger.Warn("Skipping place with invalid coordinates", zap.String("place", p.DisplayName), zap.Error(err))
			continue
		}
		out = append(out, loc)
	}
	g.store(ctx, key, out)
	return out, nil
}

// Geocode returns the best match for query, or ErrNoResult.
func (g *Geocoder) Geocode(ctx context.Context, query string) (*models.Location, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("geocode: %w", ErrNoResult)
	}
	places, err := g.Search(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("geocode %q: %w", query, ErrNoResult)
	}
	return &places[0], nil
}

func (p nominatimPlace) location() (models.Location, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("invalid latitude %q", p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("invalid longitude %q", p.Lon)
	}
	return models.Location{
		Label:       p.DisplayName,
		DisplayName: p.DisplayName,
		Lat:         lat,
		Lon:         lon,
	}, nil
}
