package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ImageSearch finds a representative photo for a place through the Unsplash search API.
type ImageSearch struct {
	fetcher
	baseURL   string
	accessKey string
}

// NewImageSearch creates an ImageSearch.
func NewImageSearch(baseURL, accessKey string, opts Options) *ImageSearch {
	return &ImageSearch{
		fetcher:   newFetcher("unsplash", opts),
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
	}
}

type unsplashSearch struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// PhotoURL returns the regular size URL of the first search result.
func (s *ImageSearch) PhotoURL(ctx context.Context, query string) (string, error) {
	if s.accessKey == "" {
		return "", fmt.Errorf("unsplash: %w", ErrNotConfigured)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("photo search: %w", ErrNoResult)
	}

	key := s.cacheKey(query)
	var photo string
	if s.cached(ctx, key, &photo) {
		return photo, nil
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("client_id", s.accessKey)

	var res unsplashSearch
	if err := s.getJSON(ctx, s.baseURL+"/search/photos?"+q.Encode(), &res); err != nil {
		return "", err
	}
	if len(res.Results) == 0 || res.Results[0].URLs.Regular == "" {
		return "", fmt.Errorf("photo search %q: %w", query, ErrNoResult)
	}
	photo = res.Results[0].URLs.Regular
	s.store(ctx, key, photo)
	return photo, nil
}
