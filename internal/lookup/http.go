// Package lookup wraps the third-party HTTP services used around a trip:
// geocoding, destination photos and weather forecasts.
package lookup

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/tripplanner/pkg/cache"
)

// ErrNotConfigured is returned when the API key of a provider is missing.
var ErrNotConfigured = errors.New("lookup provider is not configured")

// ErrNoResult is returned when a provider answered but found nothing.
var ErrNoResult = errors.New("no result found")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

const maxErrorBody = 512

// Options are shared by every lookup client.
type Options struct {
	HTTPClient *http.Client
	UserAgent  string
	// Cache stores successful responses for CacheTTL. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration
	// Limiter throttles outbound calls. Nil disables throttling.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// fetcher holds the plumbing common to the provider clients.
type fetcher struct {
	provider   string
	httpClient *http.Client
	userAgent  string
	cache      cache.Cache
	cacheTTL   time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func newFetcher(provider string, opts Options) fetcher {
	f := fetcher{
		provider:   provider,
		httpClient: opts.HTTPClient,
		userAgent:  opts.UserAgent,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// cacheKey hashes the request so API keys never end up in Redis keys.
func (f fetcher) cacheKey(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		_, _ = io.WriteString(h, p)
		_, _ = h.Write([]byte{0})
	}
	return "lookup:" + f.provider + ":" + hex.EncodeToString(h.Sum(nil))
}

// cached returns true when dst was filled from the cache. Cache errors only get logged.
func (f fetcher) cached(ctx context.Context, key string, dst interface{}) bool {
	if f.cache == nil {
		return false
	}
	ok, err := cache.GetJSON(ctx, f.cache, key, dst)
	if err != nil {
		f.logger.Warn("Lookup cache read failed", zap.String("provider", f.provider), zap.Error(err))
		return false
	}
	return ok
}

func (f fetcher) store(ctx context.Context, key string, value interface{}) {
	if f.cache == nil || f.cacheTTL <= 0 {
		return
	}
	if err := cache.SetJSON(ctx, f.cache, key, value, f.cacheTTL); err != nil {
		f.logger.Warn("Lookup cache write failed", zap.String("provider", f.provider), zap.Error(err))
	}
}

// getJSON performs a GET and decodes the JSON body into dst.
func (f fetcher) getJSON(ctx context.Context, rawURL string, dst interface{}) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limiter: %w", f.provider, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", f.provider, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Error("Lookup request failed", zap.String("provider", f.provider), zap.Error(err))
		return fmt.Errorf("%s request failed: %w", f.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		f.logger.Error("Lookup returned an error status",
			zap.String("provider", f.provider),
			zap.Int("status", resp.StatusCode))
		return &StatusError{Provider: f.provider, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", f.provider, err)
	}
	return nil
}
