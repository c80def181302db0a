package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/crypto"
	"github.com/example/tripplanner/internal/models"
	"github.com/example/tripplanner/pkg/cache"
)

const (
	sessionKeyPrefix = "session:"
	stateKeyPrefix   = "oauth_state:"
	stateTTL         = 10 * time.Minute
)

var (
	// ErrSessionNotFound is returned for unknown, expired or invalidated tokens.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidState is returned when an OAuth callback carries an unknown state.
	ErrInvalidState = errors.New("invalid oauth state")
)

// Session is the server-side record of a signed-in user. It is the single source of truth
// for "who is logged in" and is handed to request handlers explicitly.
type Session struct {
	Token       string      `json:"-"`
	User        models.User `json:"user"`
	AccessToken string      `json:"-"`
	Sealed      string      `json:"sealedAccessToken,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// InvalidateFunc is called after a session has been removed.
type InvalidateFunc func(Session)

// SessionManager stores sessions in the cache and notifies listeners on invalidation.
type SessionManager struct {
	store  cache.Cache
	sealer *crypto.Sealer
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	callbacks []InvalidateFunc
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(store cache.Cache, sealer *crypto.Sealer, ttl time.Duration, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{store: store, sealer: sealer, ttl: ttl, logger: logger, now: time.Now}
}

// OnInvalidate registers fn to run whenever a session is invalidated.
func (m *SessionManager) OnInvalidate(fn InvalidateFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Create stores a new session for user and returns it with a fresh random token.
func (m *SessionManager) Create(ctx context.Context, user models.User, accessToken string) (*Session, error) {
	now := m.now().UTC()
	s := &Session{
		Token:       uuid.NewString(),
		User:        user,
		AccessToken: accessToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if accessToken != "" {
		sealed, err := m.sealer.Seal(accessToken, user.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to seal access token: %w", err)
		}
		s.Sealed = sealed
	}
	if err := cache.SetJSON(ctx, m.store, sessionKeyPrefix+s.Token, s, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	m.logger.Info("Session created", zap.String("email", user.Email))
	return s, nil
}

// Get loads the session for token.
func (m *SessionManager) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	var s Session
	ok, err := cache.GetJSON(ctx, m.store, sessionKeyPrefix+token, &s)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok || m.now().After(s.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	s.Token = token
	if s.Sealed != "" {
		plain, err := m.sealer.Open(s.Sealed, s.User.Email)
		if err != nil {
			m.logger.Warn("Dropping session with unreadable access token", zap.String("email", s.User.Email), zap.Error(err))
			return nil, ErrSessionNotFound
		}
		s.AccessToken = plain
	}
	return &s, nil
}

// Invalidate removes the session and runs the registered callbacks.
// Invalidating an unknown token is not an error.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	s, err := m.Get(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, sessionKeyPrefix+token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.mu.RLock()
	callbacks := append([]InvalidateFunc(nil), m.callbacks...)
	m.mu.RUnlock()
	for _, fn := range callbacks {
		fn(*s)
	}
	m.logger.Info("Session invalidated", zap.String("email", s.User.Email))
	return nil
}

// NewState creates a single-use OAuth state value.
func (m *SessionManager) NewState(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := m.store.Set(ctx, stateKeyPrefix+state, "1", stateTTL); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return state, nil
}

// ConsumeState checks and deletes an OAuth state value.
func (m *SessionManager) ConsumeState(ctx context.Context, state string) error {
	if state == "" {
		return ErrInvalidState
	}
	_, ok, err := m.store.Get(ctx, stateKeyPrefix+state)
	if err != nil {
		return fmt.Errorf("failed to load oauth state: %w", err)
	}
	if !ok {
		return ErrInvalidState
	}
	return m.store.Delete(ctx, stateKeyPrefix+state)
}
