package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/tripplanner/internal/auth"
	"github.com/example/tripplanner/internal/models"
)

// Context keys set by the auth middleware.
const (
	sessionKey = "session"
	userKey    = "user"
)

// ErrorResponse is a local definition for sending standardized error messages.
// It mirrors the one in internal/api/dto_models.go to avoid import cycles.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SessionStore resolves session tokens. Implemented by auth.SessionManager.
type SessionStore interface {
	Get(ctx context.Context, token string) (*auth.Session, error)
}

// IDTokenVerifier verifies Firebase ID tokens. Implemented by the Firebase auth client.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// AuthMiddleware resolves the bearer token of a request to the signed-in user.
type AuthMiddleware struct {
	sessions SessionStore
	firebase IDTokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance. firebase may be nil, in which case
// only server-side sessions are accepted.
func NewAuthMiddleware(sessions SessionStore, firebase IDTokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{sessions: sessions, firebase: firebase, logger: logger}
}

// bearerToken reads "Authorization: Bearer <token>". Event streams cannot set headers from the
// browser, so GET requests may pass the token as ?access_token= instead.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if c.Request.Method == http.MethodGet {
			if token := c.Query("access_token"); token != "" {
				return token, true
			}
		}
		return "", false
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// resolve turns a token into a session. Firebase ID tokens are wrapped into a transient
// session that carries no token of its own.
func (m *AuthMiddleware) resolve(ctx context.Context, token string) (*auth.Session, error) {
	session, err := m.sessions.Get(ctx, token)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, auth.ErrSessionNotFound) || m.firebase == nil {
		return nil, err
	}

	idToken, verr := m.firebase.VerifyIDToken(ctx, token)
	if verr != nil {
		m.logger.Debug("Token is neither a session nor a Firebase ID token", zap.Error(verr))
		return nil, auth.ErrSessionNotFound
	}
	user := models.User{ID: idToken.UID}
	if email, ok := idToken.Claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := idToken.Claims["name"].(string); ok {
		user.Name = name
	}
	if picture, ok := idToken.Claims["picture"].(string); ok {
		user.Picture = picture
	}
	if verified, ok := idToken.Claims["email_verified"].(bool); ok {
		user.VerifiedEmail = verified
	}
	if user.Email == "" {
		return nil, auth.ErrSessionNotFound
	}
	return &auth.Session{User: user}, nil
}

// RequireSession rejects requests without a valid session with 401.
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}
		session, err := m.resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionNotFound) {
				m.logger.Error("Failed to load session", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load session"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}
		setSession(c, session)
		c.Next()
	}
}

// OptionalSession attaches the session when a valid token is present and lets every request through.
func (m *AuthMiddleware) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if session, err := m.resolve(c.Request.Context(), token); err == nil {
				setSession(c, session)
			}
		}
		c.Next()
	}
}

func setSession(c *gin.Context, session *auth.Session) {
	c.Set(sessionKey, session)
	user := session.User
	c.Set(userKey, &user)
}

// CurrentUser returns the signed-in user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// CurrentSession returns the session of the request, if any.
func CurrentSession(c *gin.Context) (*auth.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*auth.Session)
	return session, ok
}
