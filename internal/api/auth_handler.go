package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/example/tripplanner/internal/auth"
	"github.com/example/tripplanner/internal/middleware"
	"github.com/example/tripplanner/internal/models"
)

// IdentityProvider resolves Google credentials to a user. Implemented by auth.GoogleOAuthProvider.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.User, *oauth2.Token, error)
	FetchUserInfo(ctx context.Context, accessToken string) (*models.User, error)
}

// SessionService creates and ends sessions. Implemented by auth.SessionManager.
type SessionService interface {
	Create(ctx context.Context, user models.User, accessToken string) (*auth.Session, error)
	Invalidate(ctx context.Context, token string) error
	NewState(ctx context.Context) (string, error)
	ConsumeState(ctx context.Context, state string) error
}

// AuthHandler handles the Google sign-in endpoints.
type AuthHandler struct {
	provider  IdentityProvider
	sessions  SessionService
	clientURL string
	codeFlow  bool
	logger    *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. When codeFlow is false only the access token
// exchange of POST /auth/google is served. clientURL may list several origins; the first one
// receives the code flow redirect.
func NewAuthHandler(provider IdentityProvider, sessions SessionService, clientURL string, codeFlow bool, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		provider:  provider,
		sessions:  sessions,
		clientURL: strings.TrimRight(strings.TrimSpace(strings.Split(clientURL, ",")[0]), "/"),
		codeFlow:  codeFlow,
		logger:    logger,
	}
}

// mapAuthErrorToStatus maps errors from the identity provider and the session store.
func (h *AuthHandler) mapAuthErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.Is(err, auth.ErrInvalidAccessToken):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: "Google rejected the access token"}
	case errors.Is(err, auth.ErrInvalidState):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Sign-in expired, please try again"}
	case errors.As(err, &retrieveErr):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: "Google rejected the authorization code"}
	default:
		h.logger.Error("Authentication failed", zap.Error(err))
		statusCode = http.StatusBadGateway
		errResponse = ErrorResponse{Error: "Could not complete sign-in with Google"}
	}
	c.JSON(statusCode, errResponse)
}

// LoginWithAccessToken handles POST /auth/google. The browser completes the Google popup and
// sends the access token, which is checked against the userinfo endpoint.
func (h *AuthHandler) LoginWithAccessToken(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	user, err := h.provider.FetchUserInfo(c.Request.Context(), req.AccessToken)
	if err != nil {
		h.mapAuthErrorToStatus(c, err)
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), *user, req.AccessToken)
	if err != nil {
		h.logger.Error("Failed to create session", zap.String("email", user.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create session"})
		return
	}
	h.logger.Info("User signed in", zap.String("email", user.Email))
	c.JSON(http.StatusOK, AuthResponse{Token: session.Token, User: session.User, ExpiresAt: session.ExpiresAt})
}

// StartLogin handles GET /auth/google/login by redirecting to the Google consent page.
func (h *AuthHandler) StartLogin(c *gin.Context) {
	if !h.codeFlow {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Server-side Google sign-in is not enabled"})
		return
	}
	state, err := h.sessions.NewState(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to store OAuth state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to start sign-in"})
		return
	}
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// Callback handles GET /auth/google/callback. With a client URL configured the browser is sent
// back to the app with the session token in the fragment, otherwise the session is returned as JSON.
func (h *AuthHandler) Callback(c *gin.Context) {
	if !h.codeFlow {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Server-side Google sign-in is not enabled"})
		return
	}
	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Google sign-in was cancelled", Details: reason})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing authorization code"})
		return
	}

	ctx := c.Request.Context()
	if err := h.sessions.ConsumeState(ctx, c.Query("state")); err != nil {
		h.mapAuthErrorToStatus(c, err)
		return
	}
	user, token, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.mapAuthErrorToStatus(c, err)
		return
	}
	session, err := h.sessions.Create(ctx, *user, token.AccessToken)
	if err != nil {
		h.logger.Error("Failed to create session", zap.String("email", user.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to create session"})
		return
	}
	h.logger.Info("User signed in through code flow", zap.String("email", user.Email))

	if h.clientURL == "" {
		c.JSON(http.StatusOK, AuthResponse{Token: session.Token, User: session.User, ExpiresAt: session.ExpiresAt})
		return
	}
	fragment := url.Values{}
	fragment.Set("token", session.Token)
	c.Redirect(http.StatusFound, h.clientURL+"/auth/callback#"+fragment.Encode())
}

// Logout handles POST /auth/logout. Open event streams of the session are closed by the
// invalidation listeners of the session store.
func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Not signed in"})
		return
	}
	if session.Token != "" {
		if err := h.sessions.Invalidate(c.Request.Context(), session.Token); err != nil {
			h.logger.Error("Failed to invalidate session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to sign out"})
			return
		}
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Not signed in"})
		return
	}
	c.JSON(http.StatusOK, user)
}
