package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/service"
)

// Context keys set by the middleware chain.
const (
	ContextUserID    = "userID"
	ContextUsername  = "username"
	ContextToken     = "token"
	ContextVerified  = "verified"
	ContextRequestID = "requestID"
)

// AuthMiddleware JWT authentication
type AuthMiddleware struct {
	authService service.AuthService
}

func NewAuthMiddleware(authService service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// RequireAuth rejects requests without a valid access token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			Abort(c, errors.New(errors.ErrAuthentication, "Missing access token."))
			return
		}

		claims, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			appErr, ok := err.(*errors.AppError)
			if !ok {
				appErr = errors.Wrap(err, errors.ErrTokenInvalid)
			}
			Abort(c, appErr)
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextToken, token)

		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := m.extractToken(c); token != "" {
			if claims, err := m.authService.ValidateToken(c.Request.Context(), token); err == nil {
				c.Set(ContextUserID, claims.UserID)
				c.Set(ContextUsername, claims.Username)
				c.Set(ContextToken, token)
			}
		}
		c.Next()
	}
}

// extractToken checks the Authorization header, the access_token cookie and
// the token query parameter, in that order. Browsers cannot set headers on a
// websocket upgrade, hence the query fallback.
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	if bearer := c.GetHeader("Authorization"); bearer != "" {
		parts := strings.SplitN(bearer, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}

	return c.Query("token")
}

// GetUserID returns the authenticated user id.
func GetUserID(c *gin.Context) (uint, bool) {
	if userID, exists := c.Get(ContextUserID); exists {
		if id, ok := userID.(uint); ok {
			return id, true
		}
	}
	return 0, false
}

func GetUsername(c *gin.Context) (string, bool) {
	if username, exists := c.Get(ContextUsername); exists {
		if name, ok := username.(string); ok {
			return name, true
		}
	}
	return "", false
}

// IsVerified reports whether the anti-forgery check passed for this request.
func IsVerified(c *gin.Context) bool {
	return c.GetBool(ContextVerified)
}

func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ContextUserID)
	return exists
}

// Abort writes the error body for err and stops the chain.
func Abort(c *gin.Context, err *errors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus(), errors.NewErrorResponse(err, GetRequestID(c)))
}
