package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/rentalmarket/booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the caller's marketplace credentials. The token is passed on
// to the marketplace, which remains the authority on its validity.
type UserContext struct {
	UserID string `json:"user_id"`
	Scope  string `json:"scope"`
	Token  string `json:"-"`
}

// AuthMiddleware requires a marketplace user token. The token is only inspected
// here; expired or unreadable tokens are turned away before any marketplace call.
// The signature is checked by the marketplace on the first call made with the
// token, so UserID is a hint for logging and never grants access on its own.
func AuthMiddleware(inspector *jwt.Inspector, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields := logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.WithFields(fields).Warn("Auth failed: missing authorization header")
			abortUnauthorized(c, "unauthorized", "Authorization header is required")
			return
		}

		// Check Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			logger.WithFields(fields).Warn("Auth failed: invalid authorization header format")
			abortUnauthorized(c, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			logger.WithFields(fields).Warn("Auth failed: empty token")
			abortUnauthorized(c, "unauthorized", "Token cannot be empty")
			return
		}

		claims, err := inspector.Inspect(tokenString)
		if err != nil {
			fields["error"] = err.Error()
			if errors.Is(err, jwt.ErrExpired) {
				logger.WithFields(fields).Warn("Auth failed: token expired")
				abortUnauthorized(c, "token_expired", "Access token has expired. Please refresh your token.")
			} else {
				logger.WithFields(fields).Warn("Auth failed: invalid token")
				abortUnauthorized(c, "invalid_token", "Invalid access token")
			}
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID: claims.Subject,
			Scope:  claims.Scope,
			Token:  tokenString,
		})

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorEnvelope(http.StatusUnauthorized, code, message))
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}
