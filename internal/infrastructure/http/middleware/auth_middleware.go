package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cddm-gh/audio-sphere-switcher/pkg/jwt"
)

const (
	// UserIDContextKey is the echo context key for the authenticated user id
	UserIDContextKey = "user_id"
	// AccessTokenContextKey is the echo context key for the raw bearer
	// token, kept so the upload gateway can forward the caller's
	// credential to the dispatch entry point.
	AccessTokenContextKey = "access_token"
)

// EchoAuth returns an Echo middleware that validates the bearer JWT and sets
// "user_id" (uuid.UUID) and "access_token" (string) into Echo context
func EchoAuth(manager *jwt.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization token")
			}

			claims, err := manager.ValidateAccessToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(UserIDContextKey, claims.UserID)
			c.Set(AccessTokenContextKey, token)

			return next(c)
		}
	}
}

// UserID retrieves the authenticated user id from echo context
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(UserIDContextKey).(uuid.UUID)
	return id, ok
}

// AccessToken retrieves the raw bearer token from echo context
func AccessToken(c echo.Context) string {
	token, _ := c.Get(AccessTokenContextKey).(string)
	return token
}

func extractToken(c echo.Context) string {
	// Try Authorization header first
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// Try cookie as fallback
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie.Value
	}

	return ""
}
