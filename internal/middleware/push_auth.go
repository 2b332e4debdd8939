package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"google.golang.org/api/idtoken"
)

// validateIDToken is swapped out in tests.
var validateIDToken = idtoken.Validate

// PushAuthMiddleware creates an Echo middleware that verifies the Google-signed
// OIDC token Pub/Sub and Eventarc attach to push requests.
func PushAuthMiddleware(audience string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
			}

			payload, err := validateIDToken(c.Request().Context(), tokenParts[1], audience)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("Invalid or expired push token: %v", err))
			}

			// Service account that signed the push
			if email, ok := payload.Claims["email"].(string); ok {
				c.Set("pushServiceAccount", email)
			}

			return next(c)
		}
	}
}
