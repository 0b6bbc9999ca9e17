package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole gates a route on the role claim. It must run after a token
// guard, which is what puts the claims into the context.
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			for _, role := range allowed {
				if claims.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "not allowed to perform this action")
		}
	}
}
