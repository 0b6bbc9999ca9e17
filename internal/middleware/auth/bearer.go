package auth

import (
	"net/http"
	"strings"

	"github.com/Skotchmaster/bookly/internal/blocklist"
	"github.com/Skotchmaster/bookly/internal/tokens"
	"github.com/labstack/echo/v4"
)

const claimsKey = "claims"

type TokenGuard struct {
	Secret    []byte
	Blocklist *blocklist.Blocklist
}

func NewTokenGuard(secret []byte, bl *blocklist.Blocklist) *TokenGuard {
	return &TokenGuard{Secret: secret, Blocklist: bl}
}

// AccessToken admits only access tokens, RefreshToken only refresh tokens.
// Both run the same checks: bearer extraction, signature and expiry,
// blocklist lookup, then the token kind.
func (g *TokenGuard) AccessToken() echo.MiddlewareFunc {
	return g.require(false)
}

func (g *TokenGuard) RefreshToken() echo.MiddlewareFunc {
	return g.require(true)
}

func (g *TokenGuard) require(refresh bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}

			claims, err := tokens.Verify(raw, g.Secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "token invalid or expired")
			}

			revoked, err := g.Blocklist.Contains(c.Request().Context(), claims.ID)
			if err != nil {
				c.Logger().Errorf("blocklist lookup error: %v", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}
			if revoked {
				return echo.NewHTTPError(http.StatusForbidden, "token invalid or revoked")
			}

			if claims.Refresh != refresh {
				return echo.NewHTTPError(http.StatusForbidden, "wrong token type")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by a passed guard, nil otherwise.
func ClaimsFrom(c echo.Context) *tokens.Claims {
	claims, _ := c.Get(claimsKey).(*tokens.Claims)
	return claims
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}
