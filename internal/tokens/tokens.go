package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RefreshLifetime is the fixed lifetime of refresh tokens and the longest
// any issued token can live. Blocklist entries expire after this long.
const RefreshLifetime = 48 * time.Hour

type Claims struct {
	jwt.RegisteredClaims
	UserID  string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Refresh bool   `json:"refresh"`
}

// Issue signs a token for the user with a fresh jti. Access and refresh
// tokens share the encoding and differ only in the refresh claim.
func Issue(userID, email, role string, lifetime time.Duration, refresh bool, secret []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  userID,
		Email:   email,
		Role:    role,
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Verify checks signature and expiry. A verified token is not yet trusted:
// callers must still look the jti up in the blocklist.
func Verify(tokenStr string, secret []byte) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil || !tkn.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("token jti missing")
	}
	return &claims, nil
}

// Decode extracts claims without checking the signature. Only for pulling
// the jti out of a token whose validity was already established.
func Decode(tokenStr string) *Claims {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return nil
	}
	return &claims
}
