package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/bookly/internal/hash"
	"github.com/Skotchmaster/bookly/internal/models"
	"github.com/Skotchmaster/bookly/internal/tokens"
)

func TestRegister(t *testing.T) {
	h := newAuthHandler(t)

	c, rec := jsonContext(t, http.MethodPost, "/registration", map[string]string{
		"username": "alice_books",
		"email":    "alice@example.com",
		"password": "Str0ng!Pass",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, "alice_books", resp.User.Username)
	require.Equal(t, "user", resp.User.Role)
	require.False(t, resp.User.IsLoggedIn)
	require.False(t, resp.User.IsVerified)
	require.NotEmpty(t, resp.User.ID)

	var stored models.User
	require.NoError(t, h.DB.Where("username = ?", "alice_books").First(&stored).Error)
	require.NotEqual(t, "Str0ng!Pass", stored.PasswordHash)
	require.True(t, hash.CheckPassword(stored.PasswordHash, "Str0ng!Pass"))
	require.NotEmpty(t, stored.APIKey)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newAuthHandler(t)
	seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	c, _ := jsonContext(t, http.MethodPost, "/registration", map[string]string{
		"username": "alice_books",
		"email":    "other@example.com",
		"password": "Str0ng!Pass",
	})
	requireHTTPError(t, h.Register(c), http.StatusConflict)

	c, _ = jsonContext(t, http.MethodPost, "/registration", map[string]string{
		"username": "someone_else",
		"email":    "alice@example.com",
		"password": "Str0ng!Pass",
	})
	requireHTTPError(t, h.Register(c), http.StatusConflict)

	// Neither attempt may have written a record.
	var count int64
	require.NoError(t, h.DB.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRegisterValidation(t *testing.T) {
	h := newAuthHandler(t)

	cases := []map[string]string{
		{"username": "short", "email": "a@example.com", "password": "Str0ng!Pass"},
		{"username": "alice_books", "email": "not-an-email", "password": "Str0ng!Pass"},
		{"username": "alice_books", "email": "a@example.com", "password": "weak"},
		{"username": "alice_books", "email": "a@example.com", "password": "alllowercase"},
	}
	for _, payload := range cases {
		c, _ := jsonContext(t, http.MethodPost, "/registration", payload)
		requireHTTPError(t, h.Register(c), http.StatusUnprocessableEntity)
	}

	var count int64
	require.NoError(t, h.DB.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestLogin(t *testing.T) {
	h := newAuthHandler(t)
	seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	form := url.Values{}
	form.Set("username", "alice_books")
	form.Set("password", "Str0ng!Pass")
	c, rec := formContext(t, http.MethodPost, "/user_login", form)

	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, "bearer", resp.TokenType)

	access, err := tokens.Verify(resp.AccessToken, testSecret)
	require.NoError(t, err)
	require.False(t, access.Refresh)
	require.Equal(t, "alice@example.com", access.Email)

	refresh, err := tokens.Verify(resp.RefreshToken, testSecret)
	require.NoError(t, err)
	require.True(t, refresh.Refresh)
	require.NotEqual(t, access.ID, refresh.ID)

	var stored models.User
	require.NoError(t, h.DB.Where("username = ?", "alice_books").First(&stored).Error)
	require.True(t, stored.IsLoggedIn)
	require.NotNil(t, stored.LastLoginAt)
}

func TestLoginByEmail(t *testing.T) {
	h := newAuthHandler(t)
	seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	form := url.Values{}
	form.Set("username", "alice@example.com")
	form.Set("password", "Str0ng!Pass")
	c, rec := formContext(t, http.MethodPost, "/user_login", form)

	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newAuthHandler(t)
	seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	form := url.Values{}
	form.Set("username", "alice_books")
	form.Set("password", "wrong-password")
	c, _ := formContext(t, http.MethodPost, "/user_login", form)
	requireHTTPError(t, h.Login(c), http.StatusForbidden)

	form.Set("username", "nobody")
	form.Set("password", "Str0ng!Pass")
	c, _ = formContext(t, http.MethodPost, "/user_login", form)
	requireHTTPError(t, h.Login(c), http.StatusForbidden)
}

func TestMe(t *testing.T) {
	h := newAuthHandler(t)
	user := seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	c, rec := jsonContext(t, http.MethodGet, "/me", nil)
	setClaims(c, claimsFor(user))

	require.NoError(t, h.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.User
	decodeBody(t, rec, &resp)
	require.Equal(t, user.ID, resp.ID)
	// The hash must never leave the service.
	require.NotContains(t, rec.Body.String(), user.PasswordHash)
}

func TestLogoutRevokesJTI(t *testing.T) {
	h := newAuthHandler(t)
	user := seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	claims := claimsFor(user)
	claims.ID = "jti-logout"
	c, rec := jsonContext(t, http.MethodGet, "/logout", nil)
	setClaims(c, claims)

	require.NoError(t, h.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	revoked, err := h.Blocklist.Contains(t.Context(), "jti-logout")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestRefreshTokenRotates(t *testing.T) {
	h := newAuthHandler(t)
	user := seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")
	require.NoError(t, h.DB.Model(user).Update("is_logged_in", true).Error)

	claims := claimsFor(user)
	claims.ID = "jti-refresh"
	c, rec := jsonContext(t, http.MethodGet, "/refresh_token", nil)
	setClaims(c, claims)

	require.NoError(t, h.RefreshToken(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	// The spent refresh token is blocklisted.
	revoked, err := h.Blocklist.Contains(t.Context(), "jti-refresh")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestRefreshTokenRequiresLoggedInUser(t *testing.T) {
	h := newAuthHandler(t)
	user := seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	claims := claimsFor(user)
	c, _ := jsonContext(t, http.MethodGet, "/refresh_token", nil)
	setClaims(c, claims)
	requireHTTPError(t, h.RefreshToken(c), http.StatusForbidden)

	// Identity embedded in the token must match the stored principal.
	require.NoError(t, h.DB.Model(user).Update("is_logged_in", true).Error)
	claims.Email = "other@example.com"
	c, _ = jsonContext(t, http.MethodGet, "/refresh_token", nil)
	setClaims(c, claims)
	requireHTTPError(t, h.RefreshToken(c), http.StatusForbidden)
}

func TestPasswordResetRequest(t *testing.T) {
	h := newAuthHandler(t)
	seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	c, rec := jsonContext(t, http.MethodPost, "/password_reset_request", map[string]string{
		"email": "alice@example.com",
	})
	require.NoError(t, h.PasswordResetRequest(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.User
	require.NoError(t, h.DB.Where("email = ?", "alice@example.com").First(&stored).Error)
	require.NotNil(t, stored.PasswordResetRequestAt)
}

func TestPasswordResetRequestUnknownEmail(t *testing.T) {
	h := newAuthHandler(t)

	c, _ := jsonContext(t, http.MethodPost, "/password_reset_request", map[string]string{
		"email": "nobody@example.com",
	})
	requireHTTPError(t, h.PasswordResetRequest(c), http.StatusNotFound)
}

func TestResetPassword(t *testing.T) {
	h := newAuthHandler(t)
	user := seedUser(t, h.DB, "alice_books", "alice@example.com", "Str0ng!Pass", "user")

	resetToken, err := tokens.Issue(user.ID, user.Email, user.Role, resetTokenLifetime, false, testSecret)
	require.NoError(t, err)

	c, rec := jsonContext(t, http.MethodPatch, "/reset_password?token="+resetToken, map[string]string{
		"password": "N3w!Password",
	})
	require.NoError(t, h.ResetPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.User
	require.NoError(t, h.DB.Where("id = ?", user.ID).First(&stored).Error)
	require.True(t, hash.CheckPassword(stored.PasswordHash, "N3w!Password"))
	require.False(t, hash.CheckPassword(stored.PasswordHash, "Str0ng!Pass"))
	require.NotNil(t, stored.PasswordResetAt)
}

func TestResetPasswordBadToken(t *testing.T) {
	h := newAuthHandler(t)

	c, _ := jsonContext(t, http.MethodPatch, "/reset_password?token=garbage", map[string]string{
		"password": "N3w!Password",
	})
	requireHTTPError(t, h.ResetPassword(c), http.StatusForbidden)
}
