package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookly/internal/blocklist"
	"github.com/Skotchmaster/bookly/internal/hash"
	"github.com/Skotchmaster/bookly/internal/models"
	"github.com/Skotchmaster/bookly/internal/tokens"
)

var testSecret = []byte("test-secret")

func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Book{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestBlocklist(t *testing.T) *blocklist.Blocklist {
	mr := miniredis.RunT(t)
	return blocklist.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func newAuthHandler(t *testing.T) *AuthHandler {
	return &AuthHandler{
		DB:             InitTestDB(t),
		Secret:         testSecret,
		AccessLifetime: 15 * time.Minute,
		Blocklist:      newTestBlocklist(t),
		DomainName:     "localhost",
		Port:           "8080",
	}
}

func jsonContext(t *testing.T, method, target string, payload any) (echo.Context, *httptest.ResponseRecorder) {
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func formContext(t *testing.T, method, target string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func requireHTTPError(t *testing.T, err error, code int) {
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T", err)
	require.Equal(t, code, he.Code)
}

func seedUser(t *testing.T, db *gorm.DB, username, email, password, role string) *models.User {
	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedBook(t *testing.T, db *gorm.DB, ownerID string) *models.Book {
	book := &models.Book{
		ID:              uuid.NewString(),
		Title:           "The Go Programming Language",
		Description:     "A book about Go",
		AuthorName:      "Alan Donovan",
		Publisher:       "Addison-Wesley",
		PublisherUserID: ownerID,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

func claimsFor(user *models.User) *tokens.Claims {
	return &tokens.Claims{UserID: user.ID, Email: user.Email, Role: user.Role}
}

func setClaims(c echo.Context, claims *tokens.Claims) {
	c.Set("claims", claims)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
