package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookly/internal/blocklist"
	"github.com/Skotchmaster/bookly/internal/hash"
	"github.com/Skotchmaster/bookly/internal/logging"
	mwauth "github.com/Skotchmaster/bookly/internal/middleware/auth"
	"github.com/Skotchmaster/bookly/internal/models"
	"github.com/Skotchmaster/bookly/internal/mykafka"
	"github.com/Skotchmaster/bookly/internal/tokens"
)

// resetTokenLifetime bounds the window of a password reset link.
const resetTokenLifetime = 5 * time.Minute

type AuthHandler struct {
	DB             *gorm.DB
	Secret         []byte
	AccessLifetime time.Duration
	Blocklist      *blocklist.Blocklist
	Producer       *mykafka.Producer
	DomainName     string
	Port           string
}

var (
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasDigit   = regexp.MustCompile(`[0-9]`)
	hasSpecial = regexp.MustCompile(`[@$!%*?&_.\-]`)
)

func validPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	classes := 0
	for _, re := range []*regexp.Regexp{hasUpper, hasLower, hasDigit, hasSpecial} {
		if re.MatchString(password) {
			classes++
		}
	}
	return classes >= 3
}

func validEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username  string `json:"username" form:"username"`
		Email     string `json:"email" form:"email"`
		Password  string `json:"password" form:"password"`
		FirstName string `json:"first_name" form:"first_name"`
		LastName  string `json:"last_name" form:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if len(req.Username) < 6 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username length can't be under 6 characters")
	}
	if !validEmail(req.Email) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "email format is not valid")
	}
	if !validPassword(req.Password) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			"password must be at least 8 characters and mix letter cases, digits or special characters")
	}

	var existing models.User
	err := h.DB.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error
	if err == nil {
		if existing.Username == req.Username {
			return echo.NewHTTPError(http.StatusConflict, "username is already taken")
		}
		return echo.NewHTTPError(http.StatusConflict, "email is already taken")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         "user",
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		APIKey:       randomHex(30),
		IsLoggedIn:   false,
		IsVerified:   false,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		l.Error("register_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	// Confirmation mail is delivered by an external worker consuming this
	// topic; a lost event never rolls the registration back.
	h.publish(c, "user_events", user.ID, map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
		"name":    user.FullName(),
		"subject": "Registration successful",
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "account successfully created, a confirmation email has been sent",
		"user":    user,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" || password == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username and password are required")
	}

	var user models.User
	if err := h.DB.Where("username = ? OR email = ?", username, username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusForbidden, "invalid user credentials")
		}
		l.Error("login_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid user credentials")
	}

	accessToken, err := tokens.Issue(user.ID, user.Email, user.Role, h.AccessLifetime, false, h.Secret)
	if err != nil {
		l.Error("login_error", "reason", "token_issue", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	refreshToken, err := tokens.Issue(user.ID, user.Email, user.Role, tokens.RefreshLifetime, true, h.Secret)
	if err != nil {
		l.Error("login_error", "reason", "token_issue", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	now := time.Now()
	updates := map[string]interface{}{"is_logged_in": true, "last_login_at": now}
	if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
		l.Error("login_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.publish(c, "user_events", user.ID, map[string]interface{}{
		"type":    "user_logged_in",
		"user_id": user.ID,
		"email":   user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message":       "login successful",
		"token_type":    "bearer",
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user":          echo.Map{"id": user.ID, "email": user.Email},
	})
}

// RefreshToken swaps a valid refresh token for a new token pair and revokes
// the presented one, so each refresh token can only be spent once.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")
	claims := mwauth.ClaimsFrom(c)

	var user models.User
	if err := h.DB.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusForbidden, "not authorized to perform this action")
		}
		l.Error("refresh_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	if !user.IsLoggedIn || user.Email != claims.Email {
		return echo.NewHTTPError(http.StatusForbidden, "not authorized to perform this action")
	}

	accessToken, err := tokens.Issue(user.ID, user.Email, user.Role, h.AccessLifetime, false, h.Secret)
	if err != nil {
		l.Error("refresh_error", "reason", "token_issue", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	refreshToken, err := tokens.Issue(user.ID, user.Email, user.Role, tokens.RefreshLifetime, true, h.Secret)
	if err != nil {
		l.Error("refresh_error", "reason", "token_issue", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if err := h.Blocklist.Add(ctx, claims.ID); err != nil {
		l.Error("refresh_error", "reason", "blocklist", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

func (h *AuthHandler) Me(c echo.Context) error {
	claims := mwauth.ClaimsFrom(c)

	var user models.User
	if err := h.DB.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	claims := mwauth.ClaimsFrom(c)

	if err := h.Blocklist.Add(c.Request().Context(), claims.ID); err != nil {
		c.Logger().Errorf("blocklist error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

func (h *AuthHandler) PasswordResetRequest(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "password_reset_request")

	var req struct {
		Email string `json:"email" form:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !validEmail(req.Email) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "email format is not valid")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user with this email not found")
		}
		l.Error("reset_request_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	resetToken, err := tokens.Issue(user.ID, user.Email, user.Role, resetTokenLifetime, false, h.Secret)
	if err != nil {
		l.Error("reset_request_error", "reason", "token_issue", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	now := time.Now()
	if err := h.DB.Model(&user).Update("password_reset_request_at", now).Error; err != nil {
		l.Error("reset_request_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	resetLink := fmt.Sprintf("http://%s:%s/?token=%s", h.DomainName, h.Port, resetToken)
	h.publish(c, "user_events", user.ID, map[string]interface{}{
		"type":       "password_reset_requested",
		"user_id":    user.ID,
		"email":      user.Email,
		"name":       user.FullName(),
		"reset_link": resetLink,
		"subject":    "Password reset",
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "a password reset email has been sent"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reset_password")

	claims, err := tokens.Verify(c.QueryParam("token"), h.Secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, "token invalid or expired")
	}

	var req struct {
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !validPassword(req.Password) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			"password must be at least 8 characters and mix letter cases, digits or special characters")
	}

	var user models.User
	if err := h.DB.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		l.Error("reset_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("reset_error", "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	now := time.Now()
	updates := map[string]interface{}{"password_hash": pwHash, "password_reset_at": now}
	if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
		l.Error("reset_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	var updated models.User
	if err := h.DB.Where("id = ?", user.ID).First(&updated).Error; err != nil {
		l.Error("reset_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	loginLink := fmt.Sprintf("http://%s:%s/login", h.DomainName, h.Port)
	h.publish(c, "user_events", user.ID, map[string]interface{}{
		"type":       "password_changed",
		"user_id":    user.ID,
		"email":      user.Email,
		"name":       user.FullName(),
		"login_link": loginLink,
		"subject":    "Password changed",
	})

	return c.JSON(http.StatusOK, updated)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
