package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookly/internal/logging"
	mwauth "github.com/Skotchmaster/bookly/internal/middleware/auth"
	"github.com/Skotchmaster/bookly/internal/models"
	"github.com/Skotchmaster/bookly/internal/mykafka"
	"github.com/Skotchmaster/bookly/internal/service/search"
	"github.com/Skotchmaster/bookly/internal/tokens"
)

type BookHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
}

// orderColumns whitelists sortable columns; anything else falls back to
// created_at so the order_by query param can't reach the SQL layer raw.
var orderColumns = map[string]bool{
	"created_at":   true,
	"published_at": true,
	"deleted_at":   true,
	"updated_at":   true,
	"title":        true,
}

func orderBy(c echo.Context, def string) string {
	col := c.QueryParam("order_by")
	if !orderColumns[col] {
		col = def
	}
	return col + " DESC"
}

func limitParam(c echo.Context) int {
	return parseIntDefault(c.QueryParam("limit"), 10)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	var v int
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		v = v*10 + int(r-'0')
	}
	if v <= 0 || v > 100 {
		return def
	}
	return v
}

func (h *BookHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "book_events", key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// fetchActive loads a book that has not been soft deleted. The existence and
// delete-state checks always run before any ownership check or mutation.
func (h *BookHandler) fetchActive(id string) (*models.Book, error) {
	var book models.Book
	err := h.DB.Where("id = ? AND delete_status = ?", id, false).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// canAct applies the ownership policy: the publisher may act on their own
// book, an admin may act on anyone's.
func canAct(claims *tokens.Claims, book *models.Book) bool {
	return claims.UserID == book.PublisherUserID || claims.Role == "admin"
}

// adminOverride is true when an admin acts on a book they do not own; only
// that path stamps the *_by_admin audit fields.
func adminOverride(claims *tokens.Claims, book *models.Book) bool {
	return claims.Role == "admin" && claims.UserID != book.PublisherUserID
}

// saveAndReload persists the mutated book and re-reads it. A write that
// touches no row is treated as "already in the target state" and the reload
// result is returned as-is rather than failing the request.
func (h *BookHandler) saveAndReload(c echo.Context, book *models.Book) (*models.Book, error) {
	res := h.DB.Save(book)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		c.Logger().Warnf("book %s: expected 1 row affected, got %d", book.ID, res.RowsAffected)
	}

	var reloaded models.Book
	if err := h.DB.Where("id = ?", book.ID).First(&reloaded).Error; err != nil {
		return nil, err
	}
	return &reloaded, nil
}

func (h *BookHandler) indexSearch(c echo.Context, book *models.Book) {
	if h.ES == nil {
		return
	}
	if err := search.IndexBook(c.Request().Context(), h.ES, book); err != nil {
		c.Logger().Errorf("search index error: %v", err)
	}
}

func (h *BookHandler) removeFromSearch(c echo.Context, id string) {
	if h.ES == nil {
		return
	}
	if err := search.RemoveBook(c.Request().Context(), h.ES, id); err != nil {
		c.Logger().Errorf("search remove error: %v", err)
	}
}

// List returns the caller's own books; admins see everyone's.
func (h *BookHandler) List(c echo.Context) error {
	claims := mwauth.ClaimsFrom(c)

	query := h.DB.Model(&models.Book{}).Where("delete_status = ?", false)
	if claims.Role != "admin" {
		query = query.Where("publisher_user_id = ?", claims.UserID)
	}

	var books []models.Book
	if err := query.Order(orderBy(c, "created_at")).Limit(limitParam(c)).Find(&books).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, books)
}

func (h *BookHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "book_create")
	claims := mwauth.ClaimsFrom(c)

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		AuthorName  string `json:"author_name"`
		Publisher   string `json:"publisher"`
		ReleasedAt  string `json:"released_at"`
		PageCount   int    `json:"page_count"`
		Language    string `json:"language"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" || req.Description == "" || req.AuthorName == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "title, description and author_name are required")
	}

	book := models.Book{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		AuthorName:      req.AuthorName,
		Publisher:       req.Publisher,
		ReleasedAt:      req.ReleasedAt,
		PageCount:       req.PageCount,
		Language:        req.Language,
		PublisherUserID: claims.UserID,
		Status:          false,
		DeleteStatus:    false,
	}
	if err := h.DB.Create(&book).Error; err != nil {
		l.Error("book_create_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.publish(c, book.ID, map[string]interface{}{
		"type":    "book_created",
		"book_id": book.ID,
		"user_id": claims.UserID,
		"title":   book.Title,
	})

	return c.JSON(http.StatusCreated, book)
}

// GetBook reveals existence but not content to strangers: a non-owner
// non-admin gets 403, not 404.
func (h *BookHandler) GetBook(c echo.Context) error {
	claims := mwauth.ClaimsFrom(c)

	book, err := h.fetchActive(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "the book with this ID not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if !canAct(claims, book) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to perform this action")
	}

	return c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Published(c echo.Context) error {
	var books []models.Book
	err := h.DB.Where("status = ? AND delete_status = ?", true, false).
		Order(orderBy(c, "created_at")).Limit(limitParam(c)).Find(&books).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, books)
}

func (h *BookHandler) Unpublished(c echo.Context) error {
	claims := mwauth.ClaimsFrom(c)

	query := h.DB.Where("status = ? AND delete_status = ?", false, false)
	if claims.Role != "admin" {
		query = query.Where("publisher_user_id = ?", claims.UserID)
	}

	var books []models.Book
	if err := query.Order(orderBy(c, "created_at")).Limit(limitParam(c)).Find(&books).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, books)
}

// Deleted lists soft-deleted books. Admin-only route.
func (h *BookHandler) Deleted(c echo.Context) error {
	var books []models.Book
	err := h.DB.Where("delete_status = ?", true).
		Order(orderBy(c, "deleted_at")).Limit(limitParam(c)).Find(&books).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, books)
}

func (h *BookHandler) UserBooks(c echo.Context) error {
	claims := mwauth.ClaimsFrom(c)
	userID := c.Param("id")

	if claims.UserID != userID && claims.Role != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to perform this action")
	}

	var books []models.Book
	err := h.DB.Where("publisher_user_id = ?", userID).
		Order(orderBy(c, "created_at")).Limit(limitParam(c)).Find(&books).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	if len(books) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no books found for this user")
	}
	return c.JSON(http.StatusOK, books)
}

func (h *BookHandler) Publish(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "book_publish")
	claims := mwauth.ClaimsFrom(c)

	book, err := h.fetchActive(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "the book with this ID not found")
		}
		l.Error("book_publish_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if !canAct(claims, book) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to perform this action")
	}

	applyPublish(book, adminOverride(claims, book), time.Now())

	updated, err := h.saveAndReload(c, book)
	if err != nil {
		l.Error("book_publish_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.indexSearch(c, updated)
	h.publish(c, updated.ID, map[string]interface{}{
		"type":    "book_published",
		"book_id": updated.ID,
		"user_id": claims.UserID,
	})

	return c.JSON(http.StatusOK, updated)
}

func (h *BookHandler) Unpublish(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "book_unpublish")
	claims := mwauth.ClaimsFrom(c)

	book, err := h.fetchActive(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "the book with this ID not found")
		}
		l.Error("book_unpublish_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	if !book.Status {
		return echo.NewHTTPError(http.StatusNotFound, "the book with this ID is not published")
	}

	if !canAct(claims, book) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to perform this action")
	}

	applyUnpublish(book, adminOverride(claims, book), time.Now())

	updated, err := h.saveAndReload(c, book)
	if err != nil {
		l.Error("book_unpublish_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.removeFromSearch(c, updated.ID)
	h.publish(c, updated.ID, map[string]interface{}{
		"type":    "book_unpublished",
		"book_id": updated.ID,
		"user_id": claims.UserID,
	})

	return c.JSON(http.StatusOK, updated)
}

func (h *BookHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "book_update")
	claims := mwauth.ClaimsFrom(c)

	book, err := h.fetchActive(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "the book with this ID not found")
		}
		l.Error("book_update_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if !canAct(claims, book) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to perform this action")
	}

	var req bookUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.empty() {
		return c.JSON(http.StatusOK, book)
	}

	applyUpdate(book, &req, adminOverride(claims, book), time.Now())

	updated, err := h.saveAndReload(c, book)
	if err != nil {
		l.Error("book_update_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if updated.Status {
		h.indexSearch(c, updated)
	}
	h.publish(c, updated.ID, map[string]interface{}{
		"type":    "book_updated",
		"book_id": updated.ID,
		"user_id": claims.UserID,
	})

	return c.JSON(http.StatusOK, updated)
}

// SoftDelete marks the book deleted, which blocks every further mutation
// except hard delete.
func (h *BookHandler) SoftDelete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "book_delete")
	claims := mwauth.ClaimsFrom(c)

	book, err := h.fetchActive(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "the book with this ID not found")
		}
		l.Error("book_delete_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if !canAct(claims, book) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to perform this action")
	}

	applySoftDelete(book, adminOverride(claims, book), time.Now())

	updated, err := h.saveAndReload(c, book)
	if err != nil {
		l.Error("book_delete_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.removeFromSearch(c, updated.ID)
	h.publish(c, updated.ID, map[string]interface{}{
		"type":    "book_deleted",
		"book_id": updated.ID,
		"user_id": claims.UserID,
	})

	return c.JSON(http.StatusOK, updated)
}

// HardDelete physically removes the record. Works on soft-deleted books too;
// the route is admin-only.
func (h *BookHandler) HardDelete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "book_hard_delete")
	id := c.Param("id")

	var book models.Book
	if err := h.DB.Where("id = ?", id).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "the book with this ID not found")
		}
		l.Error("book_hard_delete_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if err := h.DB.Delete(&models.Book{}, "id = ?", id).Error; err != nil {
		l.Error("book_hard_delete_error", "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.removeFromSearch(c, id)
	h.publish(c, id, map[string]interface{}{
		"type":    "book_hard_deleted",
		"book_id": id,
	})

	return c.NoContent(http.StatusNoContent)
}
