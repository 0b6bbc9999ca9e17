package handlers

import (
	"time"

	"github.com/Skotchmaster/bookly/internal/models"
)

// Mutation builders stamp state transitions onto a fetched book before it is
// saved. adminOverride is true only when an admin acts on somebody else's
// book; owners acting on their own records take the plain self-service path
// even when they happen to be admins.

func applyPublish(book *models.Book, adminOverride bool, now time.Time) {
	book.Status = true
	book.PublishedAt = &now
	if adminOverride {
		book.PublishedByAdmin = true
		book.PublishedByAdminAt = &now
	}
}

func applyUnpublish(book *models.Book, adminOverride bool, now time.Time) {
	book.Status = false
	book.UnpublishedAt = &now
	if adminOverride {
		book.UnpublishedByAdmin = true
		book.UnpublishedByAdminAt = &now
	}
}

func applySoftDelete(book *models.Book, adminOverride bool, now time.Time) {
	book.DeleteStatus = true
	book.DeletedAt = &now
	if adminOverride {
		book.DeletedByAdmin = true
		book.DeletedByAdminAt = &now
	}
}

type bookUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AuthorName  *string `json:"author_name"`
	Publisher   *string `json:"publisher"`
	ReleasedAt  *string `json:"released_at"`
	PageCount   *int    `json:"page_count"`
	Language    *string `json:"language"`
}

func (u *bookUpdate) empty() bool {
	return u.Title == nil && u.Description == nil && u.AuthorName == nil &&
		u.Publisher == nil && u.ReleasedAt == nil && u.PageCount == nil && u.Language == nil
}

func applyUpdate(book *models.Book, u *bookUpdate, adminOverride bool, now time.Time) {
	if u.Title != nil {
		book.Title = *u.Title
	}
	if u.Description != nil {
		book.Description = *u.Description
	}
	if u.AuthorName != nil {
		book.AuthorName = *u.AuthorName
	}
	if u.Publisher != nil {
		book.Publisher = *u.Publisher
	}
	if u.ReleasedAt != nil {
		book.ReleasedAt = *u.ReleasedAt
	}
	if u.PageCount != nil {
		book.PageCount = *u.PageCount
	}
	if u.Language != nil {
		book.Language = *u.Language
	}
	book.UpdatedAt = &now
	if adminOverride {
		book.UpdatedByAdmin = true
		book.UpdatedByAdminAt = &now
	}
}
