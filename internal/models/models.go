package models

import "time"

type User struct {
	ID                     string     `gorm:"primaryKey"       json:"id"`
	Username               string     `gorm:"unique;not null"  json:"username"`
	Email                  string     `gorm:"unique;not null"  json:"email"`
	PasswordHash           string     `gorm:"not null"         json:"-"`
	Role                   string     `gorm:"not null"         json:"role"`
	FirstName              string     `json:"first_name,omitempty"`
	LastName               string     `json:"last_name,omitempty"`
	APIKey                 string     `json:"-"`
	IsLoggedIn             bool       `gorm:"default:false"    json:"is_logged_in"`
	IsVerified             bool       `gorm:"default:false"    json:"is_verified"`
	CreatedAt              time.Time  `json:"created_at"`
	LastLoginAt            *time.Time `json:"last_login_at,omitempty"`
	PasswordResetRequestAt *time.Time `json:"password_reset_request_at,omitempty"`
	PasswordResetAt        *time.Time `json:"password_reset_at,omitempty"`
}

// FullName is used in outbound notification events.
func (u *User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

type Book struct {
	ID          string `gorm:"primaryKey"      json:"id"`
	Title       string `gorm:"not null"        json:"title"`
	Description string `gorm:"not null"        json:"description"`
	AuthorName  string `gorm:"not null"        json:"author_name"`
	Publisher   string `gorm:"not null"        json:"publisher"`
	ReleasedAt  string `json:"released_at"`
	PageCount   int    `json:"page_count"`
	Language    string `json:"language"`

	// Ownership is fixed at creation and never reassigned.
	PublisherUserID string `gorm:"index;not null" json:"publisher_user_id"`

	Status       bool `gorm:"default:false" json:"status"`
	DeleteStatus bool `gorm:"default:false" json:"delete_status"`

	PublishedByAdmin   bool `gorm:"default:false" json:"published_by_admin"`
	UnpublishedByAdmin bool `gorm:"default:false" json:"unpublished_by_admin"`
	UpdatedByAdmin     bool `gorm:"default:false" json:"updated_by_admin"`
	DeletedByAdmin     bool `gorm:"default:false" json:"deleted_by_admin"`

	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
	PublishedAt          *time.Time `json:"published_at,omitempty"`
	UnpublishedAt        *time.Time `json:"unpublished_at,omitempty"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
	PublishedByAdminAt   *time.Time `json:"published_by_admin_at,omitempty"`
	UnpublishedByAdminAt *time.Time `json:"unpublished_by_admin_at,omitempty"`
	UpdatedByAdminAt     *time.Time `json:"updated_by_admin_at,omitempty"`
	DeletedByAdminAt     *time.Time `json:"deleted_by_admin_at,omitempty"`
}
