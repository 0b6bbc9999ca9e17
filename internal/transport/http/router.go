package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookly/internal/handlers"
	mwauth "github.com/Skotchmaster/bookly/internal/middleware/auth"
)

type Deps struct {
	AuthHandler   *handlers.AuthHandler
	BookHandler   *handlers.BookHandler
	SearchHandler *handlers.SearchHandler
	Guard         *mwauth.TokenGuard
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	anyRole := mwauth.RequireRole("admin", "user")
	adminOnly := mwauth.RequireRole("admin")

	user := v1.Group("/user")
	user.POST("/registration", d.AuthHandler.Register)
	user.POST("/user_login", d.AuthHandler.Login)
	user.POST("/password_reset_request", d.AuthHandler.PasswordResetRequest)
	user.PATCH("/reset_password", d.AuthHandler.ResetPassword)
	user.GET("/refresh_token", d.AuthHandler.RefreshToken, d.Guard.RefreshToken())
	user.GET("/me", d.AuthHandler.Me, d.Guard.AccessToken(), anyRole)
	user.GET("/logout", d.AuthHandler.Logout, d.Guard.AccessToken())

	books := v1.Group("/books", d.Guard.AccessToken(), anyRole)
	books.GET("", d.BookHandler.List)
	books.POST("", d.BookHandler.Create)
	books.GET("/published", d.BookHandler.Published)
	books.GET("/unpublished", d.BookHandler.Unpublished)
	books.GET("/deleted", d.BookHandler.Deleted, adminOnly)
	books.GET("/user/:id", d.BookHandler.UserBooks)
	books.GET("/:id", d.BookHandler.GetBook)
	books.PATCH("/publish_book/:id", d.BookHandler.Publish)
	books.PATCH("/unpublish_book/:id", d.BookHandler.Unpublish)
	books.PATCH("/:id", d.BookHandler.Update)
	books.DELETE("/hard_delete/:id", d.BookHandler.HardDelete, adminOnly)
	books.DELETE("/:id", d.BookHandler.SoftDelete)

	if d.SearchHandler != nil {
		v1.GET("/books/search", d.SearchHandler.Search)
	}
}
