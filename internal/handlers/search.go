package handlers

import (
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookly/internal/service/search"
	"github.com/Skotchmaster/bookly/internal/util"
)

// SearchHandler queries the published-book index. Only published books ever
// enter the index, so no auth is layered on top.
type SearchHandler struct {
	ES *elasticsearch.Client
}

func (h *SearchHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	total, books, err := search.Search(c.Request().Context(), h.ES, q, from, size)
	if err != nil {
		c.Logger().Errorf("search error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "books": books})
}
