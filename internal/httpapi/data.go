package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/kestrelhq/nlsql/internal/query"
	"github.com/kestrelhq/nlsql/pkg/mauth"
	netHTTP "github.com/kestrelhq/nlsql/pkg/netx/http"
)

// GetData handles GET /data/{query_id}, the paginated data endpoint (spec
// §4.8/§6): resolves id to an effective SQL statement, executes it, and
// returns a page with ETag/Cache-Control headers for conditional caching.
func (h *Handler) GetData(c *fiber.Ctx) error {
	user := mauth.ClaimsFromCtx(c).Subject

	limit, offset := pagination(c)
	sortBy := c.Query("sort_by")
	sortOrder := c.Query("sort_order")

	page, err := h.Query.Fetch(c.UserContext(), user, c.Params("query_id"), limit, offset, sortBy, sortOrder)
	if err != nil {
		if errors.Is(err, query.ErrNotFound) {
			return netHTTP.NotFound(c, "", "Not Found", "no data source found for the given id")
		}

		return netHTTP.WithError(c, err)
	}

	c.Set(fiber.HeaderCacheControl, query.CacheControl)
	c.Set(fiber.HeaderVary, query.Vary)
	c.Set(fiber.HeaderETag, page.ETag)

	if match := c.Get(fiber.HeaderIfNoneMatch); match != "" && match == page.ETag {
		return c.SendStatus(fiber.StatusNotModified)
	}

	return netHTTP.OK(c, DataResponse{
		QueryID:   page.QueryID,
		Limit:     page.Limit,
		Offset:    page.Offset,
		Rows:      page.Rows,
		TotalRows: page.TotalRows,
	})
}
