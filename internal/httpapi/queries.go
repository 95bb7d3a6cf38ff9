package httpapi

import (
	"github.com/gofiber/fiber/v2"

	netHTTP "github.com/kestrelhq/nlsql/pkg/netx/http"
)

// ListQueries handles GET /query.
func (h *Handler) ListQueries(c *fiber.Ctx) error {
	limit, offset := pagination(c)

	queries, err := h.Store.ListQueries(c.UserContext(), limit, offset)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, queries)
}

// GetQuery handles GET /query/{id}.
func (h *Handler) GetQuery(c *fiber.Ctx) error {
	q, err := h.Store.GetQueryByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, q)
}
