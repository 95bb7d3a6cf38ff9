package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg/mpostgres"
	netHTTP "github.com/kestrelhq/nlsql/pkg/netx/http"
)

// AdminListSessions handles GET /admin/sessions (requires admin:sessions).
func (h *Handler) AdminListSessions(c *fiber.Ctx) error {
	limit, offset := pagination(c)

	sessions, err := h.Store.ListSessionsAdmin(c.UserContext(), limit, offset)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, paginationEnvelope(sessions, limit, offset))
}

// AdminListRequests handles GET /admin/requests (requires admin:requests).
// A non-empty `status` query parameter restricts the listing to that status
// (the original admin_db.py query always carries `status = :status`); an
// empty or absent one lists every status. Rows without a persisted SQL
// statement are never returned regardless of status.
func (h *Handler) AdminListRequests(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	status := requeststore.Status(c.Query("status"))

	requests, err := h.Store.ListRequestsAdmin(c.UserContext(), status, limit, offset)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, paginationEnvelope(requests, limit, offset))
}

// paginationEnvelope wraps a page of items the way the teacher's GetAllX
// handlers always do (mpostgres.Pagination), instead of returning a bare
// list (spec SUPPLEMENTED FEATURES: admin listings).
func paginationEnvelope(items any, limit, offset int) *mpostgres.Pagination {
	p := &mpostgres.Pagination{Page: offset/limit + 1, Limit: limit}
	p.SetItems(items)

	return p
}
