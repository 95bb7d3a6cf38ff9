package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kestrelhq/nlsql/pkg/mauth"
	netHTTP "github.com/kestrelhq/nlsql/pkg/netx/http"
)

// CreateSession handles POST /session.
func (h *Handler) CreateSession(payload any, c *fiber.Ctx) error {
	in := payload.(*CreateSessionRequest)
	user := mauth.ClaimsFromCtx(c).Subject

	session, err := h.Store.AddSession(c.UserContext(), user, in.Name, in.Tags, in.Parent, in.Refs)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.Created(c, session)
}

// ListSessions handles GET /session.
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	user := mauth.ClaimsFromCtx(c).Subject
	limit, offset := pagination(c)

	sessions, err := h.Store.ListSessions(c.UserContext(), user, limit, offset)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, sessions)
}

// GetSession handles GET /session/{id}.
func (h *Handler) GetSession(c *fiber.Ctx) error {
	user := mauth.ClaimsFromCtx(c).Subject

	session, err := h.Store.GetSession(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, session)
}

// PatchSession handles PATCH /session/{id}.
func (h *Handler) PatchSession(payload any, c *fiber.Ctx) error {
	in := payload.(*PatchSessionRequest)
	user := mauth.ClaimsFromCtx(c).Subject
	id := c.Params("id")

	if in.Name != nil {
		if err := h.Store.UpdateSessionName(c.UserContext(), id, user, *in.Name); err != nil {
			return netHTTP.WithError(c, err)
		}
	}

	session, err := h.Store.GetSession(c.UserContext(), user, id)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, session)
}

// AddLinked handles POST /session/{session_id}/linked: creates a child
// session of the given parent and immediately seeds it with a Request,
// dispatching that Request to the worker pipeline exactly like
// AddRequest (spec §6).
func (h *Handler) AddLinked(payload any, c *fiber.Ctx) error {
	in := payload.(*AddLinkedRequest)
	user := mauth.ClaimsFromCtx(c).Subject
	parentID := c.Params("session_id")

	child, err := h.Store.AddSession(c.UserContext(), user, in.Name, in.Tags, &parentID, in.Refs)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	req, _, err := h.Store.AddRequest(c.UserContext(), user, child.ID, in.Request)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	h.enqueue(c.UserContext(), req, user, &parentID, nil)

	return netHTTP.Created(c, req)
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	offset, err = strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return limit, offset
}
