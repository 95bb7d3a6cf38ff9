package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg"
	"github.com/kestrelhq/nlsql/pkg/mauth"
	"github.com/kestrelhq/nlsql/pkg/mpointers"
	netHTTP "github.com/kestrelhq/nlsql/pkg/netx/http"
)

// AddRequest handles POST /request/{session_id}.
func (h *Handler) AddRequest(payload any, c *fiber.Ctx) error {
	in := payload.(*requeststore.AddRequest)
	user := mauth.ClaimsFromCtx(c).Subject
	sessionID := c.Params("session_id")

	session, err := h.Store.GetSession(c.UserContext(), user, sessionID)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	req, _, err := h.Store.AddRequest(c.UserContext(), user, sessionID, *in)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	h.enqueue(c.UserContext(), req, user, session.Parent, nil)

	return netHTTP.Created(c, req)
}

// AddRequestForQuery handles POST /request/{session_id}/for_query/{query_id}:
// the new Request is dispatched normally, but the worker is seeded with the
// named Query so flows can reuse its SQL/metadata instead of regenerating it.
func (h *Handler) AddRequestForQuery(payload any, c *fiber.Ctx) error {
	in := payload.(*requeststore.AddRequest)
	user := mauth.ClaimsFromCtx(c).Subject
	sessionID := c.Params("session_id")

	session, err := h.Store.GetSession(c.UserContext(), user, sessionID)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	seeded, err := h.Store.GetQueryByID(c.UserContext(), c.Params("query_id"))
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	req, _, err := h.Store.AddRequest(c.UserContext(), user, sessionID, *in)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	h.enqueue(c.UserContext(), req, user, session.Parent, &seeded)

	return netHTTP.Created(c, req)
}

// AddRequestFromQuery handles POST /request/{session_id}/from_query/{query_id}:
// the Request is synchronously pre-populated with the query's SQL and
// summary and marked Done — no worker dispatch, since there is nothing left
// to compute (spec §6: "Request pre-populated with query's SQL and summary").
func (h *Handler) AddRequestFromQuery(c *fiber.Ctx) error {
	user := mauth.ClaimsFromCtx(c).Subject
	sessionID := c.Params("session_id")

	if _, err := h.Store.GetSession(c.UserContext(), user, sessionID); err != nil {
		return netHTTP.WithError(c, err)
	}

	src, err := h.Store.GetQueryByID(c.UserContext(), c.Params("query_id"))
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	req, _, err := h.Store.AddRequest(c.UserContext(), user, sessionID, requeststore.AddRequest{
		Request: src.Request,
	})
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	status := requeststore.StatusDone

	req, err = h.Store.UpdateRequest(c.UserContext(), requeststore.UpdateRequestFields{
		RequestID: req.RequestID,
		SQL:       mpointers.String(src.SQL),
		Response:  mpointers.String(src.Summary),
		QueryID:   mpointers.String(src.QueryID),
		Status:    &status,
	})
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.Created(c, req)
}

// GetRequest handles GET /request/{session_id}/{seq}.
func (h *Handler) GetRequest(c *fiber.Ctx) error {
	user := mauth.ClaimsFromCtx(c).Subject

	seq, err := strconv.Atoi(c.Params("seq"))
	if err != nil {
		return netHTTP.BadRequest(c, pkg.ValidationError{Title: "Bad Request", Message: "seq must be an integer"})
	}

	req, err := h.Store.GetRequest(c.UserContext(), user, c.Params("session_id"), seq)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, req)
}

// ListRequests handles GET /session/get_requests/{session_id}.
func (h *Handler) ListRequests(c *fiber.Ctx) error {
	user := mauth.ClaimsFromCtx(c).Subject

	requests, err := h.Store.ListRequests(c.UserContext(), user, c.Params("session_id"))
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, requests)
}

// PatchRequest handles PATCH /request/{id}: either a rating/review pair or
// a status override (spec §6).
func (h *Handler) PatchRequest(payload any, c *fiber.Ctx) error {
	in := payload.(*PatchRequestBody)
	id := c.Params("id")

	fields := requeststore.UpdateRequestFields{
		RequestID: id,
		Rating:    in.Rating,
		Review:    in.Review,
	}

	if in.Status != nil {
		status := requeststore.Status(*in.Status)
		fields.Status = &status
	}

	req, err := h.Store.UpdateRequest(c.UserContext(), fields)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, req)
}

// DeleteRequest handles DELETE /request/{id}.
func (h *Handler) DeleteRequest(c *fiber.Ctx) error {
	user := mauth.ClaimsFromCtx(c).Subject

	sessionID, err := h.Store.DeleteRequestRevert(c.UserContext(), c.Params("id"), user)
	if err != nil {
		return netHTTP.WithError(c, err)
	}

	return netHTTP.OK(c, RevertResponse{SessionID: sessionID})
}
