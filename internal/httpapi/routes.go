package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg/mauth"
	netHTTP "github.com/kestrelhq/nlsql/pkg/netx/http"
)

// RegisterRoutes mounts every route named in spec §6 onto app. auth may be
// nil (no AUTH_ISSUER configured), in which case every route is reachable
// unauthenticated — useful for local development against a guest-only
// deployment.
func RegisterRoutes(app *fiber.App, h *Handler, auth *mauth.Verifier) {
	app.Get("/health", h.Health)
	app.Get("/version", h.Version)

	api := app.Group("/")

	if auth != nil {
		api.Use(auth.Middleware())
	}

	api.Post("/session", netHTTP.WithBody(new(CreateSessionRequest), h.CreateSession))
	api.Get("/session", h.ListSessions)
	api.Get("/session/get_requests/:session_id", h.ListRequests)
	api.Get("/session/:id", h.GetSession)
	api.Patch("/session/:id", netHTTP.WithBody(new(PatchSessionRequest), h.PatchSession))
	api.Post("/session/:session_id/linked", netHTTP.WithBody(new(AddLinkedRequest), h.AddLinked))

	api.Post("/request/:session_id/for_query/:query_id", netHTTP.WithBody(new(requeststore.AddRequest), h.AddRequestForQuery))
	api.Post("/request/:session_id/from_query/:query_id", h.AddRequestFromQuery)
	api.Post("/request/:session_id", netHTTP.WithBody(new(requeststore.AddRequest), h.AddRequest))
	api.Get("/request/:session_id/:seq", h.GetRequest)
	api.Patch("/request/:id", netHTTP.WithBody(new(PatchRequestBody), h.PatchRequest))
	api.Delete("/request/:id", h.DeleteRequest)

	if auth != nil {
		api.Get("/admin/sessions", mauth.RequireScope("admin:sessions"), h.AdminListSessions)
		api.Get("/admin/requests", mauth.RequireScope("admin:requests"), h.AdminListRequests)
	} else {
		api.Get("/admin/sessions", h.AdminListSessions)
		api.Get("/admin/requests", h.AdminListRequests)
	}

	api.Get("/query", h.ListQueries)
	api.Get("/query/:id", h.GetQuery)

	api.Get("/data/:query_id", h.GetData)

	api.Post("/chart", netHTTP.WithBody(new(ChartRequest), h.PostChart))
	api.Get("/chart/:file", h.GetChart)
}
