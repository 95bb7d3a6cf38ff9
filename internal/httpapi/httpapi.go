// Package httpapi implements the HTTP API (v1) named in spec §6: session,
// request, query, data, and chart endpoints, plus admin-scoped listings and
// health/version probes. Handlers are thin: they decode/validate via
// pkg/netx/http, delegate to the wired collaborators, and translate typed
// errors back into responses via http.WithError.
package httpapi

import (
	"context"

	"github.com/kestrelhq/nlsql/internal/chart"
	"github.com/kestrelhq/nlsql/internal/flow"
	"github.com/kestrelhq/nlsql/internal/query"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/internal/taskbroker"
	"github.com/kestrelhq/nlsql/pkg/mlog"
)

// Handler bundles every collaborator the HTTP layer calls into. It holds no
// state of its own beyond these references.
type Handler struct {
	Store     requeststore.Store
	Query     *query.Service
	Broker    taskbroker.Broker
	Chart     chart.Service
	Logger    mlog.Logger
	Version   string
}

// New builds a Handler.
func New(store requeststore.Store, querySvc *query.Service, broker taskbroker.Broker, chartSvc chart.Service, logger mlog.Logger, version string) *Handler {
	return &Handler{
		Store:   store,
		Query:   querySvc,
		Broker:  broker,
		Chart:   chartSvc,
		Logger:  logger,
		Version: version,
	}
}

// enqueue dispatches a newly created Request to the worker pipeline (spec
// §6 "Broker"), logging but not failing the HTTP response if enqueueing
// itself fails — the Request already persisted in status New and can be
// retried or inspected; the caller learns about it from the Request body.
func (h *Handler) enqueue(ctx context.Context, req requeststore.Request, user string, parentSessionID *string, seeded *requeststore.Query) {
	wr := flow.WorkerRequest{
		Request:         req,
		User:            user,
		ParentSessionID: parentSessionID,
		SeededQuery:     seeded,
	}

	payload, err := flow.EncodeWorkerRequest(wr)
	if err != nil {
		h.Logger.Errorf("encoding worker request %s: %v", req.RequestID, err)
		return
	}

	if err := h.Broker.Enqueue(ctx, taskbroker.TaskAddRequest, req.TaskID, payload); err != nil {
		h.Logger.Errorf("enqueueing task %s: %v", req.TaskID, err)
	}
}
