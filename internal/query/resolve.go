// Package query implements the paginated data endpoint (spec §4.8): SQL
// resolution with ORDER BY rewrite, warehouse execution, and ETag-based
// caching.
package query

import (
	"context"
	"errors"

	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg"
)

// ErrNotFound indicates id resolves to no Query, Request, or Session with
// an effective SQL (spec §4.8 step 1: "If none, 404").
var ErrNotFound = errors.New("query: no effective sql found for id")

// SourceKind identifies which entity a resolved SQL string came from, so a
// rewritten ORDER BY can be persisted back onto the right row (spec §4.8
// step 2: "Persist ... on the Request ... or on the Session metadata").
type SourceKind string

const (
	SourceQuery   SourceKind = "query"
	SourceRequest SourceKind = "request"
	SourceSession SourceKind = "session"
)

// Resolution is the outcome of resolving id to an effective SQL string.
type Resolution struct {
	SQL       string
	Source    SourceKind
	SessionID string
	RequestID string
	UserOwner string
	View      *requeststore.View
}

// Resolve implements spec §4.8 step 1: try id as a Query id, then as a
// Request id (using the request's own SQL or its linked Query), then as a
// Session id (using Session.metadata). user scopes the Session-ownership
// checks the store applies; Query and Request lookups are unscoped,
// mirroring GetQueryByID/GetRequestByID's own contracts.
func Resolve(ctx context.Context, store requeststore.Store, user, id string) (Resolution, error) {
	if q, err := store.GetQueryByID(ctx, id); err == nil {
		return Resolution{SQL: q.SQL, Source: SourceQuery}, nil
	} else if !pkg.IsNotFound(err) {
		return Resolution{}, err
	}

	if req, err := store.GetRequestByID(ctx, id); err == nil {
		return resolveFromRequest(ctx, store, req)
	} else if !pkg.IsNotFound(err) {
		return Resolution{}, err
	}

	session, err := store.GetSession(ctx, user, id)
	if err != nil {
		if pkg.IsNotFound(err) {
			return Resolution{}, ErrNotFound
		}

		return Resolution{}, err
	}

	if session.Metadata == nil || session.Metadata.SQL == "" {
		return Resolution{}, ErrNotFound
	}

	return Resolution{
		SQL:       session.Metadata.SQL,
		Source:    SourceSession,
		SessionID: session.ID,
		UserOwner: session.UserOwner,
	}, nil
}

func resolveFromRequest(ctx context.Context, store requeststore.Store, req requeststore.Request) (Resolution, error) {
	if req.QueryID != nil {
		q, err := store.GetQueryByID(ctx, *req.QueryID)
		if err == nil {
			return Resolution{
				SQL:       q.SQL,
				Source:    SourceQuery,
				SessionID: req.SessionID,
				RequestID: req.RequestID,
				View:      req.View,
			}, nil
		}

		if !pkg.IsNotFound(err) {
			return Resolution{}, err
		}
	}

	if req.SQL == "" {
		return Resolution{}, ErrNotFound
	}

	return Resolution{
		SQL:       req.SQL,
		Source:    SourceRequest,
		SessionID: req.SessionID,
		RequestID: req.RequestID,
		View:      req.View,
	}, nil
}
