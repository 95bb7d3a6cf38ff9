package query

import (
	"context"
	"fmt"

	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/internal/warehouse"
	"github.com/kestrelhq/nlsql/pkg/mopentelemetry"
)

// CacheControl is the fixed cache-control directive for paginated data
// responses (spec §4.8 step 4).
const CacheControl = "public, max-age=0, s-maxage=600, stale-while-revalidate=1200"

// Vary is the fixed Vary header for paginated data responses.
const Vary = "Authorization, Accept, Accept-Encoding"

// Page is the response body for GET /data/{query_id} (spec §6).
type Page struct {
	QueryID   string
	Limit     int
	Offset    int
	Rows      []map[string]any
	TotalRows int64
	ETag      string
}

// Service implements the paginated data endpoint (spec §4.8).
type Service struct {
	Store     requeststore.Store
	Warehouse warehouse.Client
	Cache     *PageCache
}

// NewService builds a Service over store and wh. cache may be nil.
func NewService(store requeststore.Store, wh warehouse.Client, cache *PageCache) *Service {
	return &Service{Store: store, Warehouse: wh, Cache: cache}
}

// Fetch resolves id to an effective SQL statement, optionally rewrites its
// ORDER BY, executes it through the warehouse, persists the rewrite, and
// computes the page's ETag (spec §4.8 steps 1-4). A cache hit on the exact
// (id, limit, offset, sort) tuple skips resolution and execution entirely.
func (s *Service) Fetch(ctx context.Context, user, id string, limit, offset int, sortBy, sortOrder string) (Page, error) {
	ctx, span := mopentelemetry.TracerFromContext(ctx).Start(ctx, "query.fetch")
	defer span.End()

	if page, ok := s.Cache.Get(ctx, id, limit, offset, sortBy, sortOrder); ok {
		return page, nil
	}

	resolution, err := Resolve(ctx, s.Store, user, id)
	if err != nil {
		return Page{}, err
	}

	effectiveSQL := resolution.SQL
	view := resolution.View

	if sortBy != "" || view != nil {
		sb, so := sortBy, sortOrder
		if sb == "" && view != nil {
			sb, so = view.SortBy, view.SortOrder
		}

		rewritten, err := RewriteOrderBy(resolution.SQL, sb, so)
		if err != nil {
			mopentelemetry.HandleSpanError(&span, "failed to rewrite order by", err)
			return Page{}, fmt.Errorf("rewriting order by: %w", err)
		}

		effectiveSQL = rewritten
		view = &requeststore.View{SortBy: sb, SortOrder: so}

		if err := s.persistRewrite(ctx, resolution, effectiveSQL, view); err != nil {
			return Page{}, err
		}
	}

	result, err := s.Warehouse.Execute(ctx, effectiveSQL, limit, offset)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to execute warehouse query", err)
		return Page{}, fmt.Errorf("executing query: %w", err)
	}

	etag, err := ComputeETag(id, limit, offset, result.TotalCount, result.Rows)
	if err != nil {
		return Page{}, err
	}

	page := Page{
		QueryID:   id,
		Limit:     limit,
		Offset:    offset,
		Rows:      result.Rows,
		TotalRows: result.TotalCount,
		ETag:      etag,
	}

	s.Cache.Set(ctx, limit, offset, sortBy, sortOrder, page)

	return page, nil
}

func (s *Service) persistRewrite(ctx context.Context, resolution Resolution, sqlText string, view *requeststore.View) error {
	switch resolution.Source {
	case SourceRequest:
		_, err := s.Store.UpdateRequest(ctx, requeststore.UpdateRequestFields{
			RequestID: resolution.RequestID,
			SQL:       &sqlText,
			View:      view,
		})
		return err
	case SourceSession:
		return s.Store.UpdateQueryMetadata(ctx, resolution.SessionID, resolution.UserOwner, requeststore.QueryMetadata{SQL: sqlText})
	default:
		return nil
	}
}
