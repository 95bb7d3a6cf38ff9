package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/query"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg"
	"github.com/kestrelhq/nlsql/pkg/constant"
	"github.com/kestrelhq/nlsql/internal/warehouse"
)

type fakeStore struct {
	requeststore.Store

	queries  map[string]requeststore.Query
	requests map[string]requeststore.Request
	sessions map[string]requeststore.Session

	updatedRequest         requeststore.UpdateRequestFields
	updatedSessionMetadata requeststore.QueryMetadata
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		queries:  map[string]requeststore.Query{},
		requests: map[string]requeststore.Request{},
		sessions: map[string]requeststore.Session{},
	}
}

func (f *fakeStore) GetQueryByID(_ context.Context, id string) (requeststore.Query, error) {
	if q, ok := f.queries[id]; ok {
		return q, nil
	}

	return requeststore.Query{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Query")
}

func (f *fakeStore) GetRequestByID(_ context.Context, id string) (requeststore.Request, error) {
	if r, ok := f.requests[id]; ok {
		return r, nil
	}

	return requeststore.Request{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Request")
}

func (f *fakeStore) GetSession(_ context.Context, user, id string) (requeststore.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return requeststore.Session{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Session")
	}

	if user != "" && s.UserOwner != user {
		return requeststore.Session{}, pkg.ValidateBusinessError(constant.ErrForbiddenOwnership, "Session")
	}

	return s, nil
}

func (f *fakeStore) UpdateRequest(_ context.Context, fields requeststore.UpdateRequestFields) (requeststore.Request, error) {
	f.updatedRequest = fields
	return f.requests[fields.RequestID], nil
}

func (f *fakeStore) UpdateQueryMetadata(_ context.Context, _, _ string, metadata requeststore.QueryMetadata) error {
	f.updatedSessionMetadata = metadata
	return nil
}

type fakeWarehouse struct {
	warehouse.Client
	result warehouse.ExecuteResult
}

func (f fakeWarehouse) Execute(context.Context, string, int, int) (warehouse.ExecuteResult, error) {
	return f.result, nil
}

func TestFetch_ResolvesQueryAndComputesETag(t *testing.T) {
	store := newFakeStore()
	store.queries["q1"] = requeststore.Query{QueryID: "q1", SQL: "SELECT * FROM orders"}

	wh := fakeWarehouse{result: warehouse.ExecuteResult{
		Rows:       []map[string]any{{"id": 1}, {"id": 2}},
		TotalCount: 2,
	}}

	svc := query.NewService(store, wh, nil)

	page, err := svc.Fetch(context.Background(), "user-1", "q1", 10, 0, "", "")
	require.NoError(t, err)
	require.Equal(t, int64(2), page.TotalRows)
	require.NotEmpty(t, page.ETag)
}

func TestFetch_MissingIDReturnsNotFound(t *testing.T) {
	store := newFakeStore()
	wh := fakeWarehouse{}

	svc := query.NewService(store, wh, nil)

	_, err := svc.Fetch(context.Background(), "user-1", "missing", 10, 0, "", "")
	require.ErrorIs(t, err, query.ErrNotFound)
}

func TestFetch_RequestSourcePersistsRewrittenSQLAndView(t *testing.T) {
	store := newFakeStore()
	store.requests["r1"] = requeststore.Request{RequestID: "r1", SessionID: "s1", SQL: "SELECT id FROM orders"}

	wh := fakeWarehouse{result: warehouse.ExecuteResult{Rows: nil, TotalCount: 0}}

	svc := query.NewService(store, wh, nil)

	_, err := svc.Fetch(context.Background(), "user-1", "r1", 10, 0, "id", "desc")
	require.NoError(t, err)
	require.Equal(t, "r1", store.updatedRequest.RequestID)
	require.NotNil(t, store.updatedRequest.SQL)
	require.Contains(t, *store.updatedRequest.SQL, "ORDER BY")
	require.NotNil(t, store.updatedRequest.View)
	require.Equal(t, "id", store.updatedRequest.View.SortBy)
}

func TestComputeETag_StableAcrossIdenticalInputs(t *testing.T) {
	rows := []map[string]any{{"id": 1}, {"id": 2}}

	a, err := query.ComputeETag("q1", 10, 0, 2, rows)
	require.NoError(t, err)

	b, err := query.ComputeETag("q1", 10, 0, 2, rows)
	require.NoError(t, err)

	require.Equal(t, a, b)
}
