package flow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/flow"
	"github.com/kestrelhq/nlsql/internal/llm"
	"github.com/kestrelhq/nlsql/internal/packstore"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/internal/warehouse"
)

type interactiveFakeStore struct {
	requeststore.Store

	session        requeststore.Session
	updatedFields  []requeststore.UpdateRequestFields
	statusTrail    []requeststore.Status
	createdQueries []requeststore.CreateQueryFields
	metadata       requeststore.QueryMetadata
}

func (f *interactiveFakeStore) GetSession(context.Context, string, string) (requeststore.Session, error) {
	return f.session, nil
}

func (f *interactiveFakeStore) UpdateRequest(_ context.Context, fields requeststore.UpdateRequestFields) (requeststore.Request, error) {
	f.updatedFields = append(f.updatedFields, fields)
	return requeststore.Request{RequestID: fields.RequestID}, nil
}

func (f *interactiveFakeStore) UpdateStatus(_ context.Context, _ string, status requeststore.Status, _ string) error {
	f.statusTrail = append(f.statusTrail, status)
	return nil
}

func (f *interactiveFakeStore) UpdateSessionName(context.Context, string, string, string) error {
	return nil
}

func (f *interactiveFakeStore) UpdateQueryMetadata(_ context.Context, _, _ string, metadata requeststore.QueryMetadata) error {
	f.metadata = metadata
	return nil
}

func (f *interactiveFakeStore) CreateQuery(_ context.Context, fields requeststore.CreateQueryFields) (requeststore.Query, error) {
	f.createdQueries = append(f.createdQueries, fields)
	return requeststore.Query{QueryID: "query-1", SQL: fields.SQL, Summary: fields.Summary}, nil
}

type interactiveFakeWarehouse struct {
	warehouse.Client

	preflights []warehouse.PreflightResult
	call       int
}

func (f *interactiveFakeWarehouse) Preflight(context.Context, string) (warehouse.PreflightResult, error) {
	r := f.preflights[f.call]
	f.call++

	return r, nil
}

func (f *interactiveFakeWarehouse) Count(context.Context, string) (int64, error) {
	return 0, nil
}

func newAssembler() *promptassembler.Assembler {
	tree := packstore.Tree{
		"slots/planner.jinja":          []byte("classify"),
		"slots/interactive_query.jinja": []byte("generate"),
	}

	return promptassembler.New(tree, packstore.Manifest{}, nil)
}

// Reproduces spec §4.6.1's retry loop: the first two SQL attempts are
// rejected by warehouse preflight, the third succeeds. The flow should
// retry exactly twice and finish Done with the third attempt's SQL.
func TestInteractiveFlow_RetriesRejectedSQLThenSucceeds(t *testing.T) {
	store := &interactiveFakeStore{
		session: requeststore.Session{ID: "sess-1", Name: "untitled"},
	}

	wh := &interactiveFakeWarehouse{
		preflights: []warehouse.PreflightResult{
			{Err: "estimated rows exceed threshold"},
			{Err: "estimated rows exceed threshold"},
			{},
		},
	}

	client := &llm.FakeClient{Responses: []llm.FakeResponse{
		{StructuredPayload: flow.IntentAnalysis{RequestType: "interactive_query"}},
		{StructuredPayload: flow.GeneratedQuery{Summary: "attempt 1", SQL: "SELECT 1"}},
		{StructuredPayload: flow.GeneratedQuery{Summary: "attempt 2", SQL: "SELECT 2"}},
		{StructuredPayload: flow.GeneratedQuery{Summary: "attempt 3", SQL: "SELECT 3"}},
	}}

	deps := flow.Deps{
		Store:     store,
		Warehouse: wh,
		LLM:       client,
		Assembler: newAssembler(),
	}

	wr := flow.WorkerRequest{
		Request: requeststore.Request{RequestID: "req-1", SessionID: "sess-1", Request: "how many orders last week?"},
		User:    "user-1",
	}

	_, err := flow.InteractiveFlow{}.Run(context.Background(), deps, wr)
	require.NoError(t, err)

	require.Len(t, wh.preflights, wh.call)
	require.Len(t, store.createdQueries, 1)
	require.Equal(t, "SELECT 3", store.createdQueries[0].SQL)
	require.Equal(t, "SELECT 3", store.metadata.SQL)

	require.Equal(t, []requeststore.Status{
		requeststore.StatusIntent,
		requeststore.StatusSQL,
		requeststore.StatusRetry,
		requeststore.StatusSQL,
		requeststore.StatusRetry,
		requeststore.StatusSQL,
		requeststore.StatusFinalizing,
		requeststore.StatusDone,
	}, store.statusTrail)

	last := store.updatedFields[len(store.updatedFields)-1]
	require.NotNil(t, last.SQL)
	require.Equal(t, "SELECT 3", *last.SQL)
}

// Every attempt exhausting the retry budget without a usable SQL statement
// marks the request Error rather than looping forever (spec §4.6.1: "≤3
// attempts, then Error").
func TestInteractiveFlow_ExhaustsRetriesAndMarksError(t *testing.T) {
	store := &interactiveFakeStore{
		session: requeststore.Session{ID: "sess-1", Name: "untitled"},
	}

	wh := &interactiveFakeWarehouse{
		preflights: []warehouse.PreflightResult{
			{Err: "rejected"},
			{Err: "rejected"},
			{Err: "rejected"},
		},
	}

	client := &llm.FakeClient{Responses: []llm.FakeResponse{
		{StructuredPayload: flow.IntentAnalysis{RequestType: "interactive_query"}},
		{StructuredPayload: flow.GeneratedQuery{Summary: "attempt 1", SQL: "SELECT 1"}},
		{StructuredPayload: flow.GeneratedQuery{Summary: "attempt 2", SQL: "SELECT 2"}},
		{StructuredPayload: flow.GeneratedQuery{Summary: "attempt 3", SQL: "SELECT 3"}},
	}}

	deps := flow.Deps{
		Store:     store,
		Warehouse: wh,
		LLM:       client,
		Assembler: newAssembler(),
	}

	wr := flow.WorkerRequest{
		Request: requeststore.Request{RequestID: "req-2", SessionID: "sess-1", Request: "how many orders last week?"},
		User:    "user-1",
	}

	_, err := flow.InteractiveFlow{}.Run(context.Background(), deps, wr)
	require.Error(t, err)

	require.Empty(t, store.createdQueries)
	require.Equal(t, requeststore.StatusError, store.statusTrail[len(store.statusTrail)-1])
}
