package bootstrap_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/bootstrap"
	"github.com/kestrelhq/nlsql/internal/flow"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg/mlog"
)

type fakeStore struct {
	requeststore.Store

	panicOnGetSession bool
	statusUpdates     []requeststore.Status
	lastErr           string
}

func (f *fakeStore) GetSession(context.Context, string, string) (requeststore.Session, error) {
	if f.panicOnGetSession {
		panic("boom: simulated unhandled exception")
	}

	return requeststore.Session{ID: "sess-1"}, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ string, status requeststore.Status, errMsg string) error {
	f.statusUpdates = append(f.statusUpdates, status)
	f.lastErr = errMsg

	return nil
}

func wrFor(requestID string) flow.WorkerRequest {
	return flow.WorkerRequest{
		Request: requeststore.Request{
			RequestID: requestID,
			SessionID: "sess-1",
			Request:   "how many orders last week?",
			Flow:      "interactive",
		},
		User: "user-1",
	}
}

func TestNewTaskHandler_PanicInsideFlowIsAbsorbedAsError(t *testing.T) {
	store := &fakeStore{panicOnGetSession: true}
	runner := flow.NewRunner()
	deps := flow.Deps{Store: store}

	handler := bootstrap.NewTaskHandler(runner, deps, mlog.FromContext(context.Background()))

	payload, err := flow.EncodeWorkerRequest(wrFor("req-1"))
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), payload))
	require.Equal(t, []requeststore.Status{requeststore.StatusError}, store.statusUpdates)
	require.Equal(t, "Unhandled exception, check logs", store.lastErr)
}

func TestNewTaskHandler_MalformedPayloadReturnsError(t *testing.T) {
	runner := flow.NewRunner()
	deps := flow.Deps{Store: &fakeStore{}}

	handler := bootstrap.NewTaskHandler(runner, deps, mlog.FromContext(context.Background()))

	require.Error(t, handler(context.Background(), []byte("not json")))
}

func TestNewTaskHandler_BusinessErrorIsAbsorbedNotPropagated(t *testing.T) {
	store := &fakeStore{}
	runner := flow.NewRunner()
	deps := flow.Deps{Store: store}

	handler := bootstrap.NewTaskHandler(runner, deps, mlog.FromContext(context.Background()))

	payload, err := flow.EncodeWorkerRequest(wrFor("req-2"))
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), payload))
}
