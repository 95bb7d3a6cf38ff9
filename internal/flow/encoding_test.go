package flow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/flow"
	"github.com/kestrelhq/nlsql/internal/requeststore"
)

func TestEncodeDecodeWorkerRequest_RoundTrips(t *testing.T) {
	parent := "parent-session"

	wr := flow.WorkerRequest{
		Request: requeststore.Request{
			RequestID: "req-1",
			SessionID: "sess-1",
			Request:   "how many orders last week?",
			Flow:      "interactive",
		},
		User:            "user-1",
		ParentSessionID: &parent,
		SeededQuery: &requeststore.Query{
			QueryID: "query-1",
			SQL:     "SELECT 1",
		},
	}

	payload, err := flow.EncodeWorkerRequest(wr)
	require.NoError(t, err)

	decoded, err := flow.DecodeWorkerRequest(payload)
	require.NoError(t, err)
	require.Equal(t, wr, decoded)
}

func TestDecodeWorkerRequest_RejectsMalformedPayload(t *testing.T) {
	_, err := flow.DecodeWorkerRequest([]byte("not json"))
	require.Error(t, err)
}
