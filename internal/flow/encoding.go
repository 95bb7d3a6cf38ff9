package flow

import (
	"encoding/json"
	"fmt"

	"github.com/kestrelhq/nlsql/internal/requeststore"
)

// wirePayload is the JSON wire shape of a `wrk_add_request` broker task
// (spec §6 "Broker": "Payload mirrors the Request plus resolved user,
// parent session id, and optional seeded Query").
type wirePayload struct {
	Request         requeststore.Request `json:"request"`
	User            string               `json:"user"`
	ParentSessionID *string              `json:"parent_session_id,omitempty"`
	SeededQuery     *requeststore.Query  `json:"seeded_query,omitempty"`
}

// EncodeWorkerRequest serializes wr for enqueueing onto the broker.
func EncodeWorkerRequest(wr WorkerRequest) ([]byte, error) {
	return json.Marshal(wirePayload{
		Request:         wr.Request,
		User:            wr.User,
		ParentSessionID: wr.ParentSessionID,
		SeededQuery:     wr.SeededQuery,
	})
}

// DecodeWorkerRequest parses a broker payload produced by EncodeWorkerRequest.
func DecodeWorkerRequest(payload []byte) (WorkerRequest, error) {
	var p wirePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return WorkerRequest{}, fmt.Errorf("decoding worker payload: %w", err)
	}

	return WorkerRequest{
		Request:         p.Request,
		User:            p.User,
		ParentSessionID: p.ParentSessionID,
		SeededQuery:     p.SeededQuery,
	}, nil
}
