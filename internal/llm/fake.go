package llm

import (
	"context"
	"encoding/json"
)

// FakeClient is an in-process Client used by flow tests. Responses is
// consumed in order; CompleteStructured marshals the next response's
// StructuredPayload into schema, Complete returns its Text.
type FakeClient struct {
	Responses []FakeResponse
	calls     int
}

// FakeResponse is one scripted turn for FakeClient.
type FakeResponse struct {
	Text              string
	StructuredPayload any
	Err               error
}

func (c *FakeClient) next() (FakeResponse, error) {
	if c.calls >= len(c.Responses) {
		return FakeResponse{}, LLMError{Provider: "fake", Err: errExhausted}
	}

	r := c.Responses[c.calls]
	c.calls++

	return r, nil
}

func (c *FakeClient) Complete(_ context.Context, _ []Message) (string, error) {
	r, err := c.next()
	if err != nil {
		return "", err
	}

	if r.Err != nil {
		return "", r.Err
	}

	return r.Text, nil
}

func (c *FakeClient) CompleteStructured(_ context.Context, _ []Message, schema any, _ string) error {
	r, err := c.next()
	if err != nil {
		return err
	}

	if r.Err != nil {
		return r.Err
	}

	b, err := json.Marshal(r.StructuredPayload)
	if err != nil {
		return LLMError{Provider: "fake", Err: err}
	}

	return json.Unmarshal(b, schema)
}

var errExhausted = fakeExhaustedError{}

type fakeExhaustedError struct{}

func (fakeExhaustedError) Error() string { return "fake client: no more scripted responses" }
