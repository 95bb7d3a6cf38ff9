package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/llm"
)

type intent struct {
	RequestType string `json:"request_type"`
}

func TestFakeClient_CompleteStructuredDecodesScriptedPayload(t *testing.T) {
	c := &llm.FakeClient{Responses: []llm.FakeResponse{
		{StructuredPayload: intent{RequestType: "interactive_query"}},
	}}

	var got intent
	require.NoError(t, c.CompleteStructured(context.Background(), nil, &got, ""))
	require.Equal(t, "interactive_query", got.RequestType)
}

func TestFakeClient_CompleteReturnsScriptedText(t *testing.T) {
	c := &llm.FakeClient{Responses: []llm.FakeResponse{{Text: "hello"}}}

	got, err := c.Complete(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
}

func TestFakeClient_ExhaustedReturnsLLMError(t *testing.T) {
	c := &llm.FakeClient{}

	_, err := c.Complete(context.Background(), nil)
	require.Error(t, err)

	var llmErr llm.LLMError
	require.ErrorAs(t, err, &llmErr)
}
