package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient adapts the openai-go SDK to Client. It is the one concrete
// provider this service ships out of the box; every other provider is left
// to deployment-specific wiring (spec §1 treats concrete providers as
// out-of-scope for the service's own logic, not as forbidden to wire).
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client against apiKey, defaulting every call to
// defaultModel unless a flow supplies a modelOverride.
func NewOpenAIClient(apiKey, defaultModel string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}

	return out
}

func (c *OpenAIClient) modelFor(override string) string {
	if override != "" {
		return override
	}

	return c.model
}

// Complete returns the first choice's text content.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.modelFor(""),
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return "", LLMError{Provider: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", LLMError{Provider: "openai", Err: fmt.Errorf("no choices returned")}
	}

	return resp.Choices[0].Message.Content, nil
}

// CompleteStructured requests JSON-object output and decodes it into
// schema, which must be a pointer. The field name "schema" mirrors the
// spec's structured-output contract; openai-go's response_format carries
// no type information of its own, so validation is left to json.Unmarshal
// against the caller's concrete struct.
func (c *OpenAIClient) CompleteStructured(ctx context.Context, messages []Message, schema any, modelOverride string) error {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.modelFor(modelOverride),
		Messages: toOpenAIMessages(messages),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return LLMError{Provider: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		return LLMError{Provider: "openai", Err: fmt.Errorf("no choices returned")}
	}

	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), schema); err != nil {
		return LLMError{Provider: "openai", Err: fmt.Errorf("decode structured response: %w", err)}
	}

	return nil
}
