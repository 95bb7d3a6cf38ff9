package flow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/kestrelhq/nlsql/internal/llm"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/requeststore"
)

// ExecutionStep is one node of LangGraphFlow's typed pipeline, identified
// by a slice id derived deterministically from its QueryMetadata hash
// (spec §4.6.2).
type ExecutionStep struct {
	SliceID      string             `json:"slice_id"`
	Metadata     requeststore.QueryMetadata `json:"metadata"`
	DependsOn    []string           `json:"depends_on,omitempty"`
	Result       *string            `json:"result,omitempty"`
}

// ExecutionPipeline is the typed DAG LangGraphFlow executes.
type ExecutionPipeline struct {
	Steps []ExecutionStep `json:"steps"`
}

// LangGraphFlow implements spec §4.6.2: produce a typed ExecutionPipeline,
// then run it as a DAG with a small graph executor.
type LangGraphFlow struct{}

func (LangGraphFlow) Run(ctx context.Context, deps Deps, wr WorkerRequest) (WorkerRequest, error) {
	material, err := deps.Assembler.Render(ctx, "interactive_query", promptassembler.RequestContext{
		SessionID: wr.Request.SessionID,
		RequestID: wr.Request.RequestID,
	}, nil, nil)
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	var metadatas []requeststore.QueryMetadata

	if err := deps.LLM.CompleteStructured(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: material.PromptText},
		{Role: llm.RoleUser, Content: wr.Request.Request},
	}, &metadatas, wr.Request.Model); err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	pipeline := buildPipeline(metadatas)

	if err := executeGraph(ctx, deps, &pipeline); err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	var response string
	if n := len(pipeline.Steps); n > 0 && pipeline.Steps[n-1].Result != nil {
		response = *pipeline.Steps[n-1].Result
	}

	return finishWithFields(ctx, deps, wr, requeststore.StatusDone, requeststore.UpdateRequestFields{
		RequestID: wr.Request.RequestID,
		Response:  &response,
	})
}

func buildPipeline(metadatas []requeststore.QueryMetadata) ExecutionPipeline {
	steps := make([]ExecutionStep, 0, len(metadatas))

	var previous string

	for _, m := range metadatas {
		step := ExecutionStep{SliceID: sliceID(m), Metadata: m}
		if previous != "" {
			step.DependsOn = []string{previous}
		}

		steps = append(steps, step)
		previous = step.SliceID
	}

	return ExecutionPipeline{Steps: steps}
}

func sliceID(m requeststore.QueryMetadata) string {
	b, _ := json.Marshal(m)
	sum := sha256.Sum256(b)

	return hex.EncodeToString(sum[:8])
}

// executeGraph runs each step in topological order (the pipeline is
// already linearized by buildPipeline, which chains steps sequentially;
// a fuller DAG executor would fan out independent branches concurrently).
func executeGraph(ctx context.Context, deps Deps, pipeline *ExecutionPipeline) error {
	for i := range pipeline.Steps {
		step := &pipeline.Steps[i]

		if step.Metadata.SQL == "" {
			continue
		}

		result, err := deps.Warehouse.ExecuteCSV(ctx, step.Metadata.SQL)
		if err != nil {
			return fmt.Errorf("executing step %s: %w", step.SliceID, err)
		}

		step.Result = result.CSV
	}

	return nil
}
