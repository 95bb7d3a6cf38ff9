package flow

import (
	"context"
	"fmt"

	"github.com/kestrelhq/nlsql/internal/llm"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/internal/warehouse"
)

// PipelineStage is one stage of FlexFlow's decomposed multi-step pipeline
// (spec §4.6.2: stages marked query_initial_data, insert_initial_data,
// ..., final).
type PipelineStage struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// Pipeline is the LLM's decomposition of a too-broad query.
type Pipeline struct {
	Stages []PipelineStage `json:"stages"`
}

// FlexFlow implements spec §4.6.2: produce SQL, and if preflight reports
// it too broad (or reports an error), decompose into a pipeline of stages
// executed in order against the warehouse. Each stage's SQL runs on its
// own: no stage's result is passed to a later stage, and the request keeps
// the CSV of the last stage that returned one.
type FlexFlow struct{}

func (FlexFlow) Run(ctx context.Context, deps Deps, wr WorkerRequest) (WorkerRequest, error) {
	material, err := deps.Assembler.Render(ctx, "interactive_query", promptassembler.RequestContext{
		SessionID: wr.Request.SessionID,
		RequestID: wr.Request.RequestID,
	}, nil, nil)
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	var generated GeneratedQuery

	if err := deps.LLM.CompleteStructured(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: material.PromptText},
		{Role: llm.RoleUser, Content: wr.Request.Request},
	}, &generated, wr.Request.Model); err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	if generated.SQL == "" {
		return wr, markError(ctx, deps, wr, "no sql produced")
	}

	preflight, err := deps.Warehouse.Preflight(ctx, generated.SQL)
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	if preflight.Err == "" && !queryTooBroad(preflight) {
		csvResult, err := deps.Warehouse.ExecuteCSV(ctx, generated.SQL)
		if err != nil {
			return wr, markError(ctx, deps, wr, err.Error())
		}

		fields := requeststore.UpdateRequestFields{RequestID: wr.Request.RequestID, SQL: &generated.SQL}
		if csvResult.CSV != nil {
			fields.CSV = csvResult.CSV
		}

		return finishWithFields(ctx, deps, wr, requeststore.StatusDone, fields)
	}

	pipeline, err := decomposePipeline(ctx, deps, wr, generated.SQL)
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	finalCSV, err := executePipeline(ctx, deps, pipeline)
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	fields := requeststore.UpdateRequestFields{RequestID: wr.Request.RequestID, SQL: &generated.SQL}
	if finalCSV != nil {
		fields.CSV = finalCSV
	}

	return finishWithFields(ctx, deps, wr, requeststore.StatusDone, fields)
}

// queryTooBroad is FlexFlow's own threshold check, distinct from
// InteractiveFlow's observed-but-unenforced thresholds (spec §9 Open
// Questions): FlexFlow's decomposition behavior only exists because a
// preflight-driven size check is explicitly called for here.
func queryTooBroad(preflight warehouse.PreflightResult) bool {
	if preflight.Explanation == nil {
		return false
	}

	e := preflight.Explanation

	return e.Rows > PreflightRowThreshold || e.Marks > PreflightMarksThreshold || e.Parts > PreflightPartsThreshold
}

func decomposePipeline(ctx context.Context, deps Deps, wr WorkerRequest, sqlText string) (Pipeline, error) {
	var pipeline Pipeline

	err := deps.LLM.CompleteStructured(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Decompose this query into an ordered pipeline of stages."},
		{Role: llm.RoleUser, Content: sqlText},
	}, &pipeline, wr.Request.Model)

	return pipeline, err
}

func executePipeline(ctx context.Context, deps Deps, pipeline Pipeline) (*string, error) {
	var last *string

	for _, stage := range pipeline.Stages {
		result, err := deps.Warehouse.ExecuteCSV(ctx, stage.SQL)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
		}

		if result.CSV != nil {
			last = result.CSV
		}
	}

	return last, nil
}
