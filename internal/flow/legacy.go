package flow

import (
	"context"
	"regexp"
	"strings"

	"github.com/kestrelhq/nlsql/internal/llm"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg/mlog"
)

// inlineRowThreshold is SimpleFlow's "small-enough to present inline"
// cutoff (spec §4.6.2 leaves the exact number to the implementation). It is
// lower than WarehouseClient's 1000-row execute_csv cutoff: results of 101 to
// 1000 rows are stored as CSV, and larger ones get neither inline rows nor CSV.
const inlineRowThreshold = 100

var sqlFence = regexp.MustCompile("(?s)```sql\\s*(.*?)```")

// SimpleFlow implements spec §4.6.2's legacy single-shot flow: ask for SQL
// in a fenced code block, execute it, and render a plain response.
type SimpleFlow struct{}

func (SimpleFlow) Run(ctx context.Context, deps Deps, wr WorkerRequest) (WorkerRequest, error) {
	material, err := deps.Assembler.Render(ctx, "legacy_simple_request", promptassembler.RequestContext{
		SessionID: wr.Request.SessionID,
		RequestID: wr.Request.RequestID,
	}, nil, nil)
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	text, err := deps.LLM.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: material.PromptText},
		{Role: llm.RoleUser, Content: wr.Request.Request},
	})
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	sqlText := firstSQLFence(text)
	if sqlText == "" {
		return wr, markError(ctx, deps, wr, "no sql fence in model output")
	}

	if _, err := deps.Warehouse.Preflight(ctx, sqlText); err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	result, err := deps.Warehouse.Execute(ctx, sqlText, inlineRowThreshold, 0)
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	csvResult, err := deps.Warehouse.ExecuteCSV(ctx, sqlText)
	if err != nil {
		mlog.FromContext(ctx).Warnf("executing csv for simple flow failed: %v", err)
	}

	responseMaterial, err := deps.Assembler.Render(ctx, "legacy_simple_response", promptassembler.RequestContext{
		SessionID: wr.Request.SessionID,
		RequestID: wr.Request.RequestID,
	}, nil, map[string]any{"rows": result.Rows, "total_count": result.TotalCount})
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	fields := requeststore.UpdateRequestFields{
		RequestID: wr.Request.RequestID,
		SQL:       &sqlText,
		Response:  &responseMaterial.PromptText,
	}

	if result.TotalCount <= inlineRowThreshold {
		labels := columnLabels(result.Columns)
		fields.RawDataLabels = labels
		fields.RawDataRows = rowsToMatrix(result.Rows, result.Columns)
	} else if csvResult.CSV != nil {
		fields.CSV = csvResult.CSV
	}

	return finishWithFields(ctx, deps, wr, requeststore.StatusDone, fields)
}

func firstSQLFence(text string) string {
	match := sqlFence.FindStringSubmatch(text)
	if len(match) < 2 {
		return ""
	}

	return strings.TrimSpace(match[1])
}

func columnLabels(columns []string) []string {
	return append([]string(nil), columns...)
}

func rowsToMatrix(rows []map[string]any, columns []string) [][]any {
	out := make([][]any, 0, len(rows))

	for _, row := range rows {
		record := make([]any, len(columns))
		for i, col := range columns {
			record[i] = row[col]
		}

		out = append(out, record)
	}

	return out
}

// DataOnlyFlow produces SQL and returns CSV with no prose (spec §4.6.2).
type DataOnlyFlow struct{}

func (DataOnlyFlow) Run(ctx context.Context, deps Deps, wr WorkerRequest) (WorkerRequest, error) {
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
