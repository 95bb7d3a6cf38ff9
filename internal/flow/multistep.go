package flow

import (
	"context"
	"strings"

	"github.com/kestrelhq/nlsql/internal/llm"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg/mlog"
)

// stackTraceMarker truncates a warehouse error before this substring when
// feeding it back to the model (spec §4.6.2/§7: "a DB-exception message is
// truncated to the substring before 'Stack trace'").
const stackTraceMarker = "Stack trace"

// MultistepFlow implements spec §4.6.2: up to max_steps turns of a
// structured InvestigationStep, continuing until a response_to_user
// appears, a step reports no further step is needed, or the step budget is
// exhausted.
type MultistepFlow struct{}

func (MultistepFlow) Run(ctx context.Context, deps Deps, wr WorkerRequest) (WorkerRequest, error) {
	logger := mlog.FromContext(ctx)

	maxSteps := deps.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}

	history := []llm.Message{{Role: llm.RoleUser, Content: wr.Request.Request}}

	var final InvestigationStep

	for i := 0; i < maxSteps; i++ {
		step, err := runInvestigationStep(ctx, deps, wr, history)
		if err != nil {
			return wr, markError(ctx, deps, wr, err.Error())
		}

		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: step.Summary})

		if step.SQLRequest != "" {
			csvResult, err := deps.Warehouse.ExecuteCSV(ctx, step.SQLRequest)
			if err != nil {
				message := truncateAtStackTrace(err.Error())
				history = append(history, llm.Message{Role: llm.RoleSystem, Content: "sql error: " + message})

				continue
			}

			if csvResult.CSV != nil {
				history = append(history, llm.Message{Role: llm.RoleSystem, Content: "query result available"})
			}
		}

		if step.ChartCode != "" && deps.Chart != nil {
			url, err := deps.Chart.Render(ctx, step.ChartCode)
			if err != nil {
				logger.Warnf("chart rendering failed: %v", err)
			} else {
				step.ResponseToUser += "\n\n" + url
			}
		}

		final = step

		if step.ResponseToUser != "" || !step.NextStepNeeded {
			break
		}
	}

	fields := requeststore.UpdateRequestFields{
		RequestID:     wr.Request.RequestID,
		Response:      &final.ResponseToUser,
		Intro:         &final.Intro,
		Outro:         &final.Outro,
		RawDataLabels: final.Labels,
		RawDataRows:   final.Rows,
	}

	return finishWithFields(ctx, deps, wr, requeststore.StatusDone, fields)
}

func runInvestigationStep(ctx context.Context, deps Deps, wr WorkerRequest, history []llm.Message) (InvestigationStep, error) {
	material, err := deps.Assembler.Render(ctx, "multistep_investigation", promptassembler.RequestContext{
		SessionID: wr.Request.SessionID,
		RequestID: wr.Request.RequestID,
	}, nil, nil)
	if err != nil {
		return InvestigationStep{}, err
	}

	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: material.PromptText}}, history...)

	var step InvestigationStep
	if err := deps.LLM.CompleteStructured(ctx, messages, &step, wr.Request.Model); err != nil {
		return InvestigationStep{}, err
	}

	return step, nil
}

func truncateAtStackTrace(message string) string {
	if idx := strings.Index(message, stackTraceMarker); idx >= 0 {
		return message[:idx]
	}

	return message
}
