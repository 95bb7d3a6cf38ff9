package flow

import (
	"context"
	"fmt"

	"github.com/kestrelhq/nlsql/pkg/mopentelemetry"
)

// Runner selects a Flow from a request's flow/model/db triple and runs it
// (spec §4.6: "The worker entrypoint selects a flow from the request's
// flow/model/db triple"). Only `flow` participates in selection today;
// model/db are carried through WorkerRequest for the flow itself to use.
type Runner struct {
	flows map[string]Flow
}

// NewRunner builds a Runner with the standard flow set registered under
// their spec §4.6 names, defaulting unset/unknown flow names to
// InteractiveFlow.
func NewRunner() *Runner {
	return &Runner{flows: map[string]Flow{
		"interactive": InteractiveFlow{},
		"simple":      SimpleFlow{},
		"multistep":   MultistepFlow{},
		"data_only":   DataOnlyFlow{},
		"flex":        FlexFlow{},
		"langgraph":   LangGraphFlow{},
	}}
}

// Run dispatches wr to the flow named by wr.Request.Flow.
func (r *Runner) Run(ctx context.Context, deps Deps, wr WorkerRequest) (WorkerRequest, error) {
	ctx, span := mopentelemetry.TracerFromContext(ctx).Start(ctx, "flow.runner.run")
	defer span.End()

	name := wr.Request.Flow
	if name == "" {
		name = "interactive"
	}

	f, ok := r.flows[name]
	if !ok {
		f = r.flows["interactive"]
	}

	updated, err := f.Run(ctx, deps, wr)
	if err != nil {
		return updated, fmt.Errorf("flow %q: %w", name, err)
	}

	return updated, nil
}
