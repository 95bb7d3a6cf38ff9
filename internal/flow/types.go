// Package flow implements FlowRunner and the flows it dispatches to (spec
// §4.6): async functions of (WorkerRequest, LLMClient, Warehouse,
// RequestStore) -> WorkerRequest, selected by the request's flow/model/db
// triple.
package flow

import (
	"context"

	"github.com/kestrelhq/nlsql/internal/requeststore"
)

// WorkerRequest is the broker task payload (spec §4.5/§6): the Request
// plus the resolved acting user, the parent session id (if any), and an
// optional Query seeded by a `for_query` request (`from_query` requests are
// completed synchronously and never reach a worker).
type WorkerRequest struct {
	Request         requeststore.Request
	User            string
	ParentSessionID *string
	SeededQuery     *requeststore.Query
}

// Flow runs one request to completion, returning the updated request.
// Implementations persist intermediate lifecycle changes via RequestStore
// themselves (spec §5: suspension points include "request update").
type Flow interface {
	Run(ctx context.Context, deps Deps, wr WorkerRequest) (WorkerRequest, error)
}

// IntentAnalysis is the structured schema InteractiveFlow's intent
// classification step asks the LLM to fill in (spec §4.6.1 step 2).
type IntentAnalysis struct {
	RequestType string `json:"request_type"`
	Reasoning   string `json:"reasoning,omitempty"`
}

// GeneratedQuery is the structured schema InteractiveFlow's SQL-generation
// retry loop asks the LLM to fill in (spec §4.6.1 step 3, "interactive_query"
// branch — named distinctly from requeststore.QueryMetadata, the persisted
// row shape, to keep the wire schema and the storage model independently
// evolvable).
type GeneratedQuery struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	SQL         string         `json:"sql,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Parents     []string       `json:"parents,omitempty"`
}

// InvestigationStep is MultistepFlow's per-turn structured schema (spec
// §4.6.2).
type InvestigationStep struct {
	Summary                string   `json:"summary"`
	UserIntent             string   `json:"user_intent,omitempty"`
	SQLRequest             string   `json:"sql_request,omitempty"`
	ResponseToUser         string   `json:"response_to_user,omitempty"`
	NextStepNeeded         bool     `json:"next_step_needed"`
	SelfCheckPassed        bool     `json:"self_check_passed"`
	AdditionalDataRequest  string   `json:"additional_data_request,omitempty"`
	Labels                 []string `json:"labels,omitempty"`
	Rows                   [][]any  `json:"rows,omitempty"`
	Intro                  string   `json:"intro,omitempty"`
	Outro                  string   `json:"outro,omitempty"`
	ChartCode              string   `json:"chart_code,omitempty"`
}
