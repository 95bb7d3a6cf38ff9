package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kestrelhq/nlsql/internal/llm"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg/mlog"
	"github.com/kestrelhq/nlsql/pkg/mopentelemetry"
	"github.com/kestrelhq/nlsql/pkg/mretry"
)

// MaxSQLAttempts bounds InteractiveFlow's SQL-generation retry loop (spec
// §4.6.1: "≤3 attempts, then Error").
const MaxSQLAttempts = 3

// Preflight thresholds. InteractiveFlow does not act on them; FlexFlow's
// queryTooBroad uses them to decide when to decompose a query.
const (
	PreflightRowThreshold   = 50_000_000
	PreflightMarksThreshold = 100_000
	PreflightPartsThreshold = 3
)

// InteractiveFlow implements spec §4.6.1.
type InteractiveFlow struct{}

// Run walks the finite-state machine described in spec §4.6.1.
func (InteractiveFlow) Run(ctx context.Context, deps Deps, wr WorkerRequest) (WorkerRequest, error) {
	ctx, span := mopentelemetry.TracerFromContext(ctx).Start(ctx, "flow.interactive.run")
	defer span.End()

	logger := mlog.FromContext(ctx)

	session, parent, err := loadSessions(ctx, deps.Store, wr)
	if err != nil {
		return wr, markError(ctx, deps, wr, fmt.Sprintf("loading session: %v", err))
	}

	vars := buildContextVariables(session, parent, wr.Request)

	intent, err := classifyIntent(ctx, deps, wr, vars)
	if err != nil {
		return wr, markError(ctx, deps, wr, err.Error())
	}

	if _, err := deps.Store.UpdateRequest(ctx, requeststore.UpdateRequestFields{
		RequestID: wr.Request.RequestID,
		Intent:    &intent.RequestType,
	}); err != nil {
		logger.Warnf("persisting intent failed: %v", err)
	}

	if err := deps.Store.UpdateStatus(ctx, wr.Request.RequestID, requeststore.StatusIntent, ""); err != nil {
		logger.Warnf("persisting Intent status failed: %v", err)
	}

	switch intent.RequestType {
	case "linked_session":
		return dispatchLinkedSession(ctx, deps, wr, session)
	case "interactive_query":
		return dispatchInteractiveQuery(ctx, deps, wr, session, parent, vars)
	case "data_analysis":
		return dispatchDataAnalysis(ctx, deps, wr, vars)
	case "general_chat", "disambiguation":
		return dispatchChat(ctx, deps, wr, vars)
	default:
		return finish(ctx, deps, wr, "Unsupported request type", requeststore.StatusDone)
	}
}

func loadSessions(ctx context.Context, store requeststore.Store, wr WorkerRequest) (requeststore.Session, *requeststore.Session, error) {
	session, err := store.GetSession(ctx, wr.User, wr.Request.SessionID)
	if err != nil {
		return requeststore.Session{}, nil, err
	}

	if session.Parent == nil {
		return session, nil, nil
	}

	parent, err := store.GetSession(ctx, wr.User, *session.Parent)
	if err != nil {
		return session, nil, nil //nolint:nilerr // parent load is best-effort context, not fatal
	}

	return session, &parent, nil
}

func buildContextVariables(session requeststore.Session, parent *requeststore.Session, req requeststore.Request) map[string]any {
	vars := map[string]any{
		"query_metadata": session.Metadata,
		"intent_hint":    req.RequestType,
		"now":            time.Now().Truncate(time.Second),
	}

	if parent != nil {
		vars["parent_query_metadata"] = parent.Metadata
	}

	if req.Refs != nil {
		vars["selected_row_data"] = req.Refs["selected_row_data"]
		vars["selected_column_data"] = req.Refs["selected_column_data"]
	}

	return vars
}

func classifyIntent(ctx context.Context, deps Deps, wr WorkerRequest, vars map[string]any) (IntentAnalysis, error) {
	material, err := deps.Assembler.Render(ctx, "planner", promptassembler.RequestContext{
		SessionID: wr.Request.SessionID,
		RequestID: wr.Request.RequestID,
		DB:        wr.Request.DB,
		Extra:     map[string]any{"request_text": wr.Request.Request},
	}, nil, vars)
	if err != nil {
		return IntentAnalysis{}, fmt.Errorf("rendering planner slot: %w", err)
	}

	var intent IntentAnalysis

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: material.PromptText},
		{Role: llm.RoleUser, Content: wr.Request.Request},
	}

	if err := deps.LLM.CompleteStructured(ctx, messages, &intent, wr.Request.Model); err != nil {
		return IntentAnalysis{}, fmt.Errorf("classifying intent: %w", err)
	}

	return intent, nil
}

func dispatchLinkedSession(ctx context.Context, deps Deps, wr WorkerRequest, session requeststore.Session) (WorkerRequest, error) {
	child, err := deps.Store.AddSession(ctx, wr.User, session.Name, session.Tags, &session.ID, session.Refs)
	if err != nil {
		return wr, markError(ctx, deps, wr, fmt.Sprintf("creating linked session: %v", err))
	}

	response := ""
	if session.Metadata != nil {
		response = session.Metadata.SQL
	}

	status := requeststore.StatusIntent
	advanceStatus(ctx, deps, wr, &status, requeststore.StatusFinalizing, "")

	return finishWithFields(ctx, deps, wr, requeststore.StatusDone, requeststore.UpdateRequestFields{
		RequestID:       wr.Request.RequestID,
		Response:        &response,
		LinkedSessionID: &child.ID,
	})
}

func dispatchInteractiveQuery(ctx context.Context, deps Deps, wr WorkerRequest, session requeststore.Session, parent *requeststore.Session, vars map[string]any) (WorkerRequest, error) {
	logger := mlog.FromContext(ctx)

	status := requeststore.StatusIntent

	advanceStatus(ctx, deps, wr, &status, requeststore.StatusSQL, "")

	result, err := mretry.Do(ctx, MaxSQLAttempts, func(ctx context.Context, attempt int) mretry.Result {
		if attempt > 1 {
			advanceStatus(ctx, deps, wr, &status, requeststore.StatusSQL, "")
		}

		generated, err := generateQuery(ctx, deps, wr, session, vars)
		if err != nil {
			return mretry.Result{Err: err}
		}

		if err := deps.Store.UpdateSessionName(ctx, session.ID, wr.User, generated.Summary); err != nil {
			logger.Warnf("updating session name failed: %v", err)
		}

		parents := generated.Parents
		if session.Parent != nil && !contains(parents, *session.Parent) {
			parents = append(parents, *session.Parent)
		}

		if generated.SQL != "" {
			return attemptSQL(ctx, deps, wr, session, generated, parents, &status)
		}

		if generated.Result != nil {
			advanceStatus(ctx, deps, wr, &status, requeststore.StatusFinalizing, "")
			return mretry.Result{Done: true, Final: generated}
		}

		return mretry.Result{Err: errNoSQLProduced}
	})
	if err != nil {
		return wr, markError(ctx, deps, wr, fmt.Sprintf("interactive query: %v", err))
	}

	generated, _ := result.(GeneratedQuery)

	return finishWithFields(ctx, deps, wr, requeststore.StatusDone, requeststore.UpdateRequestFields{
		RequestID: wr.Request.RequestID,
		SQL:       &generated.SQL,
	})
}

// advanceStatus moves the locally-tracked status forward and persists it,
// validating against the documented FSM (spec §3) first. A rejected
// transition is logged and skipped rather than failing the flow: the graph
// exists to catch programming mistakes in this package, not to gate
// otherwise-successful work.
func advanceStatus(ctx context.Context, deps Deps, wr WorkerRequest, status *requeststore.Status, next requeststore.Status, errMsg string) {
	if err := requeststore.ValidateTransition(*status, next); err != nil {
		mlog.FromContext(ctx).Warnf("skipping invalid status transition: %v", err)
		return
	}

	if err := deps.Store.UpdateStatus(ctx, wr.Request.RequestID, next, errMsg); err != nil {
		mlog.FromContext(ctx).Warnf("persisting %s status failed: %v", next, err)
	}

	*status = next
}

var errNoSQLProduced = fmt.Errorf("no sql produced")

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}

	return false
}

func generateQuery(ctx context.Context, deps Deps, wr WorkerRequest, session requeststore.Session, vars map[string]any) (GeneratedQuery, error) {
	material, err := deps.Assembler.Render(ctx, "interactive_query", promptassembler.RequestContext{
		SessionID: wr.Request.SessionID,
		RequestID: wr.Request.RequestID,
		DB:        wr.Request.DB,
		Extra:     map[string]any{"request_text": wr.Request.Request},
	}, nil, vars)
	if err != nil {
		return GeneratedQuery{}, fmt.Errorf("rendering interactive_query slot: %w", err)
	}

	var generated GeneratedQuery

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: material.PromptText},
		{Role: llm.RoleUser, Content: wr.Request.Request},
	}

	if err := deps.LLM.CompleteStructured(ctx, messages, &generated, wr.Request.Model); err != nil {
		return GeneratedQuery{}, fmt.Errorf("generating query: %w", err)
	}

	LogSyntaxWarning(mlog.FromContext(ctx), generated.SQL)

	return generated, nil
}

func attemptSQL(ctx context.Context, deps Deps, wr WorkerRequest, session requeststore.Session, generated GeneratedQuery, parents []string, status *requeststore.Status) mretry.Result {
	logger := mlog.FromContext(ctx)

	preflight, err := deps.Warehouse.Preflight(ctx, generated.SQL)
	if err != nil {
		return mretry.Result{Err: err}
	}

	if preflight.Err != "" {
		advanceStatus(ctx, deps, wr, status, requeststore.StatusRetry, preflight.Err)

		return mretry.Result{}
	}

	if _, err := deps.Warehouse.Count(ctx, generated.SQL); err != nil {
		logger.Warnf("counting rows failed (non-fatal): %v", err)
	}

	metadata := requeststore.QueryMetadata{
		SQL:         generated.SQL,
		Summary:     generated.Summary,
		Description: generated.Description,
		Parents:     parents,
	}

	if err := deps.Store.UpdateQueryMetadata(ctx, session.ID, wr.User, metadata); err != nil {
		return mretry.Result{Err: err}
	}

	var parentID *string
	if session.Metadata != nil && session.Metadata.ID != "" {
		parentID = &session.Metadata.ID
	}

	query, err := deps.Store.CreateQuery(ctx, requeststore.CreateQueryFields{
		Request:     wr.Request.Request,
		Summary:     generated.Summary,
		Description: generated.Description,
		SQL:         generated.SQL,
		AIGenerated: true,
		DBDialect:   "clickhouse",
		ParentID:    parentID,
	})
	if err != nil {
		return mretry.Result{Err: err}
	}

	if _, err := deps.Store.UpdateRequest(ctx, requeststore.UpdateRequestFields{
		RequestID: wr.Request.RequestID,
		QueryID:   &query.QueryID,
	}); err != nil {
		logger.Warnf("linking request to query failed: %v", err)
	}

	advanceStatus(ctx, deps, wr, status, requeststore.StatusFinalizing, "")

	return mretry.Result{Done: true, Final: generated}
}

func dispatchDataAnalysis(ctx context.Context, deps Deps, wr WorkerRequest, vars map[string]any) (WorkerRequest, error) {
	material, err := deps.Assembler.Render(ctx, "interactive_query", promptassembler.RequestContext{
		SessionID: wr.Request.SessionID,
		RequestID: wr.Request.RequestID,
	}, nil, vars)
	if err != nil {
		return wr, markError(ctx, deps, wr, fmt.Sprintf("rendering interactive_query slot: %v", err))
	}

	text, err := deps.LLM.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: material.PromptText},
		{Role: llm.RoleUser, Content: wr.Request.Request},
	})
	if err != nil {
		return wr, markError(ctx, deps, wr, fmt.Sprintf("data analysis: %v", err))
	}

	status := requeststore.StatusIntent
	advanceStatus(ctx, deps, wr, &status, requeststore.StatusFinalizing, "")

	return finishWithFields(ctx, deps, wr, requeststore.StatusDone, requeststore.UpdateRequestFields{
		RequestID: wr.Request.RequestID,
		Response:  &text,
	})
}

func dispatchChat(ctx context.Context, deps Deps, wr WorkerRequest, vars map[string]any) (WorkerRequest, error) {
	text, err := deps.LLM.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: wr.Request.Request}})
	if err != nil {
		return wr, markError(ctx, deps, wr, fmt.Sprintf("chat: %v", err))
	}

	return finishWithFields(ctx, deps, wr, requeststore.StatusDone, requeststore.UpdateRequestFields{
		RequestID: wr.Request.RequestID,
		Response:  &text,
	})
}

func markError(ctx context.Context, deps Deps, wr WorkerRequest, message string) error {
	if err := deps.Store.UpdateStatus(ctx, wr.Request.RequestID, requeststore.StatusError, message); err != nil {
		mlog.FromContext(ctx).Errorf("persisting Error status failed: %v", err)
	}

	return errors.New(message)
}

func finish(ctx context.Context, deps Deps, wr WorkerRequest, message string, status requeststore.Status) (WorkerRequest, error) {
	if err := deps.Store.UpdateStatus(ctx, wr.Request.RequestID, status, message); err != nil {
		return wr, err
	}

	return wr, nil
}

func finishWithFields(ctx context.Context, deps Deps, wr WorkerRequest, status requeststore.Status, fields requeststore.UpdateRequestFields) (WorkerRequest, error) {
	updated, err := deps.Store.UpdateRequest(ctx, fields)
	if err != nil {
		return wr, err
	}

	if err := deps.Store.UpdateStatus(ctx, wr.Request.RequestID, status, ""); err != nil {
		return wr, err
	}

	wr.Request = updated

	return wr, nil
}
