// Package mopentelemetry provides the tracer-in-context plumbing used at
// every suspension point named in spec §5: LLM calls, warehouse calls,
// persistent store operations, and MCP provider calls.
package mopentelemetry

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracerCtxKey struct{}

// ContextWithTracer stashes a tracer for later retrieval by TracerFromContext.
func ContextWithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	return context.WithValue(ctx, tracerCtxKey{}, tracer)
}

// TracerFromContext returns the tracer attached to ctx, or a default one.
//
//nolint:ireturn
func TracerFromContext(ctx context.Context) trace.Tracer {
	if t, ok := ctx.Value(tracerCtxKey{}).(trace.Tracer); ok && t != nil {
		return t
	}

	return otel.Tracer("nlsql")
}

// SetSpanAttributesFromStruct JSON-encodes a value and attaches it as a
// single string attribute, the way handlers log request payloads.
func SetSpanAttributesFromStruct(span *trace.Span, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}

	(*span).SetAttributes(attribute.String(key, string(b)))

	return nil
}

// HandleSpanError records err on span and marks it as failed.
func HandleSpanError(span *trace.Span, message string, err error) {
	(*span).SetStatus(codes.Error, message+": "+err.Error())
	(*span).RecordError(err)
}
