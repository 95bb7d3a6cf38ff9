package mcp

import (
	"context"

	"github.com/kestrelhq/nlsql/internal/promptassembler"
)

// DBRefProvider supplies domain lookups (spec §4.1: "db-ref supplies
// domain lookups"), implemented as prior similar requests retrieved from
// a SimilarQueryIndex.
type DBRefProvider struct {
	index SimilarQueryIndex
	topK  int
}

// NewDBRefProvider builds a provider backed by index, returning at most
// topK similar queries per slot render.
func NewDBRefProvider(index SimilarQueryIndex, topK int) *DBRefProvider {
	return &DBRefProvider{index: index, topK: topK}
}

// Name identifies this provider in manifest optional_providers lists.
func (p *DBRefProvider) Name() string { return "db-ref" }

// VarsForSlot looks up requests similar to the one carried in reqCtx.Extra
// under "request_text", returning them under "similar_queries".
func (p *DBRefProvider) VarsForSlot(ctx context.Context, _ string, reqCtx promptassembler.RequestContext) (map[string]any, error) {
	requestText, _ := reqCtx.Extra["request_text"].(string)
	if requestText == "" {
		return map[string]any{"similar_queries": []SimilarQuery{}}, nil
	}

	hits, err := p.index.Search(ctx, requestText, p.topK)
	if err != nil {
		return nil, err
	}

	return map[string]any{"similar_queries": hits}, nil
}
