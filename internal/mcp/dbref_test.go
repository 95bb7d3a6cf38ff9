package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	internalmcp "github.com/kestrelhq/nlsql/internal/mcp"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
)

type fakeIndex struct {
	hits []internalmcp.SimilarQuery
}

func (f fakeIndex) Search(context.Context, string, int) ([]internalmcp.SimilarQuery, error) {
	return f.hits, nil
}

func TestDBRefProvider_VarsForSlotReturnsSimilarQueries(t *testing.T) {
	index := fakeIndex{hits: []internalmcp.SimilarQuery{{Request: "top customers", SQL: "SELECT 1", Score: 0.9}}}
	provider := internalmcp.NewDBRefProvider(index, 5)

	reqCtx := promptassembler.RequestContext{Extra: map[string]any{"request_text": "show me top customers"}}

	vars, err := provider.VarsForSlot(context.Background(), "planner", reqCtx)
	require.NoError(t, err)
	require.Equal(t, index.hits, vars["similar_queries"])
}

func TestDBRefProvider_EmptyRequestTextSkipsLookup(t *testing.T) {
	provider := internalmcp.NewDBRefProvider(fakeIndex{hits: []internalmcp.SimilarQuery{{Request: "unused"}}}, 5)

	vars, err := provider.VarsForSlot(context.Background(), "planner", promptassembler.RequestContext{})
	require.NoError(t, err)
	require.Empty(t, vars["similar_queries"])
}
