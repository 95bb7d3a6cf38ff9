package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/query"
)

func TestPageCache_NilClientIsAlwaysAMiss(t *testing.T) {
	cache := query.NewPageCache(nil, nil)

	_, ok := cache.Get(context.Background(), "q1", 10, 0, "", "")
	require.False(t, ok)

	cache.Set(context.Background(), 10, 0, "", "", query.Page{QueryID: "q1"})
}

func TestPageCache_NilReceiverIsSafe(t *testing.T) {
	var cache *query.PageCache

	_, ok := cache.Get(context.Background(), "q1", 10, 0, "", "")
	require.False(t, ok)

	cache.Set(context.Background(), 10, 0, "", "", query.Page{QueryID: "q1"})
}
