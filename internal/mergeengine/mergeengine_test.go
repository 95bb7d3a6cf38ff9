package mergeengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/mergeengine"
)

func TestMerge_NullDeletesKey(t *testing.T) {
	base := map[string]any{"a": 1.0, "b": map[string]any{"c": 2.0}}
	patch := map[string]any{"b": nil}

	got, err := mergeengine.Merge(base, patch)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, got)
}

func TestMerge_RFC7386Equivalence_NoMetaKeys(t *testing.T) {
	base := map[string]any{"a": 1.0, "b": 2.0}
	patch := map[string]any{"b": 3.0, "c": 4.0}

	got, err := mergeengine.Merge(base, patch)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 3.0, "c": 4.0}, got)
}

func TestMerge_ScalarReplace(t *testing.T) {
	got, err := mergeengine.Merge("old", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestMerge_OverlayDeterminism_ByIDWithSiblingStrategies(t *testing.T) {
	base := map[string]any{
		"profiles": map[string]any{
			"wh": map[string]any{
				"examples": []any{
					map[string]any{"id": "a", "q": "1"},
					map[string]any{"id": "b", "q": "2"},
				},
			},
		},
	}

	patch := map[string]any{
		"strategies": map[string]any{"examples": "by_id"},
		"id_keys":    map[string]any{"examples": "id"},
		"profiles": map[string]any{
			"wh": map[string]any{
				"examples": []any{
					map[string]any{"id": "b", "q": "2.1"},
					map[string]any{"id": "c", "q": "3"},
				},
			},
		},
	}

	got, err := mergeengine.Merge(base, patch)
	require.NoError(t, err)

	wh := got.(map[string]any)["profiles"].(map[string]any)["wh"].(map[string]any)
	examples := wh["examples"].([]any)

	require.Len(t, examples, 3)
	assert.Equal(t, "a", examples[0].(map[string]any)["id"])
	assert.Equal(t, "1", examples[0].(map[string]any)["q"])
	assert.Equal(t, "b", examples[1].(map[string]any)["id"])
	assert.Equal(t, "2.1", examples[1].(map[string]any)["q"])
	assert.Equal(t, "c", examples[2].(map[string]any)["id"])

	// the strategies/id_keys meta keys never leak into the merged document
	_, hasStrategies := got.(map[string]any)["strategies"]
	assert.False(t, hasStrategies)
}

func TestMerge_ListStrategy_Unique(t *testing.T) {
	base := []any{"a", "b"}
	patch := map[string]any{
		"strategy": "unique",
		"items":    []any{"b", "c"},
	}

	got, err := mergeengine.Merge(base, patch)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, got)
}

func TestMerge_ListStrategy_Override(t *testing.T) {
	base := []any{"a", "b"}
	patch := map[string]any{
		"strategy": "override",
		"items":    []any{"z"},
	}

	got, err := mergeengine.Merge(base, patch)
	require.NoError(t, err)
	assert.Equal(t, []any{"z"}, got)
}

func TestMerge_UnknownListStrategy_ConfigError(t *testing.T) {
	base := []any{"a"}
	patch := map[string]any{"strategy": "bogus", "items": []any{"b"}}

	_, err := mergeengine.Merge(base, patch)
	require.Error(t, err)

	var cfgErr mergeengine.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestMerge_ByIDWithoutIDKey_ConfigError(t *testing.T) {
	base := []any{map[string]any{"id": "a"}}
	patch := map[string]any{"strategy": "by_id", "items": []any{map[string]any{"id": "b"}}}

	_, err := mergeengine.Merge(base, patch)
	require.Error(t, err)

	var cfgErr mergeengine.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestMerge_PlainListDefaultsToAppend(t *testing.T) {
	base := map[string]any{"tags": []any{"x"}}
	patch := map[string]any{"tags": []any{"y"}}

	got, err := mergeengine.Merge(base, patch)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, got.(map[string]any)["tags"])
}
