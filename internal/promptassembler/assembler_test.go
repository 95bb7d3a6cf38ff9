package promptassembler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/packstore"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
)

type fakeProvider struct {
	name string
	vars map[string]any
	err  error
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) VarsForSlot(_ context.Context, _ string, _ promptassembler.RequestContext) (map[string]any, error) {
	return f.vars, f.err
}

func TestRender_SlotNotFound(t *testing.T) {
	asm := promptassembler.New(packstore.Tree{}, packstore.Manifest{}, nil)

	_, err := asm.Render(context.Background(), "planner", promptassembler.RequestContext{}, nil, nil)

	var notFound promptassembler.SlotNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestRender_ExplicitVariablesOverrideProviderVariables(t *testing.T) {
	tree := packstore.Tree{"slots/planner.jinja": []byte("schema=${schema}")}

	provider := fakeProvider{name: "db-meta", vars: map[string]any{"schema": "from-provider"}}

	asm := promptassembler.New(tree, packstore.Manifest{}, []promptassembler.MCPProvider{provider})

	material, err := asm.Render(context.Background(), "planner", promptassembler.RequestContext{}, nil, map[string]any{"schema": "from-caller"})
	require.NoError(t, err)
	assert.Equal(t, "schema=from-caller", material.PromptText)
	assert.NotEmpty(t, material.Lineage.TemplatePathHash)
	assert.NotEmpty(t, material.Lineage.FinalVariablesHash)
}

func TestRender_OptionalProviderFailureIsTolerated(t *testing.T) {
	tree := packstore.Tree{"slots/planner.jinja": []byte("static text")}

	manifest := packstore.Manifest{
		Slots: map[string]packstore.SlotManifestEntry{
			"planner": {OptionalProviders: []string{"db-ref"}},
		},
	}

	failing := fakeProvider{name: "db-ref", err: assert.AnError}

	asm := promptassembler.New(tree, manifest, []promptassembler.MCPProvider{failing})

	_, err := asm.Render(context.Background(), "planner", promptassembler.RequestContext{}, nil, nil)
	require.NoError(t, err)
}

func TestRender_PrecedenceDefaultsBelowCapsBelowProvidersBelowExplicit(t *testing.T) {
	tree := packstore.Tree{"slots/planner.jinja": []byte("${a} ${b} ${c} ${d}")}

	manifest := packstore.Manifest{
		Slots: map[string]packstore.SlotManifestEntry{
			"planner": {Defaults: map[string]any{"a": "default", "b": "default", "c": "default", "d": "default"}},
		},
	}

	provider := fakeProvider{name: "db-meta", vars: map[string]any{"c": "provider", "d": "provider"}}

	asm := promptassembler.New(tree, manifest, []promptassembler.MCPProvider{provider})

	mcpCaps := map[string]any{"b": "caps", "c": "caps"}
	explicit := map[string]any{"d": "explicit"}

	material, err := asm.Render(context.Background(), "planner", promptassembler.RequestContext{}, mcpCaps, explicit)
	require.NoError(t, err)
	assert.Equal(t, "default caps provider explicit", material.PromptText)
	assert.NotEmpty(t, material.Lineage.FinalVariablesHash)
}

func TestRender_RequiredProviderFailureAbortsRender(t *testing.T) {
	tree := packstore.Tree{"slots/planner.jinja": []byte("static text")}

	failing := fakeProvider{name: "db-meta", err: assert.AnError}

	asm := promptassembler.New(tree, packstore.Manifest{}, []promptassembler.MCPProvider{failing})

	_, err := asm.Render(context.Background(), "planner", promptassembler.RequestContext{}, nil, nil)
	require.Error(t, err)

	var renderErr promptassembler.RenderError
	require.ErrorAs(t, err, &renderErr)
}
