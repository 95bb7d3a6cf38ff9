package promptassembler

import (
	"context"
	"fmt"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelhq/nlsql/internal/packstore"
)

// Assembler renders slot templates from an already-assembled pack tree
// (spec §4.3). One Assembler is built per effective tree/manifest pair and
// reused across the requests that share it.
type Assembler struct {
	Tree      packstore.Tree
	Manifest  packstore.Manifest
	Providers []MCPProvider
}

// New builds an Assembler over an effective tree and its parsed manifest,
// wired to the given providers (typically db-meta and db-ref adapters).
func New(tree packstore.Tree, manifest packstore.Manifest, providers []MCPProvider) *Assembler {
	return &Assembler{Tree: tree, Manifest: manifest, Providers: providers}
}

func slotTemplatePath(slot string) string {
	return path.Join("slots", slot+".jinja")
}

// Render evaluates one slot's template. Variable precedence, lowest to
// highest: pack defaults, mcp_caps, declared MCP provider outputs, then the
// caller's explicit variables (spec §4.3 step 2).
func (a *Assembler) Render(ctx context.Context, slot string, reqCtx RequestContext, mcpCaps, explicit map[string]any) (SlotMaterial, error) {
	templateBytes, ok := a.Tree[slotTemplatePath(slot)]
	if !ok {
		return SlotMaterial{}, SlotNotFound{Slot: slot}
	}

	entry := a.Manifest.Slots[slot]
	optional := make(map[string]bool, len(entry.OptionalProviders))

	for _, name := range entry.OptionalProviders {
		optional[name] = true
	}

	providerVars, err := a.gatherProviderVars(ctx, slot, reqCtx, optional)
	if err != nil {
		return SlotMaterial{}, err
	}

	merged := map[string]any{}

	for k, v := range entry.Defaults {
		merged[k] = v
	}

	for k, v := range mcpCaps {
		merged[k] = v
	}

	for k, v := range providerVars {
		merged[k] = v
	}

	for k, v := range explicit {
		merged[k] = v
	}

	rendered, err := evalTemplate(string(templateBytes), merged)
	if err != nil {
		return SlotMaterial{}, RenderError{Slot: slot, Reason: err.Error()}
	}

	lineage := Lineage{
		TemplatePathHash:   sha256Hex(templateBytes),
		InputFilesHash:     hashOfTree(a.Tree),
		ProviderVarsHash:   hashOfVariables(providerVars),
		FinalVariablesHash: hashOfVariables(merged),
	}

	return SlotMaterial{Slot: slot, PromptText: rendered, Lineage: lineage}, nil
}

// gatherProviderVars fans the slot out to every configured MCP provider
// concurrently. A provider not listed as optional for this slot that fails
// aborts the render; an optional provider's failure is swallowed and its
// variables are simply absent.
func (a *Assembler) gatherProviderVars(ctx context.Context, slot string, reqCtx RequestContext, optional map[string]bool) (map[string]any, error) {
	type result struct {
		name string
		vars map[string]any
	}

	results := make([]result, len(a.Providers))

	g, gctx := errgroup.WithContext(ctx)

	for i, p := range a.Providers {
		i, p := i, p

		g.Go(func() error {
			vars, err := p.VarsForSlot(gctx, slot, reqCtx)
			if err != nil {
				if optional[p.Name()] {
					return nil
				}

				return fmt.Errorf("required provider %s: %w", p.Name(), err)
			}

			results[i] = result{name: p.Name(), vars: vars}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, RenderError{Slot: slot, Reason: err.Error()}
	}

	merged := map[string]any{}

	for _, r := range results {
		for k, v := range r.vars {
			merged[k] = v
		}
	}

	return merged, nil
}
