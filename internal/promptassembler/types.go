// Package promptassembler renders named prompt "slots" from the effective
// pack tree, gathering variables from callers and MCP providers (spec §4.3).
package promptassembler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/kestrelhq/nlsql/internal/packstore"
)

// RequestContext carries whatever identifiers a provider needs to scope its
// answer (session/request id, organization, db connection name, ...).
type RequestContext struct {
	SessionID string
	RequestID string
	DB        string
	Extra     map[string]any
}

// MCPProvider is the capability/variable provider contract consulted by the
// assembler (spec §4.4): db-meta supplies schema/query-analysis variables,
// db-ref supplies domain lookups. Concrete adapters live in internal/mcp.
type MCPProvider interface {
	Name() string
	VarsForSlot(ctx context.Context, slot string, reqCtx RequestContext) (map[string]any, error)
}

// Lineage records the content hashes feeding one render, enabling
// reproducible-prompt debugging (spec §3 SlotMaterial.lineage).
type Lineage struct {
	TemplatePathHash  string `json:"template_path_hash"`
	InputFilesHash    string `json:"input_files_hash"`
	ProviderVarsHash  string `json:"provider_vars_hash"`
	FinalVariablesHash string `json:"final_variables_hash"`
}

// SlotMaterial is the result of rendering one slot.
type SlotMaterial struct {
	Slot       string
	PromptText string
	Extras     map[string][]byte
	Lineage    Lineage
}

// SlotNotFound indicates the effective tree has no template for the slot.
type SlotNotFound struct {
	Slot string
}

func (e SlotNotFound) Error() string { return "slot not found: " + e.Slot }

// RenderError indicates template evaluation failed, or a required provider
// failed and isn't declared optional for the slot.
type RenderError struct {
	Slot   string
	Reason string
}

func (e RenderError) Error() string { return "render error for slot " + e.Slot + ": " + e.Reason }

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// hashOfVariables produces a stable hash over a variable map regardless of
// Go's randomized map iteration order, by hashing its sorted-key JSON form.
func hashOfVariables(vars map[string]any) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, vars[k])
	}

	b, _ := json.Marshal(ordered)

	return sha256Hex(b)
}

func hashOfTree(tree packstore.Tree) string {
	return packstore.ContentHash(tree)
}
