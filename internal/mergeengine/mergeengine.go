// Package mergeengine implements the extended JSON-merge-patch used to
// compose prompt-pack overlays (spec §4.1): RFC 7386 semantics plus list
// merge strategies (append, unique, by_id, override) driven by meta keys
// (strategy, id_key, strategies, id_keys, __list__).
package mergeengine

import (
	"fmt"
)

// ListStrategy names one of the four supported list-merge behaviors.
type ListStrategy string

const (
	StrategyAppend   ListStrategy = "append"
	StrategyUnique   ListStrategy = "unique"
	StrategyByID     ListStrategy = "by_id"
	StrategyOverride ListStrategy = "override"
)

// ConfigError is raised for malformed strategy configuration: an unknown
// list strategy name or a by_id strategy missing its id_key.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string { return "mergeengine: " + e.Reason }

// defaults carries the strategy/id_key in force at a given recursion depth,
// inherited from the caller unless overridden (spec §4.1 precedence rule).
type defaults struct {
	strategy ListStrategy
	idKey    string
	named    namedOverrides
}

// namedOverrides holds the strategies/id_keys sibling maps accumulated from
// every ancestor patch map on the path from the root. A strategies/id_keys
// map declared at one level applies by key-name match at whatever depth a
// matching key is later reached, not only to that map's direct siblings
// (spec §4.1 precedence rule) — so these maps travel down through every
// recursive mergeMaps call rather than being re-read fresh at each level.
type namedOverrides struct {
	strategies map[string]ListStrategy
	idKeys     map[string]string
}

// Merge performs the extended JSON-merge-patch of patch onto base and
// returns the resulting document. base and patch must each be one of
// map[string]any, []any, a scalar, or nil, as produced by a JSON/YAML
// decoder.
func Merge(base, patch any) (any, error) {
	return mergeValue(base, patch, defaults{strategy: StrategyAppend})
}

func mergeValue(base, patch any, d defaults) (any, error) {
	patchMap, patchIsMap := patch.(map[string]any)
	baseMap, baseIsMap := base.(map[string]any)

	if patchIsMap && baseIsMap {
		return mergeMaps(baseMap, patchMap, d)
	}

	if baseList, ok := base.([]any); ok {
		// Wrapped-list form: a mapping patch against a base list is only
		// valid if it carries list-merge meta keys.
		if patchIsMap && hasListMeta(patchMap) {
			return mergeWrappedList(baseList, patchMap, d)
		}

		if patchList, ok := patch.([]any); ok {
			return mergeList(baseList, patchList, d)
		}
	}

	if patchIsMap {
		// A mapping patch against a non-mapping base (including a key absent
		// from base) merges into an empty mapping, as RFC 7386 does, so its
		// nulls are dropped and its meta keys are not emitted.
		return mergeMaps(map[string]any{}, patchMap, d)
	}

	// Non-mapping, non-matching-list patch: replace base entirely (RFC 7386
	// "If the value is anything other than an object, the result will be
	// to replace the value").
	return patch, nil
}

func hasListMeta(m map[string]any) bool {
	for _, k := range []string{"__list__", "strategy", "id_key"} {
		if _, ok := m[k]; ok {
			return true
		}
	}

	return false
}

func mergeWrappedList(base []any, wrapper map[string]any, d defaults) (any, error) {
	inner := wrapper
	if listVal, ok := wrapper["__list__"]; ok {
		if listMap, ok := listVal.(map[string]any); ok {
			inner = listMap
		} else if listSlice, ok := listVal.([]any); ok {
			// __list__ directly carries the replacement list, governed by
			// the strategy/id_key sitting alongside it.
			local, err := localDefaults(wrapper, d)
			if err != nil {
				return nil, err
			}

			return mergeList(base, listSlice, local)
		}
	}

	local, err := localDefaults(inner, d)
	if err != nil {
		return nil, err
	}

	patchList, _ := inner["items"].([]any)

	return mergeList(base, patchList, local)
}

// mergeMaps implements the mapping-vs-mapping contract: null deletes,
// non-null recurses, with list-strategy meta keys extracted and never
// emitted into the result (spec §4.1).
func mergeMaps(base, patch map[string]any, d defaults) (map[string]any, error) {
	local, err := localDefaults(patch, d)
	if err != nil {
		return nil, err
	}

	named, err := mergeNamedOverrides(d.named, patch)
	if err != nil {
		return nil, err
	}

	local.named = named

	result := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range patch {
		if isMetaKey(k) {
			continue
		}

		if v == nil {
			delete(result, k)
			continue
		}

		childDefaults := local

		if strat, ok := named.strategies[k]; ok {
			childDefaults.strategy = strat
		}

		if idk, ok := named.idKeys[k]; ok {
			childDefaults.idKey = idk
		}

		merged, err := mergeValue(result[k], v, childDefaults)
		if err != nil {
			return nil, err
		}

		result[k] = merged
	}

	return result, nil
}

// mergeNamedOverrides folds this patch map's own strategies/id_keys
// declarations into the set inherited from ancestors, so the combined set
// keeps traveling down to whatever depth the named keys are eventually
// reached. A declaration at this level takes precedence over one inherited
// from further up for the same key name.
func mergeNamedOverrides(inherited namedOverrides, patch map[string]any) (namedOverrides, error) {
	out := inherited

	if raw, ok := patch["strategies"].(map[string]any); ok {
		merged := make(map[string]ListStrategy, len(inherited.strategies)+len(raw))
		for k, v := range inherited.strategies {
			merged[k] = v
		}

		for k, v := range raw {
			strat, err := parseStrategy(v)
			if err != nil {
				return namedOverrides{}, err
			}

			merged[k] = strat
		}

		out.strategies = merged
	}

	if raw, ok := patch["id_keys"].(map[string]any); ok {
		merged := make(map[string]string, len(inherited.idKeys)+len(raw))
		for k, v := range inherited.idKeys {
			merged[k] = v
		}

		for k, v := range raw {
			if s, ok := v.(string); ok {
				merged[k] = s
			}
		}

		out.idKeys = merged
	}

	return out, nil
}

func isMetaKey(k string) bool {
	switch k {
	case "strategy", "id_key", "strategies", "id_keys", "__list__":
		return true
	default:
		return false
	}
}

// localDefaults resolves this patch node's own strategy/id_key defaults,
// falling back to what was inherited from the caller.
func localDefaults(patch map[string]any, inherited defaults) (defaults, error) {
	out := inherited

	if raw, ok := patch["strategy"]; ok {
		strat, err := parseStrategy(raw)
		if err != nil {
			return defaults{}, err
		}

		out.strategy = strat
	}

	if raw, ok := patch["id_key"]; ok {
		if s, ok := raw.(string); ok {
			out.idKey = s
		}
	}

	return out, nil
}

func parseStrategy(raw any) (ListStrategy, error) {
	s, ok := raw.(string)
	if !ok {
		return "", ConfigError{Reason: fmt.Sprintf("strategy must be a string, got %T", raw)}
	}

	switch ListStrategy(s) {
	case StrategyAppend, StrategyUnique, StrategyByID, StrategyOverride:
		return ListStrategy(s), nil
	default:
		return "", ConfigError{Reason: fmt.Sprintf("unknown list strategy %q", s)}
	}
}

func mergeList(base, patch []any, d defaults) ([]any, error) {
	switch d.strategy {
	case "", StrategyAppend:
		out := make([]any, 0, len(base)+len(patch))
		out = append(out, base...)
		out = append(out, patch...)

		return out, nil
	case StrategyUnique:
		return mergeUnique(base, patch), nil
	case StrategyByID:
		if d.idKey == "" {
			return nil, ConfigError{Reason: "by_id strategy requires an id_key"}
		}

		return mergeByID(base, patch, d.idKey), nil
	case StrategyOverride:
		out := make([]any, len(patch))
		copy(out, patch)

		return out, nil
	default:
		return nil, ConfigError{Reason: fmt.Sprintf("unknown list strategy %q", d.strategy)}
	}
}

func mergeUnique(base, patch []any) []any {
	out := make([]any, 0, len(base)+len(patch))
	seen := make([]any, 0, len(base)+len(patch))

	add := func(v any) {
		for _, s := range seen {
			if deepEqual(s, v) {
				return
			}
		}

		seen = append(seen, v)
		out = append(out, v)
	}

	for _, v := range base {
		add(v)
	}

	for _, v := range patch {
		add(v)
	}

	return out
}

// mergeByID treats list items as objects keyed by idKey: patch items with a
// matching id replace the base item in place; patch items with a new id (or
// lacking idKey, keyed by their string form) append in patch order after
// all base survivors (spec §4.1 determinism rule).
func mergeByID(base, patch []any, idKey string) []any {
	type entry struct {
		key   string
		value any
	}

	baseEntries := make([]entry, 0, len(base))
	baseIndex := make(map[string]int, len(base))

	for _, v := range base {
		key := idOf(v, idKey)
		baseEntries = append(baseEntries, entry{key: key, value: v})
		baseIndex[key] = len(baseEntries) - 1
	}

	var appended []entry

	appendedIndex := make(map[string]int, len(patch))

	for _, v := range patch {
		key := idOf(v, idKey)

		if idx, ok := baseIndex[key]; ok {
			baseEntries[idx].value = v
			continue
		}

		if idx, ok := appendedIndex[key]; ok {
			appended[idx].value = v
			continue
		}

		appended = append(appended, entry{key: key, value: v})
		appendedIndex[key] = len(appended) - 1
	}

	out := make([]any, 0, len(baseEntries)+len(appended))

	for _, e := range baseEntries {
		out = append(out, e.value)
	}

	for _, e := range appended {
		out = append(out, e.value)
	}

	return out
}

func idOf(v any, idKey string) string {
	if m, ok := v.(map[string]any); ok {
		if id, ok := m[idKey]; ok {
			return fmt.Sprintf("%v", id)
		}
	}

	return fmt.Sprintf("%v", v)
}

func deepEqual(a, b any) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}
