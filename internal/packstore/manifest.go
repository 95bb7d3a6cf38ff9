package packstore

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// TargetComponent enumerates the manifest's recognized target_component values.
type TargetComponent string

const (
	TargetFMApp TargetComponent = "fm_app"
	TargetDBMeta TargetComponent = "db-meta"
	TargetDBRef  TargetComponent = "db-ref"
)

// SlotManifestEntry describes one slot's declared provider dependencies, used
// by PromptAssembler to know which MCP providers are optional for a slot.
type SlotManifestEntry struct {
	OptionalProviders []string       `yaml:"optional_providers"`
	Defaults          map[string]any `yaml:"defaults"`
}

// Manifest is manifest.yaml's schema (spec §4.2).
type Manifest struct {
	Version         string                       `yaml:"version"`
	PackName        string                       `yaml:"pack_name"`
	TargetComponent TargetComponent              `yaml:"target_component"`
	Dependencies    []string                     `yaml:"dependencies"`
	Slots           map[string]SlotManifestEntry `yaml:"slots"`
	License         string                       `yaml:"license"`
	Provenance      string                       `yaml:"provenance"`
}

// PackValidationError indicates manifest.yaml failed schema validation.
type PackValidationError struct {
	Reason string
}

func (e PackValidationError) Error() string { return "pack validation: " + e.Reason }

var validTargets = map[TargetComponent]bool{
	TargetFMApp:  true,
	TargetDBMeta: true,
	TargetDBRef:  true,
}

// ParseManifest decodes and validates manifest.yaml bytes.
func ParseManifest(raw []byte) (Manifest, error) {
	var m Manifest

	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, PackValidationError{Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}

	if strings.TrimSpace(m.Version) == "" {
		return Manifest{}, PackValidationError{Reason: "manifest.yaml is missing required field 'version'"}
	}

	if m.TargetComponent != "" && !validTargets[m.TargetComponent] {
		return Manifest{}, PackValidationError{Reason: fmt.Sprintf("unrecognized target_component %q", m.TargetComponent)}
	}

	return m, nil
}
