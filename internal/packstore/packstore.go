// Package packstore assembles the content-addressed, immutable tree of
// prompt-pack files produced by overlaying a versioned base "system pack"
// with zero or more tenant/environment overlays (spec §4.2).
package packstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kestrelhq/nlsql/internal/mergeengine"
)

// Tree maps a POSIX-style relative path to its immutable byte contents.
type Tree map[string][]byte

// OverlayError indicates an overlay directory could not be read or an
// overlay file could not be merged into the base tree.
type OverlayError struct {
	Path   string
	Reason string
}

func (e OverlayError) Error() string {
	return fmt.Sprintf("overlay error at %s: %s", e.Path, e.Reason)
}

var versionDirPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

// semverKey sorts directory names as the (major, minor, patch) triple; names
// that don't match v?X.Y.Z sort before all valid versions, ordered
// lexicographically among themselves (spec §4.2 step 1).
type semverKey struct {
	major, minor, patch int
	isSemver            bool
	name                string
}

func parseSemverDir(name string) semverKey {
	m := versionDirPattern.FindStringSubmatch(name)
	if m == nil {
		return semverKey{name: name}
	}

	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	return semverKey{major: major, minor: minor, patch: patch, isSemver: true, name: name}
}

func (k semverKey) less(other semverKey) bool {
	if k.isSemver != other.isSemver {
		return !k.isSemver // non-semver sorts before semver
	}

	if !k.isSemver {
		return k.name < other.name
	}

	if k.major != other.major {
		return k.major < other.major
	}

	if k.minor != other.minor {
		return k.minor < other.minor
	}

	return k.patch < other.patch
}

// LatestSystemPackDir returns the highest-versioned system-pack directory
// name under <root>/resources/<component>/system-pack/.
func LatestSystemPackDir(fsys fs.FS, component string) (string, error) {
	base := path.Join("resources", component, "system-pack")

	entries, err := fs.ReadDir(fsys, base)
	if err != nil {
		return "", OverlayError{Path: base, Reason: err.Error()}
	}

	var dirs []string

	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}

	if len(dirs) == 0 {
		return "", OverlayError{Path: base, Reason: "no system-pack versions found"}
	}

	sort.Slice(dirs, func(i, j int) bool {
		return parseSemverDir(dirs[i]).less(parseSemverDir(dirs[j]))
	})

	return dirs[len(dirs)-1], nil
}

// OverlayDirs returns the three overlay directories applied in order, per
// spec §4.2 step 2 (a, b, c). Directories that don't exist are simply
// skipped by Assemble; this function only computes the candidate paths.
func OverlayDirs(component, client, env, profile string) []string {
	envOrCommon := env
	if envOrCommon == "" {
		envOrCommon = "common"
	}

	return []string{
		path.Join("client-configs", client, "common", component, "overlays"),
		path.Join("client-configs", client, env, component, "overlays"),
		path.Join("client-configs", client, envOrCommon, component, "overlays", "profiles", profile),
	}
}

// Assemble builds the effective tree for (component, client, env, profile):
// the latest system pack overlaid, in order, by the three overlay
// directories (spec §4.2).
func Assemble(fsys fs.FS, root, component, client, env, profile string) (Tree, Manifest, error) {
	version, err := LatestSystemPackDir(fsys, component)
	if err != nil {
		return nil, Manifest{}, err
	}

	basePath := path.Join("resources", component, "system-pack", version)

	tree, err := readTree(fsys, basePath)
	if err != nil {
		return nil, Manifest{}, err
	}

	for _, overlayDir := range OverlayDirs(component, client, env, profile) {
		overlayTree, err := readTree(fsys, overlayDir)
		if err != nil {
			continue // a missing overlay directory is not an error
		}

		if err := applyOverlay(tree, overlayTree); err != nil {
			return nil, Manifest{}, err
		}
	}

	manifestBytes, ok := tree["manifest.yaml"]
	if !ok {
		return nil, Manifest{}, PackValidationError{Reason: "effective tree has no manifest.yaml"}
	}

	manifest, err := ParseManifest(manifestBytes)
	if err != nil {
		return nil, Manifest{}, err
	}

	return tree, manifest, nil
}

// readTree walks dir (if present) collecting every non-hidden file's bytes,
// keyed by its POSIX path relative to dir.
func readTree(fsys fs.FS, dir string) (Tree, error) {
	tree := make(Tree)

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		for _, seg := range strings.Split(p, "/") {
			if strings.HasPrefix(seg, ".") {
				return nil
			}
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}

		tree[rel] = data

		return nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}

var mergeableExt = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// applyOverlay merges overlayTree into base in place, per spec §4.2 step 3:
// structured merge for JSON/YAML files that both parse as mappings,
// byte replacement otherwise.
func applyOverlay(base, overlay Tree) error {
	for relPath, overlayBytes := range overlay {
		baseBytes, existed := base[relPath]

		if !existed {
			base[relPath] = overlayBytes
			continue
		}

		ext := strings.ToLower(path.Ext(relPath))

		if !mergeableExt[ext] {
			base[relPath] = overlayBytes
			continue
		}

		baseDoc, baseIsMap := decodeMapping(baseBytes)
		overlayDoc, overlayIsMap := decodeMapping(overlayBytes)

		if !baseIsMap || !overlayIsMap {
			base[relPath] = overlayBytes
			continue
		}

		merged, err := mergeengine.Merge(baseDoc, overlayDoc)
		if err != nil {
			return OverlayError{Path: relPath, Reason: err.Error()}
		}

		canonical, err := canonicalYAML(merged)
		if err != nil {
			return OverlayError{Path: relPath, Reason: err.Error()}
		}

		base[relPath] = canonical
	}

	return nil
}

func decodeMapping(raw []byte) (map[string]any, bool) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}

	return doc, doc != nil
}

// canonicalYAML serializes a merged document deterministically: map keys
// sorted, yaml.v3's default 4-space indent, no document markers. Required so identical inputs
// always produce byte-identical outputs (spec §3 invariant, §8 scenario 3).
func canonicalYAML(doc any) ([]byte, error) {
	node, err := nodeFor(doc)
	if err != nil {
		return nil, err
	}

	return yaml.Marshal(node)
}

// nodeFor builds a yaml.Node tree by hand, sorting map keys at every level,
// so the resulting document is byte-stable regardless of Go map iteration
// order.
func nodeFor(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

		for _, k := range keys {
			valNode, err := nodeFor(t[k])
			if err != nil {
				return nil, err
			}

			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, valNode)
		}

		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}

		for _, item := range t {
			itemNode, err := nodeFor(item)
			if err != nil {
				return nil, err
			}

			node.Content = append(node.Content, itemNode)
		}

		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(t); err != nil {
			return nil, err
		}

		return node, nil
	}
}

// ContentHash computes SHA-256 over the sorted (rel-path, bytes) pairs of
// the tree, giving every effective tree a stable lineage fingerprint.
func ContentHash(tree Tree) string {
	paths := make([]string, 0, len(tree))
	for p := range tree {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	h := sha256.New()

	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(tree[p])
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
