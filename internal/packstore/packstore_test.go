package packstore_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/packstore"
)

func baseFS() fstest.MapFS {
	return fstest.MapFS{
		"resources/db-meta/system-pack/v1.2.0/manifest.yaml": &fstest.MapFile{
			Data: []byte("version: \"1.2.0\"\ntarget_component: db-meta\n"),
		},
		"resources/db-meta/system-pack/v1.2.0/slots/planner.jinja": &fstest.MapFile{
			Data: []byte("base planner"),
		},
		"resources/db-meta/system-pack/v0.9.0/manifest.yaml": &fstest.MapFile{
			Data: []byte("version: \"0.9.0\"\n"),
		},
		"resources/db-meta/system-pack/v1.10.0/manifest.yaml": &fstest.MapFile{
			Data: []byte("version: \"1.10.0\"\ntarget_component: db-meta\n"),
		},
		"resources/db-meta/system-pack/v1.10.0/slots/planner.jinja": &fstest.MapFile{
			Data: []byte("base planner"),
		},
	}
}

func TestLatestSystemPackDir_SemverOrdering(t *testing.T) {
	v, err := packstore.LatestSystemPackDir(baseFS(), "db-meta")
	require.NoError(t, err)
	assert.Equal(t, "v1.10.0", v, "1.10.0 must sort after 1.2.0 numerically, not lexically")
}

func TestAssemble_MergesYAMLOverlayAndReplacesOtherFiles(t *testing.T) {
	fsys := baseFS()
	fsys["client-configs/acme/common/db-meta/overlays/manifest.yaml"] = &fstest.MapFile{
		Data: []byte("pack_name: acme-pack\n"),
	}
	fsys["client-configs/acme/common/db-meta/overlays/slots/planner.jinja"] = &fstest.MapFile{
		Data: []byte("acme planner"),
	}

	tree, manifest, err := packstore.Assemble(fsys, "", "db-meta", "acme", "prod", "default")
	require.NoError(t, err)

	assert.Equal(t, "acme-pack", manifest.PackName)
	assert.Equal(t, "db-meta", string(manifest.TargetComponent))
	assert.Equal(t, "acme planner", string(tree["slots/planner.jinja"]))
}

func TestContentHash_Deterministic(t *testing.T) {
	tree1 := packstore.Tree{"a": []byte("1"), "b": []byte("2")}
	tree2 := packstore.Tree{"b": []byte("2"), "a": []byte("1")}

	assert.Equal(t, packstore.ContentHash(tree1), packstore.ContentHash(tree2))
}

func TestContentHash_DiffersOnContentChange(t *testing.T) {
	tree1 := packstore.Tree{"a": []byte("1")}
	tree2 := packstore.Tree{"a": []byte("2")}

	assert.NotEqual(t, packstore.ContentHash(tree1), packstore.ContentHash(tree2))
}

func TestParseManifest_RequiresVersion(t *testing.T) {
	_, err := packstore.ParseManifest([]byte("pack_name: x\n"))
	require.Error(t, err)

	var verr packstore.PackValidationError
	require.ErrorAs(t, err, &verr)
}

func TestParseManifest_RejectsUnknownTargetComponent(t *testing.T) {
	_, err := packstore.ParseManifest([]byte("version: \"1.0.0\"\ntarget_component: not-a-real-component\n"))
	require.Error(t, err)
}
