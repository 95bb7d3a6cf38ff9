package menv_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/pkg/menv"
)

type testConfig struct {
	Name    string   `env:"MENV_TEST_NAME"`
	Port    int      `env:"MENV_TEST_PORT" envDefault:"8080"`
	Enabled bool     `env:"MENV_TEST_ENABLED" envDefault:"true"`
	Tags    []string `env:"MENV_TEST_TAGS"`
	Ignored string
}

func TestLoad_ReadsSetVariablesAndAppliesDefaults(t *testing.T) {
	t.Setenv("MENV_TEST_NAME", "nlsql")
	t.Setenv("MENV_TEST_TAGS", "a, b,c")
	os.Unsetenv("MENV_TEST_PORT")
	os.Unsetenv("MENV_TEST_ENABLED")

	var cfg testConfig

	require.NoError(t, menv.Load(&cfg))
	require.Equal(t, "nlsql", cfg.Name)
	require.Equal(t, 8080, cfg.Port)
	require.True(t, cfg.Enabled)
	require.Equal(t, []string{"a", "b", "c"}, cfg.Tags)
	require.Empty(t, cfg.Ignored)
}

func TestLoad_RejectsNonPointer(t *testing.T) {
	require.Error(t, menv.Load(testConfig{}))
}
