package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNothingElseSet(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("config.yaml", nil)
	require.NoError(t, err)
	require.Equal(t, "8000", cfg.Port)
	require.True(t, cfg.MDNSEnabled)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("port: \"9000\"\nstation_name: \"Test Station\"\n"), 0o644))

	cfg, err := Load(yamlPath, nil)
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, "Test Station", cfg.StationName)
	// Values the YAML didn't mention keep their defaults.
	require.Equal(t, 500, cfg.MaxClients)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("port: \"9000\"\n"), 0o644))

	t.Setenv("BROADCASTER_PORT", "9100")
	cfg, err := Load(yamlPath, nil)
	require.NoError(t, err)
	require.Equal(t, "9100", cfg.Port)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BROADCASTER_PORT", "9100")

	cfg, err := Load("config.yaml", []string{"--port", "9200"})
	require.NoError(t, err)
	require.Equal(t, "9200", cfg.Port)
}

func TestLoad_MissingYAMLFileIsNotAnError(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("does-not-exist.yaml", nil)
	require.NoError(t, err)
	require.Equal(t, "8000", cfg.Port)
}
