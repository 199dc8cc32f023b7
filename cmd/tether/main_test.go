package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVarP(&configPath, "config", "c", "tether.yaml", "")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	t.Cleanup(func() { configPath, logLevel = "tether.yaml", "" })
	return cmd
}

func TestLoadConfigMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(newFlagCmd(t))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	_, err := loadConfig(newFlagCmd(t, "--config", path))
	assert.ErrorContains(t, err, "read config")
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\napi:\n  port: 9100\n"), 0o644))

	cfg, err := loadConfig(newFlagCmd(t, "--config", path, "--log-level", "debug"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9100, cfg.API.Port)
}

func TestImageOptions(t *testing.T) {
	cfg, err := loadConfig(newFlagCmd(t, "--config", writeConfig(t, "capture:\n  max_edge: 1600\n")))
	require.NoError(t, err)
	assert.Len(t, imageOptions(cfg), 1)

	cfg.Capture.MaxEdge = 0
	assert.Empty(t, imageOptions(cfg))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tether.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
