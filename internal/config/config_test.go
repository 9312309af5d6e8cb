package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateSchema())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().WindowSeconds, cfg.WindowSeconds)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
window_seconds = 30
check_interval = 5
modified_threshold = 10
entropy_threshold = 6.5
high_entropy_count = 3
sample_entropy_count = 25
quarantine_dir = "/tmp/q"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.WindowSeconds)
	assert.Equal(t, 5, cfg.CheckInterval)
	assert.Equal(t, 6.5, cfg.EntropyThreshold)
	assert.Equal(t, "/tmp/q", cfg.QuarantineDir)
}

func TestValidateRejectsOutOfRangeEntropyThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EntropyThreshold = 9
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy_threshold")
}

func TestValidateRejectsMissingQuarantineDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuarantineDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quarantine_dir")
}

func TestValidateSchemaRejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.ValidateSchema())
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.QuarantineDir = filepath.Join(base, "quarantine")
	cfg.LogsDir = filepath.Join(base, "logs")
	cfg.LogPath = filepath.Join(base, "logs", "d.log")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.QuarantineDir)
	assert.DirExists(t, cfg.LogsDir)
}
