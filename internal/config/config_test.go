package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovoloshchuk/kitpack/internal/manifest"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Nil config.
	require.Error(t, Validate(nil))

	// Absolute target directory.
	cfg := Default()
	cfg.TargetDir = "/etc/sandbox"
	require.Error(t, Validate(cfg))

	// Nested target directory.
	cfg = Default()
	cfg.TargetDir = "a/b"
	require.Error(t, Validate(cfg))

	// Blank ignore entry.
	cfg = Default()
	cfg.IgnoreEntries = []string{"  "}
	require.Error(t, Validate(cfg))

	// Empty fields fall back to defaults.
	cfg = &Config{}
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultAssetRoot, cfg.AssetRoot)
	require.Equal(t, DefaultOutputPath, cfg.OutputPath)
	require.Equal(t, DefaultTargetDir, cfg.TargetDir)
	require.Equal(t, manifest.Default(), cfg.Files)
}

// TestLoad_EmptyPath returns built-in defaults without touching disk.
func TestLoad_EmptyPath(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "kitpack.yaml")

	cfg := Default()
	cfg.TargetDir = ".kit"
	cfg.Files = manifest.Manifest{
		{Path: "a.cfg"},
		{Path: "b.sh", Executable: true},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.TargetDir, loaded.TargetDir)
	require.Equal(t, cfg.Files, loaded.Files)

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_InvalidManifest rejects a config whose manifest breaks invariants.
func TestLoad_InvalidManifest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kitpack.yaml")
	body := "files:\n  - path: a.cfg\n  - path: a.cfg\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
