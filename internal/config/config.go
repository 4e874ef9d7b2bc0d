package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ovoloshchuk/kitpack/internal/manifest"
)

// Config holds the packaging settings shared by the kitpack binaries.
type Config struct {
	// AssetRoot is the directory holding the source files to embed.
	AssetRoot string `yaml:"asset_root"`
	// OutputPath is where the generated bundle script is written.
	OutputPath string `yaml:"output_path"`
	// TargetDir is the directory name created inside the consumer repository.
	TargetDir string `yaml:"target_dir"`
	// Files is the ordered manifest of files to embed.
	Files manifest.Manifest `yaml:"files"`
	// IgnoreEntries are appended to the consumer's ignore list during install.
	IgnoreEntries []string `yaml:"ignore_entries"`
}

const (
	// DefaultConfigFilename is the default filename for packaging settings.
	DefaultConfigFilename = "kitpack.yaml"

	// DefaultAssetRoot is where the sandbox kit sources live.
	DefaultAssetRoot = "assets"

	// DefaultOutputPath is the fixed location of the generated bundle script.
	DefaultOutputPath = "sandbox-installer.sh"

	// DefaultTargetDir is the directory materialized in the consumer repository.
	DefaultTargetDir = ".sandbox"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadTargetDir is returned when the target directory is unusable.
	errBadTargetDir = errors.New("target directory must be a plain relative directory name")
	// errBadIgnoreEntry is returned when an ignore entry is blank.
	errBadIgnoreEntry = errors.New("ignore entries must not be blank")
)

// Default returns the built-in configuration: the fixed sandbox kit manifest
// and its standard locations.
func Default() *Config {
	return &Config{
		AssetRoot:  DefaultAssetRoot,
		OutputPath: DefaultOutputPath,
		TargetDir:  DefaultTargetDir,
		Files:      manifest.Default(),
		IgnoreEntries: []string{
			DefaultTargetDir + "/logs/",
			DefaultTargetDir + "/state/",
		},
	}
}

// Load reads configuration from the provided path and validates it.
// An empty path selects the built-in defaults without touching disk.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings, filling defaults for omitted fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.AssetRoot == "" {
		cfg.AssetRoot = DefaultAssetRoot
	}

	if cfg.OutputPath == "" {
		cfg.OutputPath = DefaultOutputPath
	}

	if cfg.TargetDir == "" {
		cfg.TargetDir = DefaultTargetDir
	}

	if filepath.IsAbs(cfg.TargetDir) || strings.ContainsRune(cfg.TargetDir, filepath.Separator) {
		return fmt.Errorf("%w: %s", errBadTargetDir, cfg.TargetDir)
	}

	for _, entry := range cfg.IgnoreEntries {
		if strings.TrimSpace(entry) == "" {
			return errBadIgnoreEntry
		}
	}

	if len(cfg.Files) == 0 {
		cfg.Files = manifest.Default()
	}

	return cfg.Files.Validate()
}
