package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/ovoloshchuk/kitpack/internal/bundle"
	"github.com/ovoloshchuk/kitpack/internal/config"
	"github.com/ovoloshchuk/kitpack/internal/logger"
	"github.com/ovoloshchuk/kitpack/internal/manifest"
	"github.com/ovoloshchuk/kitpack/internal/repository/git"
	"github.com/ovoloshchuk/kitpack/internal/version"
)

const (
	// bundleFileMode marks the generated script executable.
	bundleFileMode os.FileMode = 0o755

	// builtAtLayout is the human-readable build timestamp format.
	builtAtLayout = "2006-01-02 15:04:05 UTC"
)

// errOutputInUse indicates a running process is currently executing the
// bundle that would be overwritten.
var errOutputInUse = errors.New("the generated bundle is being executed right now")

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to the packaging settings
	// (empty selects the built-in manifest).
	ConfigPath string
	// StartDir anchors revision metadata resolution.
	StartDir string
}

// builder produces one bundle from the configured manifest.
// It is unexported, callers should use Run, which encapsulates setup and validation.
type builder struct {
	cfg  *config.Config
	repo git.Repository
	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "kitpack-packager")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if isOutputInUse(ctx, cfg.OutputPath) {
		return fmt.Errorf("%w: %s", errOutputInUse, cfg.OutputPath)
	}

	b := newBuilder(cfg, git.NewCLI())

	if err = b.Run(ctx, opts.StartDir); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// newBuilder creates a builder with the provided settings and repository.
func newBuilder(cfg *config.Config, repo git.Repository) *builder {
	return &builder{
		cfg:  cfg,
		repo: repo,
		now:  time.Now,
	}
}

// Run loads the manifest, renders the bundle and marks it executable.
func (b *builder) Run(ctx context.Context, startDir string) error {
	logger.InfoKV(ctx, "Loading manifest", "asset_root", b.cfg.AssetRoot, "files", len(b.cfg.Files))

	payloads, err := manifest.Load(b.cfg.AssetRoot, b.cfg.Files)
	if err != nil {
		var missingErr *manifest.MissingFilesError
		if errors.As(err, &missingErr) {
			logger.ErrorKV(ctx, "Manifest files are missing",
				"root", missingErr.Root, "files", strings.Join(missingErr.Paths, ", "))
		}

		return err
	}

	meta := bundle.Metadata{
		Revision:      b.resolveRevision(ctx, startDir),
		BuiltAt:       b.now().UTC().Format(builtAtLayout),
		Tool:          version.Short(),
		TargetDir:     b.cfg.TargetDir,
		IgnoreEntries: b.cfg.IgnoreEntries,
	}

	logger.InfoKV(ctx, "Writing bundle",
		"path", b.cfg.OutputPath, "revision", meta.Revision, "payloads", len(payloads))

	if err = writeBundleFile(b.cfg.OutputPath, meta, payloads); err != nil {
		return err
	}

	b.printNextSteps(ctx, payloads)

	return nil
}

// resolveRevision reads the enclosing repository's short head revision,
// falling back to the build-time commit when no working tree is available.
func (b *builder) resolveRevision(ctx context.Context, startDir string) string {
	if startDir == "" {
		startDir = "."
	}

	revision, err := b.repo.HeadRevision(ctx, startDir)
	if err != nil {
		logger.WarnKV(ctx, "Unable to resolve head revision, using build metadata",
			"error", err.Error())

		return version.Commit
	}

	return revision
}

// writeBundleFile renders the bundle to a temporary file next to the final
// location and renames it into place only on success, so a failed build never
// leaves a usable partial artifact behind.
func writeBundleFile(outputPath string, meta bundle.Metadata, payloads []manifest.Payload) error {
	dir := filepath.Dir(outputPath)

	tmp, err := os.CreateTemp(dir, filepath.Base(outputPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary bundle: %w", err)
	}

	defer func() {
		// No-ops once the rename succeeded.
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err = bundle.Write(tmp, meta, payloads); err != nil {
		return err
	}

	if err = tmp.Chmod(bundleFileMode); err != nil {
		return fmt.Errorf("mark bundle executable: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("flush bundle: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}

	if err = os.Rename(tmp.Name(), outputPath); err != nil {
		return fmt.Errorf("move bundle into place: %w", err)
	}

	return nil
}

// printNextSteps logs human-readable guidance for distributing the bundle.
func (b *builder) printNextSteps(ctx context.Context, payloads []manifest.Payload) {
	var sb strings.Builder

	sb.WriteString("The bundle ")
	sb.WriteString(b.cfg.OutputPath)
	sb.WriteString(" embeds the following files:\n")

	for i, p := range payloads {
		if i > 0 {
			sb.WriteString(",\n")
		}

		sb.WriteString(p.Path)
	}

	sb.WriteString("\n\nDistribute the bundle to consumers; each of them should run it ")
	sb.WriteString("from inside the repository that should receive ")
	sb.WriteString(b.cfg.TargetDir)
	sb.WriteString("/.")

	logger.Info(ctx, sb.String())
}

// isOutputInUse reports, best effort, whether some running process is
// executing the bundle about to be overwritten.
func isOutputInUse(ctx context.Context, outputPath string) bool {
	processes, err := ps.Processes()
	if err != nil {
		logger.WarnKV(ctx, "Unable to enumerate processes, skipping in-use check",
			"error", err.Error())

		return false
	}

	name := filepath.Base(outputPath)
	ownPID := os.Getpid()

	for _, process := range processes {
		if process.Pid() == ownPID {
			continue
		}

		if process.Executable() == name {
			return true
		}
	}

	return false
}
