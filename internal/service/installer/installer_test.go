package installer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovoloshchuk/kitpack/internal/bundle"
	"github.com/ovoloshchuk/kitpack/internal/manifest"
	"github.com/ovoloshchuk/kitpack/internal/ui"
)

// fakeRepo is an in-memory git.Repository.
type fakeRepo struct {
	root       string
	rootErr    error
	tracked    []string
	trackedErr error
}

func (f *fakeRepo) Root(_ context.Context, _ string) (string, error) {
	return f.root, f.rootErr
}

func (f *fakeRepo) TrackedFiles(_ context.Context, _ string) ([]string, error) {
	return f.tracked, f.trackedErr
}

func (f *fakeRepo) HeadRevision(_ context.Context, _ string) (string, error) {
	return "abc1234", nil
}

// writeBundle builds a bundle script on disk from the provided file set.
func writeBundle(t *testing.T, dir string, files map[string]string, executable string) string {
	t.Helper()

	payloads := make([]manifest.Payload, 0, len(files))

	for _, path := range sortedKeys(files) {
		content := []byte(files[path])

		checksum, err := manifest.Checksum(content)
		require.NoError(t, err)

		payloads = append(payloads, manifest.Payload{
			SourceFile: manifest.SourceFile{Path: path, Executable: path == executable},
			Content:    content,
			Checksum:   checksum,
			Token:      manifest.TokenFor(path, content),
		})
	}

	meta := bundle.Metadata{
		Revision:      "abc1234",
		BuiltAt:       "2026-08-30 12:00:00 UTC",
		Tool:          "test",
		TargetDir:     ".sandbox",
		IgnoreEntries: []string{".sandbox/logs/", ".sandbox/state/"},
	}

	var buf bytes.Buffer

	require.NoError(t, bundle.Write(&buf, meta, payloads))

	path := filepath.Join(dir, "sandbox-installer.sh")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o755))

	return path
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	return keys
}

func defaultFiles() map[string]string {
	return map[string]string{
		"sandbox.yaml":   "image: hardened\n",
		"run-sandbox.sh": "#!/bin/sh\nexec true\n",
		"docs/USAGE.md":  "# Usage\n",
	}
}

func newTestInstaller(repo *fakeRepo, proceed bool) (*Installer, *bytes.Buffer) {
	var out bytes.Buffer

	ins := New(repo, &ui.StaticConfirmer{Proceed: proceed}, ui.PlainStyles(), &out)

	return ins, &out
}

// snapshot captures the full content of a directory tree for byte-for-byte
// comparison.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)

		if d.IsDir() {
			return nil
		}

		content, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		rel, relErr := filepath.Rel(root, path)
		require.NoError(t, relErr)

		files[rel] = string(content)

		return nil
	})
	require.NoError(t, err)

	return files
}

// TestRun_FreshInstall materializes every payload, marks the helper script
// executable and appends both ignore entries.
func TestRun_FreshInstall(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	bundlePath := writeBundle(t, t.TempDir(), defaultFiles(), "run-sandbox.sh")

	ins, out := newTestInstaller(&fakeRepo{root: repoRoot}, true)

	result, err := ins.Run(context.Background(), &Options{
		BundlePath: bundlePath,
		StartDir:   repoRoot,
	})
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)
	require.False(t, result.Cancelled)
	require.Equal(t, []string{"docs/USAGE.md", "run-sandbox.sh", "sandbox.yaml"}, result.Installed)

	targetDir := filepath.Join(repoRoot, ".sandbox")

	for path, content := range defaultFiles() {
		got, readErr := os.ReadFile(filepath.Join(targetDir, path))
		require.NoError(t, readErr)
		require.Equal(t, content, string(got))
	}

	// Designated helper script carries the execute bit.
	info, err := os.Stat(filepath.Join(targetDir, "run-sandbox.sh"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o111)

	// Ignore list gained exactly the two entries.
	ignore, err := os.ReadFile(filepath.Join(repoRoot, ".gitignore"))
	require.NoError(t, err)
	require.Equal(t, ".sandbox/logs/\n.sandbox/state/\n", string(ignore))

	require.Contains(t, out.String(), "Next steps:")
}

// TestRun_CancellationPurity exits cleanly without creating or modifying
// anything when the operator declines.
func TestRun_CancellationPurity(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	bundlePath := writeBundle(t, t.TempDir(), defaultFiles(), "run-sandbox.sh")

	ins, out := newTestInstaller(&fakeRepo{root: repoRoot}, false)

	result, err := ins.Run(context.Background(), &Options{
		BundlePath: bundlePath,
		StartDir:   repoRoot,
	})
	require.NoError(t, err)
	require.True(t, result.Cancelled)
	require.Equal(t, StateCancelled, result.State)

	// No directory, no ignore list.
	_, err = os.Stat(filepath.Join(repoRoot, ".sandbox"))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(repoRoot, ".gitignore"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.Contains(t, out.String(), "cancelled")
}

// TestRun_NoWorkingTree fails fatally when no repository root resolves.
func TestRun_NoWorkingTree(t *testing.T) {
	t.Parallel()

	bundlePath := writeBundle(t, t.TempDir(), defaultFiles(), "run-sandbox.sh")

	ins, out := newTestInstaller(&fakeRepo{rootErr: ErrNoWorkingTree}, true)

	_, err := ins.Run(context.Background(), &Options{
		BundlePath: bundlePath,
		StartDir:   t.TempDir(),
	})
	require.ErrorIs(t, err, ErrNoWorkingTree)
	require.Contains(t, out.String(), "git init")
}

// TestRun_TargetConflict aborts when the target exists and no upgrade was
// authorized, leaving everything untouched.
func TestRun_TargetConflict(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	targetDir := filepath.Join(repoRoot, ".sandbox")
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(targetDir, "keep.txt"), []byte("mine\n"), 0o644))

	bundlePath := writeBundle(t, t.TempDir(), defaultFiles(), "run-sandbox.sh")

	ins, out := newTestInstaller(&fakeRepo{root: repoRoot}, true)

	before := snapshot(t, targetDir)

	_, err := ins.Run(context.Background(), &Options{
		BundlePath: bundlePath,
		StartDir:   repoRoot,
	})
	require.ErrorIs(t, err, ErrTargetExists)

	require.Equal(t, before, snapshot(t, targetDir))

	// Remediation lists the three recovery options.
	require.Contains(t, out.String(), "rm -rf")
	require.Contains(t, out.String(), ".bak")
	require.Contains(t, out.String(), "--force-upgrade")
}

// TestRun_SafetyGate_Untracked refuses a forced upgrade against an untracked
// target and leaves the directory byte-for-byte unchanged.
func TestRun_SafetyGate_Untracked(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	targetDir := filepath.Join(repoRoot, ".sandbox")
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(targetDir, "sandbox.yaml"), []byte("old\n"), 0o644))

	bundlePath := writeBundle(t, t.TempDir(), defaultFiles(), "run-sandbox.sh")

	ins, out := newTestInstaller(&fakeRepo{root: repoRoot, tracked: nil}, true)

	before := snapshot(t, targetDir)

	_, err := ins.Run(context.Background(), &Options{
		BundlePath:   bundlePath,
		StartDir:     repoRoot,
		ForceUpgrade: true,
	})
	require.ErrorIs(t, err, ErrUpgradeUnsafe)

	require.Equal(t, before, snapshot(t, targetDir))
	require.Contains(t, out.String(), "git add")
}

// TestRun_ForceUpgrade_Tracked overwrites every manifest file when at least
// one file under the target is tracked.
func TestRun_ForceUpgrade_Tracked(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	targetDir := filepath.Join(repoRoot, ".sandbox")
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(targetDir, "sandbox.yaml"), []byte("stale\n"), 0o644))

	bundlePath := writeBundle(t, t.TempDir(), defaultFiles(), "run-sandbox.sh")

	ins, out := newTestInstaller(&fakeRepo{
		root:    repoRoot,
		tracked: []string{".sandbox/sandbox.yaml"},
	}, true)

	result, err := ins.Run(context.Background(), &Options{
		BundlePath:   bundlePath,
		StartDir:     repoRoot,
		ForceUpgrade: true,
	})
	require.NoError(t, err)
	require.Equal(t, StateDone, result.State)

	got, err := os.ReadFile(filepath.Join(targetDir, "sandbox.yaml"))
	require.NoError(t, err)
	require.Equal(t, "image: hardened\n", string(got))

	require.Contains(t, out.String(), "overwritten")
}

// TestRun_IgnoreListIdempotence adds each ignore entry exactly once across
// repeated runs, and respects pre-existing entries.
func TestRun_IgnoreListIdempotence(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	bundlePath := writeBundle(t, t.TempDir(), defaultFiles(), "run-sandbox.sh")

	// Ignore list exists already, holds one of the two entries, no newline.
	ignorePath := filepath.Join(repoRoot, ".gitignore")
	require.NoError(t, os.WriteFile(ignorePath, []byte("node_modules/\n.sandbox/logs/"), 0o644))

	run := func(force bool) {
		tracked := []string(nil)
		if force {
			tracked = []string{".sandbox/sandbox.yaml"}
		}

		ins, _ := newTestInstaller(&fakeRepo{root: repoRoot, tracked: tracked}, true)

		_, err := ins.Run(context.Background(), &Options{
			BundlePath:   bundlePath,
			StartDir:     repoRoot,
			ForceUpgrade: force,
		})
		require.NoError(t, err)
	}

	run(false)
	run(true)
	run(true)

	content, err := os.ReadFile(ignorePath)
	require.NoError(t, err)
	require.Equal(t, "node_modules/\n.sandbox/logs/\n.sandbox/state/\n", string(content))
	require.Equal(t, 1, strings.Count(string(content), ".sandbox/state/"))
}

// TestRun_RequiresStartDir rejects an empty start directory.
func TestRun_RequiresStartDir(t *testing.T) {
	t.Parallel()

	ins, _ := newTestInstaller(&fakeRepo{root: t.TempDir()}, true)

	_, err := ins.Run(context.Background(), &Options{BundlePath: "whatever.sh"})
	require.Error(t, err)
}

// TestStateString covers the phase names used in transition logs.
func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "INIT", StateInit.String())
	require.Equal(t, "VERSION_CHECK", StateVersionCheck.String())
	require.Equal(t, "CANCELLED", StateCancelled.String())
	require.Equal(t, "UNKNOWN", State(99).String())
}
