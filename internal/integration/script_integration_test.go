package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireBash skips when the bundle's interpreter is unavailable, and when a
// native installer on PATH would take over before the sh fallback runs.
func requireBash(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash binary not available")
	}

	if _, err := exec.LookPath("kitpack-installer"); err == nil {
		t.Skip("kitpack-installer on PATH would shadow the sh fallback")
	}
}

// runScript executes the bundle with bash from inside dir, feeding keystrokes
// on stdin, and returns the exit code with the combined output.
func runScript(t *testing.T, dir, bundlePath, stdin string, args ...string) (int, string) {
	t.Helper()

	cmd := exec.Command("bash", append([]string{bundlePath}, args...)...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)

	out, err := cmd.CombinedOutput()
	if err == nil {
		return 0, string(out)
	}

	var exitErr *exec.ExitError

	require.ErrorAs(t, err, &exitErr, string(out))

	return exitErr.ExitCode(), string(out)
}

// scriptKit includes a file without a trailing newline so the byte-count
// extraction is exercised, not just the newline-terminated common case.
func scriptKit() map[string]string {
	return map[string]string{
		"sandbox.yaml":   "image: hardened\nnetwork: none",
		"run-sandbox.sh": "#!/bin/sh\nexec true\n",
		"docs/USAGE.md":  "# Usage\n\nOpaque prose.\n",
	}
}

// TestBundleScript_FreshInstall runs the generated script itself, without the
// native installer, and verifies the fresh-install path end to end.
func TestBundleScript_FreshInstall(t *testing.T) {
	requireGit(t)
	requireBash(t)
	t.Parallel()

	bundlePath := buildBundle(t, scriptKit(), "run-sandbox.sh")

	consumer := t.TempDir()
	initRepo(t, consumer)

	code, out := runScript(t, consumer, bundlePath, "x")
	require.Zero(t, code, out)

	for path, content := range scriptKit() {
		got, err := os.ReadFile(filepath.Join(consumer, ".sandbox", path))
		require.NoError(t, err)
		require.Equal(t, content, string(got), path)
	}

	info, err := os.Stat(filepath.Join(consumer, ".sandbox", "run-sandbox.sh"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o111)

	ignore, err := os.ReadFile(filepath.Join(consumer, ".gitignore"))
	require.NoError(t, err)
	require.Equal(t, ".sandbox/logs/\n.sandbox/state/\n", string(ignore))
}

// TestBundleScript_CancelLeavesNoTrace presses the cancellation key and
// expects a zero exit with an untouched repository.
func TestBundleScript_CancelLeavesNoTrace(t *testing.T) {
	requireGit(t)
	requireBash(t)
	t.Parallel()

	bundlePath := buildBundle(t, scriptKit(), "run-sandbox.sh")

	consumer := t.TempDir()
	initRepo(t, consumer)

	code, out := runScript(t, consumer, bundlePath, "q")
	require.Zero(t, code, out)
	require.Contains(t, out, "cancelled")

	_, err := os.Stat(filepath.Join(consumer, ".sandbox"))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(consumer, ".gitignore"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestBundleScript_TargetConflict expects a nonzero exit, remediation text
// and an unchanged target when the directory already exists.
func TestBundleScript_TargetConflict(t *testing.T) {
	requireGit(t)
	requireBash(t)
	t.Parallel()

	bundlePath := buildBundle(t, scriptKit(), "run-sandbox.sh")

	consumer := t.TempDir()
	initRepo(t, consumer)

	target := filepath.Join(consumer, ".sandbox")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep.txt"), []byte("precious\n"), 0o644))

	code, out := runScript(t, consumer, bundlePath, "x")
	require.Equal(t, 1, code, out)
	require.Contains(t, out, "already exists")
	require.Contains(t, out, "rm -rf")
	require.Contains(t, out, ".bak")
	require.Contains(t, out, "--force-upgrade")

	got, err := os.ReadFile(filepath.Join(target, "keep.txt"))
	require.NoError(t, err)
	require.Equal(t, "precious\n", string(got))

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestBundleScript_UpgradeSafetyGate forces an upgrade against an untracked
// target and expects a refusal that leaves the directory untouched.
func TestBundleScript_UpgradeSafetyGate(t *testing.T) {
	requireGit(t)
	requireBash(t)
	t.Parallel()

	bundlePath := buildBundle(t, scriptKit(), "run-sandbox.sh")

	consumer := t.TempDir()
	initRepo(t, consumer)

	target := filepath.Join(consumer, ".sandbox")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "sandbox.yaml"), []byte("stale\n"), 0o644))

	code, out := runScript(t, consumer, bundlePath, "x", "--force-upgrade")
	require.Equal(t, 1, code, out)
	require.Contains(t, out, "refusing to upgrade")
	require.Contains(t, out, "git add")

	got, err := os.ReadFile(filepath.Join(target, "sandbox.yaml"))
	require.NoError(t, err)
	require.Equal(t, "stale\n", string(got))
}

// TestBundleScript_RejectsUnknownOption covers the flag-parsing surface of
// the generated script.
func TestBundleScript_RejectsUnknownOption(t *testing.T) {
	requireGit(t)
	requireBash(t)
	t.Parallel()

	bundlePath := buildBundle(t, scriptKit(), "run-sandbox.sh")

	consumer := t.TempDir()
	initRepo(t, consumer)

	code, out := runScript(t, consumer, bundlePath, "", "--bogus")
	require.Equal(t, 1, code, out)
	require.Contains(t, out, "unrecognized option")

	_, err := os.Stat(filepath.Join(consumer, ".sandbox"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
