package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Repository exposes the ambient version-control state the toolchain depends
// on. The inspected directory is always an explicit argument, never the
// process working directory, so callers stay unit-testable.
type Repository interface {
	// Root resolves the enclosing working tree root for dir.
	// Returns ErrNoWorkingTree when dir is not inside one.
	Root(ctx context.Context, dir string) (string, error)
	// TrackedFiles lists files recorded by version control under dir,
	// relative to the working tree root.
	TrackedFiles(ctx context.Context, dir string) ([]string, error)
	// HeadRevision returns the short revision identifier of the current HEAD.
	HeadRevision(ctx context.Context, dir string) (string, error)
}

// ErrNoWorkingTree is returned when a directory is not inside a git working tree.
var ErrNoWorkingTree = errors.New("not inside a git working tree")

// CLI implements Repository by shelling out to the git binary.
type CLI struct{}

// NewCLI returns an exec-backed Repository.
func NewCLI() *CLI {
	return &CLI{}
}

// Root resolves the working tree root via `git rev-parse --show-toplevel`.
func (c *CLI) Root(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoWorkingTree, dir)
	}

	return out, nil
}

// TrackedFiles lists tracked files under dir via `git ls-files`.
func (c *CLI) TrackedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := runGit(ctx, dir, "ls-files", "--", ".")
	if err != nil {
		return nil, fmt.Errorf("list tracked files in %s: %w", dir, err)
	}

	if out == "" {
		return nil, nil
	}

	return strings.Split(out, "\n"), nil
}

// HeadRevision returns `git rev-parse --short HEAD` output for dir.
func (c *CLI) HeadRevision(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve head revision in %s: %w", dir, err)
	}

	return out, nil
}

// runGit executes a git subcommand anchored at dir and returns trimmed stdout.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}

		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), msg, err)
	}

	return strings.TrimSpace(string(out)), nil
}
