package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mattn/go-isatty"

	"github.com/ovoloshchuk/kitpack/internal/bundle"
	"github.com/ovoloshchuk/kitpack/internal/logger"
	"github.com/ovoloshchuk/kitpack/internal/manifest"
	"github.com/ovoloshchuk/kitpack/internal/repository/git"
	"github.com/ovoloshchuk/kitpack/internal/ui"
)

const (
	// executableFileMode is applied to the designated helper script.
	executableFileMode os.FileMode = 0o755
	// regularFileMode is applied to every other installed file.
	regularFileMode os.FileMode = 0o644
	// ignoreFileMode is used when the ignore list is created from scratch.
	ignoreFileMode os.FileMode = 0o644
	// ignoreFilename is the version-control ignore list updated during finalize.
	ignoreFilename = ".gitignore"
)

var errStartDirRequired = errors.New("start directory must be provided")

// Options are inputs accepted by the installer entry point.
type Options struct {
	// BundlePath is the generated bundle script to install from.
	BundlePath string
	// StartDir anchors working tree resolution. It is an explicit input
	// rather than ambient process state.
	StartDir string
	// ForceUpgrade authorizes overwriting an existing target directory,
	// subject to the version-control safety gate.
	ForceUpgrade bool
}

// Result describes a finished run.
type Result struct {
	// State is the terminal state, StateDone or StateCancelled.
	State State
	// RepoRoot is the resolved working tree root.
	RepoRoot string
	// TargetDir is the absolute path of the installed directory.
	TargetDir string
	// Installed lists the materialized files relative to TargetDir.
	Installed []string
	// Cancelled is set when the operator declined at the confirmation prompt.
	Cancelled bool
}

// Installer executes the installation state machine.
// All collaborators are injected; nothing reads ambient process state.
type Installer struct {
	repo    git.Repository
	confirm ui.Confirmer
	styles  *ui.Styles
	out     io.Writer

	state State
}

// Run executes the installer workflow with production collaborators and is
// the entry point used by the CLI. Cancellation by the operator is a
// non-error outcome.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "kitpack-installer")

	styles := ui.PlainStyles()
	if isatty.IsTerminal(os.Stdout.Fd()) {
		styles = ui.DefaultStyles()
	}

	ins := New(git.NewCLI(), ui.NewKeyConfirmer(styles), styles, os.Stdout)

	if _, err := ins.Run(ctx, opts); err != nil {
		return fmt.Errorf("installer failed: %w", err)
	}

	return nil
}

// New creates an installer with the provided collaborators.
func New(repo git.Repository, confirm ui.Confirmer, styles *ui.Styles, out io.Writer) *Installer {
	return &Installer{
		repo:    repo,
		confirm: confirm,
		styles:  styles,
		out:     out,
		state:   StateInit,
	}
}

// Run drives the state machine from INIT to a terminal state.
func (in *Installer) Run(ctx context.Context, opts *Options) (*Result, error) {
	if opts.StartDir == "" {
		return nil, errStartDirRequired
	}

	b, err := bundle.ParseFile(opts.BundlePath)
	if err != nil {
		return nil, err
	}

	in.transition(ctx, StatePrecondition)

	repoRoot, err := in.resolveRepoRoot(ctx, opts.StartDir)
	if err != nil {
		return nil, err
	}

	targetDir := filepath.Join(repoRoot, b.TargetDir)

	upgrade, err := in.decideTargetBranch(ctx, opts, b, repoRoot, targetDir)
	if err != nil {
		return nil, err
	}

	proceed, err := in.confirmInstall(ctx, b, targetDir, upgrade)
	if err != nil {
		return nil, err
	}

	if !proceed {
		in.transition(ctx, StateCancelled)
		fmt.Fprintln(in.out, in.styles.Hint.Render("Installation cancelled. Nothing was changed."))

		return &Result{State: StateCancelled, RepoRoot: repoRoot, Cancelled: true}, nil
	}

	in.transition(ctx, StateExtract)

	installed, err := in.extract(ctx, b, targetDir, upgrade, opts.ForceUpgrade)
	if err != nil {
		return nil, err
	}

	in.transition(ctx, StateFinalize)

	if err = in.finalize(ctx, b, repoRoot, targetDir); err != nil {
		return nil, err
	}

	in.transition(ctx, StateDone)
	in.printNextSteps(b, repoRoot, targetDir)

	return &Result{
		State:     StateDone,
		RepoRoot:  repoRoot,
		TargetDir: targetDir,
		Installed: installed,
	}, nil
}

// transition advances the machine and logs the edge.
func (in *Installer) transition(ctx context.Context, to State) {
	logger.DebugKV(ctx, "State transition", "from", in.state.String(), "to", to.String())
	in.state = to
}

// resolveRepoRoot implements PRECONDITION: without an enclosing working tree
// there is nothing to anchor the target directory to.
func (in *Installer) resolveRepoRoot(ctx context.Context, startDir string) (string, error) {
	repoRoot, err := in.repo.Root(ctx, startDir)
	if err != nil {
		in.transition(ctx, StateAborted)
		in.printFailure(
			"Not inside a git working tree.",
			"Run the installer from within the repository that should receive the sandbox kit,",
			"or create one first:",
			"    git init",
		)

		return "", fmt.Errorf("%w: %s", ErrNoWorkingTree, startDir)
	}

	logger.InfoKV(ctx, "Resolved working tree root", "root", repoRoot)

	return repoRoot, nil
}

// decideTargetBranch implements the target-existence branch and, under
// force-upgrade, the VERSION_CHECK safety gate. It reports whether this run
// overwrites an existing target. No mutation happens here.
func (in *Installer) decideTargetBranch(
	ctx context.Context,
	opts *Options,
	b *bundle.Bundle,
	repoRoot, targetDir string,
) (bool, error) {
	// Computed fresh on every invocation, never cached.
	info, err := os.Stat(targetDir)
	if errors.Is(err, os.ErrNotExist) {
		in.transition(ctx, StateTargetAbsent)
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("inspect target directory: %w", err)
	} else if !info.IsDir() {
		return false, fmt.Errorf("%w: %s is not a directory", ErrTargetExists, targetDir)
	}

	in.transition(ctx, StateTargetPresent)

	if !opts.ForceUpgrade {
		in.transition(ctx, StateAborted)
		in.printFailure(
			fmt.Sprintf("%s already exists.", targetDir),
			"Either:",
			fmt.Sprintf("  1. remove it:         rm -rf '%s'", targetDir),
			fmt.Sprintf("  2. back it up:        mv '%s' '%s.bak'", targetDir, targetDir),
			fmt.Sprintf("  3. upgrade in place:  %s --force-upgrade", opts.BundlePath),
		)

		return false, fmt.Errorf("%w: %s", ErrTargetExists, targetDir)
	}

	in.transition(ctx, StateVersionCheck)

	tracked, err := in.repo.TrackedFiles(ctx, targetDir)
	if err != nil {
		return false, err
	}

	if len(tracked) == 0 {
		// Nothing under the target is recoverable from history,
		// so a destructive overwrite would be irreversible.
		in.transition(ctx, StateAborted)
		in.printFailure(
			fmt.Sprintf("Refusing to upgrade: no file under %s is tracked by git.", b.TargetDir),
			"An overwrite could not be undone. Either:",
			fmt.Sprintf("  1. track the current contents first:  git add '%s' && git commit -m 'snapshot'", b.TargetDir),
			fmt.Sprintf("  2. remove the directory:              rm -rf '%s'", targetDir),
			fmt.Sprintf("  3. back it up elsewhere:              mv '%s' '%s.bak'", targetDir, targetDir),
		)

		return false, fmt.Errorf("%w: %s", ErrUpgradeUnsafe, targetDir)
	}

	logger.InfoKV(ctx, "Upgrade authorized", "tracked_files", len(tracked), "repo_root", repoRoot)

	return true, nil
}

// confirmInstall presents the summary and blocks on a single keystroke.
func (in *Installer) confirmInstall(ctx context.Context, b *bundle.Bundle, targetDir string, upgrade bool) (bool, error) {
	in.transition(ctx, StateConfirm)

	fmt.Fprintln(in.out, in.styles.Title.Render(
		fmt.Sprintf("This will install the sandbox kit into %s:", targetDir)))

	for _, p := range b.Payloads {
		fmt.Fprintln(in.out, in.styles.Item.Render("  "+p.Path))
	}

	if upgrade {
		fmt.Fprintln(in.out, in.styles.Warning.Render(
			fmt.Sprintf("Existing files under %s will be overwritten.", b.TargetDir)))
	}

	return in.confirm.Confirm(fmt.Sprintf("Install %d files?", len(b.Payloads)))
}

// extract materializes every payload under the target directory in bundle
// order. Each file is applied atomically with checksum verification. There is
// no cross-file rollback: a mid-extraction failure leaves the files written
// so far in place.
func (in *Installer) extract(
	ctx context.Context,
	b *bundle.Bundle,
	targetDir string,
	upgrade bool,
	forceUpgrade bool,
) ([]string, error) {
	// The existence decision was taken earlier; re-validate it right before
	// the first mutation so a directory that appeared in between does not get
	// silently overwritten.
	if !upgrade && !forceUpgrade {
		if _, err := os.Stat(targetDir); err == nil {
			in.transition(ctx, StateAborted)
			return nil, fmt.Errorf("%w: %s appeared during confirmation", ErrTargetExists, targetDir)
		}
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}

	installed := make([]string, 0, len(b.Payloads))

	for _, p := range b.Payloads {
		logger.InfoKV(ctx, "Writing file", "path", p.Path)

		if err := applyPayload(targetDir, p); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.Path, err)
		}

		installed = append(installed, p.Path)
	}

	return installed, nil
}

// applyPayload writes one payload atomically: the content is staged next to
// the destination and renamed into place only after its checksum verifies.
func applyPayload(targetDir string, p manifest.Payload) error {
	destination := filepath.Join(targetDir, p.Path)

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}

	if _, err := os.Stat(destination); errors.Is(err, os.ErrNotExist) {
		f, createErr := os.Create(destination)
		if createErr != nil {
			return createErr
		}

		if createErr = f.Close(); createErr != nil {
			return createErr
		}
	}

	mode := regularFileMode
	if p.Executable {
		mode = executableFileMode
	}

	options := goupdate.Options{
		TargetPath: destination,
		TargetMode: mode,
		Checksum:   p.Checksum,
		Hash:       manifest.ChecksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(p.Content), options); err != nil {
		return err
	}

	// Best-effort cleanup of the replaced copy.
	oldPath := destination + ".old"
	if _, err := os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	return nil
}

// finalize sets the executable bit on the designated helper script and
// appends the ignore entries, each at most once no matter how many times the
// installer runs.
func (in *Installer) finalize(ctx context.Context, b *bundle.Bundle, repoRoot, targetDir string) error {
	for _, p := range b.Payloads {
		if !p.Executable {
			continue
		}

		if err := os.Chmod(filepath.Join(targetDir, p.Path), executableFileMode); err != nil {
			return fmt.Errorf("mark %s executable: %w", p.Path, err)
		}
	}

	if len(b.IgnoreEntries) == 0 {
		return nil
	}

	logger.InfoKV(ctx, "Updating ignore list", "entries", len(b.IgnoreEntries))

	return appendIgnoreEntries(filepath.Join(repoRoot, ignoreFilename), b.IgnoreEntries)
}

// appendIgnoreEntries adds each entry to the ignore list unless an identical
// line is already present.
func appendIgnoreEntries(path string, entries []string) error {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read ignore list: %w", err)
	}

	existing := make(map[string]struct{})
	for _, line := range strings.Split(string(content), "\n") {
		existing[strings.TrimSpace(line)] = struct{}{}
	}

	var builder strings.Builder

	builder.Write(content)

	if len(content) > 0 && content[len(content)-1] != '\n' {
		builder.WriteByte('\n')
	}

	changed := false

	for _, entry := range entries {
		if _, ok := existing[entry]; ok {
			continue
		}

		builder.WriteString(entry)
		builder.WriteByte('\n')

		changed = true
	}

	if !changed {
		return nil
	}

	if err := os.WriteFile(filepath.Clean(path), []byte(builder.String()), ignoreFileMode); err != nil {
		return fmt.Errorf("write ignore list: %w", err)
	}

	return nil
}

// printFailure renders a fatal error headline followed by remediation lines.
func (in *Installer) printFailure(headline string, remediation ...string) {
	fmt.Fprintln(in.out, in.styles.Failure.Render("error: "+headline))

	for _, line := range remediation {
		fmt.Fprintln(in.out, in.styles.Hint.Render(line))
	}
}

// printNextSteps prints the completion summary and explicit guidance.
func (in *Installer) printNextSteps(b *bundle.Bundle, repoRoot, targetDir string) {
	executable := ""

	for _, p := range b.Payloads {
		if p.Executable {
			executable = p.Path
		}
	}

	fmt.Fprintln(in.out, in.styles.Success.Render(
		fmt.Sprintf("Sandbox kit installed into %s.", targetDir)))
	fmt.Fprintln(in.out, in.styles.Hint.Render("Next steps:"))
	fmt.Fprintln(in.out, in.styles.Hint.Render(
		fmt.Sprintf("  1. review the installed files:  git -C '%s' status %s", repoRoot, b.TargetDir)))
	fmt.Fprintln(in.out, in.styles.Hint.Render(
		fmt.Sprintf("  2. commit them:                 git -C '%s' add '%s' %s && git -C '%s' commit",
			repoRoot, b.TargetDir, ignoreFilename, repoRoot)))

	if executable != "" {
		fmt.Fprintln(in.out, in.styles.Hint.Render(
			fmt.Sprintf("  3. start the sandbox:           '%s'", filepath.Join(targetDir, executable))))
	}
}
