package installer

import "errors"

// Fatal error taxonomy. Every one of these aborts the run with a nonzero
// exit before any mutation has happened; remediation guidance with exact
// commands accompanies each on the operator's terminal.
var (
	// ErrNoWorkingTree means no enclosing git working tree could be resolved,
	// so there is nothing to anchor the target directory to.
	ErrNoWorkingTree = errors.New("no enclosing git working tree")

	// ErrTargetExists means the target directory is already present and no
	// upgrade was authorized.
	ErrTargetExists = errors.New("target directory already exists")

	// ErrUpgradeUnsafe means an upgrade was requested but nothing under the
	// target directory is tracked by version control, so an overwrite would
	// be unrecoverable.
	ErrUpgradeUnsafe = errors.New("target directory is not protected by version control")
)
