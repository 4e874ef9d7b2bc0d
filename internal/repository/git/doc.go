// Package git resolves the ambient version-control state the installer and
// packager depend on: working tree roots, tracked files and head revisions.
//
// The Repository interface keeps the state machine testable without a real
// repository; the CLI implementation shells out to the git binary.
package git
