// Package packager builds the distributable bundle script.
//
// It reads the configured manifest, verifies every source file exists
// (reporting all missing files at once), embeds build provenance from the
// enclosing repository, and renders the self-contained installer script,
// marked executable. A failed build leaves no usable partial output.
package packager
