// Package ui holds the operator-facing presentation pieces: the immutable
// style configuration and the single-keystroke confirmation prompt.
package ui
