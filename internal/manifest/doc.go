// Package manifest defines the ordered list of source files embedded into a
// bundle, loads their content from disk, and derives the terminator tokens
// that bound each embedded payload.
//
// Token derivation enforces the boundary invariant: a token never occurs
// inside the content it delimits, colliding tokens are salted deterministically.
package manifest
