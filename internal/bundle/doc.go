// Package bundle renders and parses the generated installer script.
//
// A bundle is a single self-contained shell script: a header carrying build
// provenance and the installer's branching logic, one terminator-delimited
// extraction block per payload in manifest order, and a finalize footer.
// The same script is parseable back into its payloads, which is how the
// native installer consumes it and how the round-trip property is verified.
package bundle
