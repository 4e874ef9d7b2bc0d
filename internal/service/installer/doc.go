// Package installer materializes a bundle's payloads inside a consumer
// repository.
//
// It is a single-threaded state machine: PRECONDITION resolves the enclosing
// working tree, the target-existence branch and the version-control safety
// gate decide whether extraction is permitted, CONFIRM blocks on one
// keystroke, EXTRACT applies payloads atomically with checksum verification,
// and FINALIZE sets the helper script's executable bit and updates the ignore
// list idempotently. Every fatal path aborts before mutation; operator
// cancellation is a non-error outcome.
package installer
