// Package cgerr defines the simulator's three error categories:
// configuration errors, invariant violations, and the stall counters
// that are not errors at all (see spec.md §7).
package cgerr

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrInvalidHandle is returned when a dynobj handle is zero or malformed.
	ErrInvalidHandle = errors.New("cg1sim: invalid handle")

	// ErrHandleRecycled is returned when a handle's generation no longer
	// matches the live object at that slot (use-after-free guard).
	ErrHandleRecycled = errors.New("cg1sim: handle generation mismatch, object recycled")

	// ErrHandleNotFound is returned when a handle's index was never allocated.
	ErrHandleNotFound = errors.New("cg1sim: handle not found")

	// ErrPoolExhausted is returned when the dynamic-memory pool has no
	// bucket able to satisfy a request; this is always fatal.
	ErrPoolExhausted = errors.New("cg1sim: dynamic memory pool exhausted")

	// ErrNotReady is returned when a register write arrives while a stage
	// is not in READY state (spec.md §4.2).
	ErrNotReady = errors.New("cg1sim: register write rejected, stage not READY")
)

// ConfigError reports a problem with CSV parameters, the trace file, or
// CLI arguments. It is reported on stderr before the pipeline starts;
// the process exits non-zero (spec.md §7).
type ConfigError struct {
	Source  string // "param", "trace", "cli"
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// NewConfigError builds a ConfigError.
func NewConfigError(source, message string, cause error) *ConfigError {
	return &ConfigError{Source: source, Message: message, Cause: cause}
}

// FatalError reports an invariant violation: a stamp with nonzero
// non-last fragments, RAW CAM overflow, bucket exhaustion, an illegal
// state transition, and so on (spec.md §7, §8). Fatal errors carry the
// frame/batch/triangle/cycle counters the top-level loop prints before
// requesting a snapshot and exiting with code -1.
type FatalError struct {
	Assertion string
	Frame     uint64
	Batch     uint64
	Triangle  uint64
	Cycle     uint64
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s (frame=%d batch=%d triangle=%d cycle=%d)",
		e.Assertion, e.Frame, e.Batch, e.Triangle, e.Cycle)
}

// NewFatalError builds a FatalError with the counters supplied by the caller.
func NewFatalError(assertion string, frame, batch, triangle, cycle uint64) *FatalError {
	return &FatalError{
		Assertion: assertion,
		Frame:     frame,
		Batch:     batch,
		Triangle:  triangle,
		Cycle:     cycle,
	}
}

// IsFatal reports whether err is (or wraps) a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
