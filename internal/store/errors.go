package store

import "errors"

// Common errors for store operations, grounded on the teacher's
// persistence/errors.go sentinel style.
var (
	// ErrTransactionDone is returned when Commit/Abort is called twice, or
	// an operation is attempted on an already-finished transaction.
	ErrTransactionDone = errors.New("transaction already committed or aborted")

	// ErrLockTimeout is returned when an update lock could not be
	// acquired within the caller's context deadline.
	ErrLockTimeout = errors.New("timed out acquiring update lock")

	// ErrConflict is returned by Commit when a record read earlier in the
	// transaction (under any LockMode) and written or removed in it was
	// changed by another committed transaction in the meantime. The caller must discard its staged
	// writes for that record and retry on a fresh read (spec.md §5's
	// serializability requirement over the affected keys).
	ErrConflict = errors.New("record changed since it was read, commit aborted")
)
