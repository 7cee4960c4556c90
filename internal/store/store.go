// Package store implements the durable-store contract of spec.md §3 and
// §6: a transactional mapping clusterId -> ClusterRecord named
// "clusterDictionary", provided by an external state manager. Two
// backends are available (memory, redis); both satisfy ClusterStore.
package store

import (
	"context"

	"github.com/partyfleet/controller/internal/types"
)

// DictionaryName is the name of the mapping used by this system,
// per spec.md §6 ("named exactly clusterDictionary").
const DictionaryName = "clusterDictionary"

// LockMode selects whether TryGet takes an update lock on the key.
type LockMode int

const (
	// LockNone performs a plain read with no exclusivity guarantee.
	LockNone LockMode = iota
	// LockUpdate acquires an update lock excluding concurrent LockUpdate
	// reads of the same key until the owning transaction commits or
	// aborts (spec.md §5, "an update intent must acquire an update lock
	// to exclude concurrent joins against the same cluster").
	LockUpdate
)

// Transaction scopes a sequence of store operations for atomic commit,
// per spec.md §6's beginTransaction()/commit()/abort() contract.
type Transaction interface {
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// ClusterStore is the durable, transactional clusterId -> ClusterRecord
// mapping described in spec.md §3 and §6.
type ClusterStore interface {
	// Name returns the mapping's name (DictionaryName).
	Name() string

	// BeginTransaction starts a new transaction scoping subsequent calls.
	BeginTransaction(ctx context.Context) (Transaction, error)

	// TryGet reads a record if present, optionally taking an update lock.
	TryGet(ctx context.Context, tx Transaction, id types.ClusterID, lock LockMode) (types.ClusterRecord, bool, error)

	// Add inserts a new record. Both backends treat it as an upsert: an
	// Add over an existing key replaces that record without an error.
	Add(ctx context.Context, tx Transaction, id types.ClusterID, rec types.ClusterRecord) error

	// Set replaces the record at id, which must have been read (typically
	// with LockUpdate) earlier in the same transaction.
	Set(ctx context.Context, tx Transaction, id types.ClusterID, rec types.ClusterRecord) error

	// TryRemove deletes the record at id if present, returning whether it existed.
	TryRemove(ctx context.Context, tx Transaction, id types.ClusterID) (bool, error)

	// Enumerate lists every key currently committed to the mapping, in the
	// mapping's natural enumeration order (spec.md §4.6, "ordering
	// reflects the mapping's enumeration order").
	Enumerate(ctx context.Context) ([]types.ClusterID, error)

	// Count returns the number of committed records.
	Count(ctx context.Context) (int, error)
}
