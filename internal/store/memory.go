package store

import (
	"context"
	"sync"

	"github.com/partyfleet/controller/internal/types"
)

// memoryStore is an in-process ClusterStore, grounded on the teacher's
// persistence/memory.go RWMutex-guarded map, extended with a real
// staged-write transaction so it honors the same Transaction contract as
// the Redis backend.
//
// versions holds a per-key generation counter bumped on every committed
// write or delete. A transaction that read a key (under any LockMode)
// records the generation it observed; Commit refuses to apply a staged
// write if the key's generation has moved on, so a LockNone read-modify-
// write (the reconciler, the balancer) can never silently clobber a
// LockUpdate write (admission.Join) that landed in between.
type memoryStore struct {
	mu       sync.Mutex
	data     map[types.ClusterID]types.ClusterRecord
	versions map[types.ClusterID]uint64
	keyLocks map[types.ClusterID]*sync.Mutex
}

// NewMemoryStore creates a new in-memory ClusterStore.
func NewMemoryStore() ClusterStore {
	return &memoryStore{
		data:     make(map[types.ClusterID]types.ClusterRecord),
		versions: make(map[types.ClusterID]uint64),
		keyLocks: make(map[types.ClusterID]*sync.Mutex),
	}
}

func (s *memoryStore) Name() string { return DictionaryName }

func (s *memoryStore) lockFor(id types.ClusterID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[id] = l
	}
	return l
}

// staged holds this transaction's uncommitted writes (nil marks a
// tombstone); observed holds the generation seen at TryGet time for
// every key this transaction has read, checked against the live
// generation at Commit.
type memoryTx struct {
	store    *memoryStore
	held     []types.ClusterID
	staged   map[types.ClusterID]*types.ClusterRecord
	observed map[types.ClusterID]uint64
	done     bool
}

func (s *memoryStore) BeginTransaction(_ context.Context) (Transaction, error) {
	return &memoryTx{
		store:    s,
		staged:   make(map[types.ClusterID]*types.ClusterRecord),
		observed: make(map[types.ClusterID]uint64),
	}, nil
}

func asMemoryTx(tx Transaction) (*memoryTx, bool) {
	mtx, ok := tx.(*memoryTx)
	return mtx, ok
}

func (s *memoryStore) TryGet(_ context.Context, tx Transaction, id types.ClusterID, lock LockMode) (types.ClusterRecord, bool, error) {
	mtx, ok := asMemoryTx(tx)
	if !ok {
		return types.ClusterRecord{}, false, ErrTransactionDone
	}
	if mtx.done {
		return types.ClusterRecord{}, false, ErrTransactionDone
	}

	if lock == LockUpdate && !mtx.holds(id) {
		s.lockFor(id).Lock()
		mtx.held = append(mtx.held, id)
	}

	if staged, ok := mtx.staged[id]; ok {
		if staged == nil {
			return types.ClusterRecord{}, false, nil
		}
		return staged.Clone(), true, nil
	}

	s.mu.Lock()
	rec, ok := s.data[id]
	gen := s.versions[id]
	s.mu.Unlock()
	if !ok {
		return types.ClusterRecord{}, false, nil
	}
	if _, already := mtx.observed[id]; !already {
		mtx.observed[id] = gen
	}
	return rec.Clone(), true, nil
}

func (mtx *memoryTx) holds(id types.ClusterID) bool {
	for _, h := range mtx.held {
		if h == id {
			return true
		}
	}
	return false
}

func (s *memoryStore) Add(_ context.Context, tx Transaction, id types.ClusterID, rec types.ClusterRecord) error {
	mtx, ok := asMemoryTx(tx)
	if !ok || mtx.done {
		return ErrTransactionDone
	}
	cloned := rec.Clone()
	mtx.staged[id] = &cloned
	return nil
}

func (s *memoryStore) Set(ctx context.Context, tx Transaction, id types.ClusterID, rec types.ClusterRecord) error {
	return s.Add(ctx, tx, id, rec)
}

func (s *memoryStore) TryRemove(_ context.Context, tx Transaction, id types.ClusterID) (bool, error) {
	mtx, ok := asMemoryTx(tx)
	if !ok || mtx.done {
		return false, ErrTransactionDone
	}

	if staged, ok := mtx.staged[id]; ok {
		existed := staged != nil
		mtx.staged[id] = nil
		return existed, nil
	}

	s.mu.Lock()
	_, existed := s.data[id]
	gen := s.versions[id]
	s.mu.Unlock()
	if _, already := mtx.observed[id]; !already {
		mtx.observed[id] = gen
	}
	mtx.staged[id] = nil
	return existed, nil
}

func (s *memoryStore) Enumerate(_ context.Context) ([]types.ClusterID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]types.ClusterID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) {
	ids, err := s.Enumerate(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (mtx *memoryTx) Commit(_ context.Context) error {
	if mtx.done {
		return ErrTransactionDone
	}
	mtx.store.mu.Lock()
	for id, observedGen := range mtx.observed {
		if _, staged := mtx.staged[id]; !staged {
			continue
		}
		if mtx.store.versions[id] != observedGen {
			mtx.store.mu.Unlock()
			mtx.release()
			return ErrConflict
		}
	}
	for id, rec := range mtx.staged {
		if rec == nil {
			delete(mtx.store.data, id)
		} else {
			mtx.store.data[id] = rec.Clone()
		}
		mtx.store.versions[id]++
	}
	mtx.store.mu.Unlock()
	mtx.release()
	return nil
}

func (mtx *memoryTx) Abort(_ context.Context) error {
	if mtx.done {
		return ErrTransactionDone
	}
	mtx.release()
	return nil
}

func (mtx *memoryTx) release() {
	for _, id := range mtx.held {
		mtx.store.lockFor(id).Unlock()
	}
	mtx.done = true
}
