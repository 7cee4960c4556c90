package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/partyfleet/controller/internal/types"
)

// backends returns one ClusterStore per implementation so the conformance
// suite below runs identically against both, grounded on the teacher's
// idempotence/redis_test.go use of miniredis to test the Redis backend
// without a live server.
func backends(t *testing.T) map[string]ClusterStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]ClusterStore{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStoreFromClient(client),
	}
}

func TestClusterStore_AddGetCommit(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := types.ClusterID("c1")
			rec := types.NewClusterRecord(id)

			tx, err := s.BeginTransaction(ctx)
			require.NoError(t, err)
			require.NoError(t, s.Add(ctx, tx, id, rec))
			require.NoError(t, tx.Commit(ctx))

			tx2, err := s.BeginTransaction(ctx)
			require.NoError(t, err)
			got, ok, err := s.TryGet(ctx, tx2, id, LockNone)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, types.StatusNew, got.Status)
			require.NoError(t, tx2.Commit(ctx))
		})
	}
}

func TestClusterStore_AbortDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := types.ClusterID("c1")
			tx, err := s.BeginTransaction(ctx)
			require.NoError(t, err)
			require.NoError(t, s.Add(ctx, tx, id, types.NewClusterRecord(id)))
			require.NoError(t, tx.Abort(ctx))

			tx2, _ := s.BeginTransaction(ctx)
			_, ok, err := s.TryGet(ctx, tx2, id, LockNone)
			require.NoError(t, err)
			require.False(t, ok)
			tx2.Commit(ctx)
		})
	}
}

func TestClusterStore_RemoveCommittedRecord(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := types.ClusterID("c1")
			tx, _ := s.BeginTransaction(ctx)
			require.NoError(t, s.Add(ctx, tx, id, types.NewClusterRecord(id)))
			require.NoError(t, tx.Commit(ctx))

			tx2, _ := s.BeginTransaction(ctx)
			existed, err := s.TryRemove(ctx, tx2, id)
			require.NoError(t, err)
			require.True(t, existed)
			require.NoError(t, tx2.Commit(ctx))

			tx3, _ := s.BeginTransaction(ctx)
			_, ok, err := s.TryGet(ctx, tx3, id, LockNone)
			require.NoError(t, err)
			require.False(t, ok)
			tx3.Commit(ctx)
		})
	}
}

func TestClusterStore_EnumerateAndCount(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tx, _ := s.BeginTransaction(ctx)
			for i := 0; i < 3; i++ {
				id := types.ClusterID(string(rune('a' + i)))
				require.NoError(t, s.Add(ctx, tx, id, types.NewClusterRecord(id)))
			}
			require.NoError(t, tx.Commit(ctx))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			require.Equal(t, 3, n)

			ids, err := s.Enumerate(ctx)
			require.NoError(t, err)
			require.Len(t, ids, 3)
		})
	}
}

func TestClusterStore_StaleReadModifyWriteConflictsWithIntervalCommit(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := types.ClusterID("c1")
			setup, _ := s.BeginTransaction(ctx)
			require.NoError(t, s.Add(ctx, setup, id, types.NewClusterRecord(id)))
			require.NoError(t, setup.Commit(ctx))

			// reconciler/balancer-style stale read, held open
			reader, _ := s.BeginTransaction(ctx)
			rec, ok, err := s.TryGet(ctx, reader, id, LockNone)
			require.NoError(t, err)
			require.True(t, ok)

			// a concurrent admission.Join-style update lands and commits first
			writer, _ := s.BeginTransaction(ctx)
			joined, ok, err := s.TryGet(ctx, writer, id, LockUpdate)
			require.NoError(t, err)
			require.True(t, ok)
			joined.Users = append(joined.Users, types.User{Name: types.UserName("alice"), Port: 80})
			require.NoError(t, s.Set(ctx, writer, id, joined))
			require.NoError(t, writer.Commit(ctx))

			// the stale reader's write-back must not clobber the join
			rec.Status = types.StatusRemove
			require.NoError(t, s.Set(ctx, reader, id, rec))
			require.ErrorIs(t, reader.Commit(ctx), ErrConflict)

			verify, _ := s.BeginTransaction(ctx)
			got, ok, err := s.TryGet(ctx, verify, id, LockNone)
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, got.Users, 1, "the committed join must survive the aborted stale write-back")
			require.Equal(t, types.StatusNew, got.Status)
			require.NoError(t, verify.Commit(ctx))
		})
	}
}

func TestClusterStore_UpdateLockExcludesConcurrentUpdateLock(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := types.ClusterID("c1")
			tx, _ := s.BeginTransaction(ctx)
			require.NoError(t, s.Add(ctx, tx, id, types.NewClusterRecord(id)))
			require.NoError(t, tx.Commit(ctx))

			tx1, _ := s.BeginTransaction(ctx)
			_, _, err := s.TryGet(ctx, tx1, id, LockUpdate)
			require.NoError(t, err)

			acquired := make(chan struct{})
			go func() {
				tx2, _ := s.BeginTransaction(ctx)
				lockCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
				defer cancel()
				s.TryGet(lockCtx, tx2, id, LockUpdate)
				close(acquired)
				tx2.Abort(ctx)
			}()

			select {
			case <-acquired:
				t.Fatal("second update lock acquired while first still held")
			case <-time.After(50 * time.Millisecond):
			}

			require.NoError(t, tx1.Commit(ctx))
			<-acquired
		})
	}
}
