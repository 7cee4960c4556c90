package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/partyfleet/controller/internal/types"
)

const (
	lockTTL     = 10 * time.Second
	lockRetry   = 20 * time.Millisecond
	indexSetKey = DictionaryName + ":index"
)

// redisStore implements ClusterStore on top of Redis, grounded on the
// teacher's persistence/redis.go (per-key formKey + TxPipeline commits)
// and persistence/redis_pool_store.go (sorted-set/set index patterns).
// Each record lives at its own key; a companion set indexes the live
// keys for Enumerate/Count. An update lock is a short-lived SETNX key,
// the same primitive the teacher uses for idempotence-key locking.
//
// Every record carries a Version counter. A transaction records the
// version it observed at TryGet time; Commit re-checks that version
// against the current value and wraps the write in a client-side WATCH
// on the touched keys, so a LockNone read-modify-write (the reconciler,
// the balancer) aborts instead of silently clobbering a LockUpdate
// write (admission.Join) that committed in between (spec.md §5).
type redisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed ClusterStore from a redis:// URI.
func NewRedisStore(redisURI string) (ClusterStore, error) {
	client, err := newRedisClient(redisURI)
	if err != nil {
		return nil, err
	}
	return &redisStore{client: client}, nil
}

// NewRedisStoreFromClient builds a Redis-backed ClusterStore from an
// existing client, used by tests running against a miniredis instance.
func NewRedisStoreFromClient(client *redis.Client) ClusterStore {
	return &redisStore{client: client}
}

func newRedisClient(redisURI string) (*redis.Client, error) {
	if redisURI == "" {
		return nil, fmt.Errorf("redis URI is required")
	}
	uri, err := url.Parse(redisURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URI: %w", err)
	}
	password := ""
	if uri.User != nil {
		password, _ = uri.User.Password()
	}
	return redis.NewClient(&redis.Options{
		Addr:     uri.Host,
		Password: password,
	}), nil
}

func (s *redisStore) Name() string { return DictionaryName }

func (s *redisStore) recordKey(id types.ClusterID) string {
	return DictionaryName + ":record:" + id.String()
}

func (s *redisStore) lockKey(id types.ClusterID) string {
	return DictionaryName + ":lock:" + id.String()
}

// held maps an id to its update-lock token; staged holds this
// transaction's uncommitted writes (nil marks a tombstone); observed
// holds the version seen at TryGet time for every key this transaction
// has read, checked against the live value at Commit.
type redisTx struct {
	store    *redisStore
	held     map[types.ClusterID]string
	staged   map[types.ClusterID]*types.ClusterRecord
	observed map[types.ClusterID]int64
	done     bool
}

func (s *redisStore) BeginTransaction(_ context.Context) (Transaction, error) {
	return &redisTx{
		store:    s,
		held:     make(map[types.ClusterID]string),
		staged:   make(map[types.ClusterID]*types.ClusterRecord),
		observed: make(map[types.ClusterID]int64),
	}, nil
}

func asRedisTx(tx Transaction) (*redisTx, bool) {
	rtx, ok := tx.(*redisTx)
	return rtx, ok
}

func (s *redisStore) acquireLock(ctx context.Context, id types.ClusterID) (string, error) {
	token := types.GenerateClusterName()
	key := s.lockKey(id)
	for {
		ok, err := s.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return "", fmt.Errorf("acquire lock for %s: %w", id, err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ErrLockTimeout
		case <-time.After(lockRetry):
		}
	}
}

func (s *redisStore) releaseLock(ctx context.Context, id types.ClusterID, token string) {
	// best-effort release; a mismatched token means the lock already
	// expired and was acquired by someone else, so we must not delete it.
	val, err := s.client.Get(ctx, s.lockKey(id)).Result()
	if err == nil && val == token {
		s.client.Del(ctx, s.lockKey(id))
	}
}

func (s *redisStore) TryGet(ctx context.Context, tx Transaction, id types.ClusterID, lock LockMode) (types.ClusterRecord, bool, error) {
	rtx, ok := asRedisTx(tx)
	if !ok || rtx.done {
		return types.ClusterRecord{}, false, ErrTransactionDone
	}

	if lock == LockUpdate {
		if _, already := rtx.held[id]; !already {
			token, err := s.acquireLock(ctx, id)
			if err != nil {
				return types.ClusterRecord{}, false, err
			}
			rtx.held[id] = token
		}
	}

	if staged, ok := rtx.staged[id]; ok {
		if staged == nil {
			return types.ClusterRecord{}, false, nil
		}
		return staged.Clone(), true, nil
	}

	raw, err := s.client.Get(ctx, s.recordKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			if _, already := rtx.observed[id]; !already {
				rtx.observed[id] = 0
			}
			return types.ClusterRecord{}, false, nil
		}
		return types.ClusterRecord{}, false, fmt.Errorf("get cluster record %s: %w", id, err)
	}

	rec, version, err := decodeRecord(raw)
	if err != nil {
		return types.ClusterRecord{}, false, err
	}
	if _, already := rtx.observed[id]; !already {
		rtx.observed[id] = version
	}
	return rec, true, nil
}

func (s *redisStore) Add(_ context.Context, tx Transaction, id types.ClusterID, rec types.ClusterRecord) error {
	rtx, ok := asRedisTx(tx)
	if !ok || rtx.done {
		return ErrTransactionDone
	}
	cloned := rec.Clone()
	rtx.staged[id] = &cloned
	return nil
}

func (s *redisStore) Set(ctx context.Context, tx Transaction, id types.ClusterID, rec types.ClusterRecord) error {
	return s.Add(ctx, tx, id, rec)
}

func (s *redisStore) TryRemove(ctx context.Context, tx Transaction, id types.ClusterID) (bool, error) {
	rtx, ok := asRedisTx(tx)
	if !ok || rtx.done {
		return false, ErrTransactionDone
	}
	if staged, ok := rtx.staged[id]; ok {
		existed := staged != nil
		rtx.staged[id] = nil
		return existed, nil
	}
	raw, err := s.client.Get(ctx, s.recordKey(id)).Result()
	switch {
	case err == redis.Nil:
		if _, already := rtx.observed[id]; !already {
			rtx.observed[id] = 0
		}
		rtx.staged[id] = nil
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check cluster record %s: %w", id, err)
	}
	if _, already := rtx.observed[id]; !already {
		if _, version, err := decodeRecord(raw); err == nil {
			rtx.observed[id] = version
		}
	}
	rtx.staged[id] = nil
	return true, nil
}

func (s *redisStore) Enumerate(ctx context.Context) ([]types.ClusterID, error) {
	members, err := s.client.SMembers(ctx, indexSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("enumerate clusterDictionary: %w", err)
	}
	ids := make([]types.ClusterID, 0, len(members))
	for _, m := range members {
		ids = append(ids, types.ClusterID(m))
	}
	return ids, nil
}

func (s *redisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, indexSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count clusterDictionary: %w", err)
	}
	return int(n), nil
}

func (rtx *redisTx) Commit(ctx context.Context) error {
	if rtx.done {
		return ErrTransactionDone
	}
	defer rtx.release(ctx)

	if len(rtx.staged) == 0 {
		return nil
	}

	watchKeys := make([]string, 0, len(rtx.staged))
	for id := range rtx.staged {
		watchKeys = append(watchKeys, rtx.store.recordKey(id))
	}

	conflict := false
	txFunc := func(tx *redis.Tx) error {
		currentVersions := make(map[types.ClusterID]int64, len(rtx.staged))
		for id := range rtx.staged {
			raw, err := tx.Get(ctx, rtx.store.recordKey(id)).Result()
			switch {
			case err == redis.Nil:
				currentVersions[id] = 0
			case err != nil:
				return fmt.Errorf("get cluster record %s: %w", id, err)
			default:
				_, version, err := decodeRecord(raw)
				if err != nil {
					return err
				}
				currentVersions[id] = version
			}
			if observed, tracked := rtx.observed[id]; tracked && observed != currentVersions[id] {
				conflict = true
				return ErrConflict
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for id, rec := range rtx.staged {
				key := rtx.store.recordKey(id)
				if rec == nil {
					pipe.Del(ctx, key)
					pipe.SRem(ctx, indexSetKey, id.String())
					continue
				}
				encoded, err := encodeRecord(*rec, currentVersions[id]+1)
				if err != nil {
					return fmt.Errorf("encode cluster record %s: %w", id, err)
				}
				pipe.Set(ctx, key, encoded, 0)
				pipe.SAdd(ctx, indexSetKey, id.String())
			}
			return nil
		})
		return err
	}

	err := rtx.store.client.Watch(ctx, txFunc, watchKeys...)
	if conflict || err == redis.TxFailedErr {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("commit clusterDictionary transaction: %w", err)
	}
	return nil
}

func (rtx *redisTx) Abort(ctx context.Context) error {
	if rtx.done {
		return ErrTransactionDone
	}
	rtx.release(ctx)
	return nil
}

func (rtx *redisTx) release(ctx context.Context) {
	for id, token := range rtx.held {
		rtx.store.releaseLock(ctx, id, token)
	}
	rtx.done = true
}

// wireRecord is the JSON-on-the-wire shape of a ClusterRecord: the typed
// wrappers in internal/types already marshal as plain strings, so this
// exists only to pin the field names independent of Go identifiers.
// Version is the optimistic-concurrency counter Commit checks against a
// transaction's observed reads; it is never exposed on types.ClusterRecord.
type wireRecord struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Address      string     `json:"address"`
	Ports        []int      `json:"ports"`
	Users        []wireUser `json:"users"`
	CreatedOn    time.Time  `json:"createdOn"`
	AppCount     int        `json:"appCount"`
	ServiceCount int        `json:"serviceCount"`
	Version      int64      `json:"version"`
}

type wireUser struct {
	Name string `json:"name"`
	Port int    `json:"port"`
}

func encodeRecord(rec types.ClusterRecord, version int64) (string, error) {
	w := wireRecord{
		ID:           rec.ID.String(),
		Status:       string(rec.Status),
		Address:      rec.Address,
		Ports:        rec.Ports,
		CreatedOn:    rec.CreatedOn,
		AppCount:     rec.AppCount,
		ServiceCount: rec.ServiceCount,
		Version:      version,
	}
	// NoCreatedOn lies outside the year range encoding/json accepts for a
	// time.Time, so the sentinel travels as the zero time instead.
	if rec.CreatedOn.Equal(types.NoCreatedOn) {
		w.CreatedOn = time.Time{}
	}
	for _, u := range rec.Users {
		w.Users = append(w.Users, wireUser{Name: u.Name.String(), Port: u.Port})
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRecord(raw string) (types.ClusterRecord, int64, error) {
	var w wireRecord
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return types.ClusterRecord{}, 0, fmt.Errorf("decode cluster record: %w", err)
	}
	rec := types.ClusterRecord{
		ID:           types.ClusterID(w.ID),
		Status:       types.ClusterStatus(w.Status),
		Address:      w.Address,
		Ports:        w.Ports,
		CreatedOn:    w.CreatedOn,
		AppCount:     w.AppCount,
		ServiceCount: w.ServiceCount,
	}
	if w.CreatedOn.IsZero() {
		rec.CreatedOn = types.NoCreatedOn
	}
	for _, u := range w.Users {
		rec.Users = append(rec.Users, types.User{Name: types.UserName(u.Name), Port: u.Port})
	}
	return rec, w.Version, nil
}
