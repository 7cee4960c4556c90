// Package balancer implements the fleet-balancing routine of spec.md
// §4.3: a single transaction that reshapes the active set toward a
// target size by inserting new records or flagging empty surplus
// records for removal, respecting the configured min/max bounds.
package balancer

import (
	"context"

	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/fleeterr"
	"github.com/partyfleet/controller/internal/store"
	"github.com/partyfleet/controller/internal/types"
)

// Balancer runs the balancing transaction against a ClusterStore.
type Balancer struct {
	store  store.ClusterStore
	cfg    *config.Config
	logger *zap.Logger
}

func New(s store.ClusterStore, cfg *config.Config, logger *zap.Logger) *Balancer {
	return &Balancer{store: s, cfg: cfg, logger: logger.Named("balancer")}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Balance reshapes the fleet toward target within a single transaction,
// per the four steps of spec.md §4.3.
func (b *Balancer) Balance(ctx context.Context, target int) error {
	target = clamp(target, b.cfg.MinimumClusterCount, b.cfg.MaximumClusterCount)

	tx, err := b.store.BeginTransaction(ctx)
	if err != nil {
		return fleeterr.Wrap(fleeterr.KindStoreFailure, "Balance", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Abort(ctx)
		}
	}()

	ids, err := b.store.Enumerate(ctx)
	if err != nil {
		return fleeterr.Wrap(fleeterr.KindStoreFailure, "Balance", err)
	}

	var active []types.ClusterRecord
	for _, id := range ids {
		rec, ok, err := b.store.TryGet(ctx, tx, id, store.LockNone)
		if err != nil {
			return fleeterr.Wrap(fleeterr.KindStoreFailure, "Balance", err)
		}
		if ok && rec.Status.Active() {
			active = append(active, rec)
		}
	}

	switch {
	case len(active) < target:
		toInsert := target - len(active)
		for i := 0; i < toInsert; i++ {
			id, err := types.NewClusterID(types.GenerateClusterName())
			if err != nil {
				return fleeterr.Wrap(fleeterr.KindStoreFailure, "Balance", err)
			}
			if err := b.store.Add(ctx, tx, id, types.NewClusterRecord(id)); err != nil {
				return fleeterr.Wrap(fleeterr.KindStoreFailure, "Balance", err)
			}
		}
		b.logger.Info("scaled up", zap.Int("inserted", toInsert), zap.Int("target", target))

	case len(active) > target:
		maxRemovable := len(active) - b.cfg.MinimumClusterCount
		wantRemove := len(active) - target
		toFlag := wantRemove
		if maxRemovable < toFlag {
			toFlag = maxRemovable
		}
		flagged := 0
		for _, rec := range active {
			if flagged >= toFlag {
				break
			}
			if len(rec.Users) != 0 {
				continue
			}
			rec.Status = types.StatusRemove
			if err := b.store.Set(ctx, tx, rec.ID, rec); err != nil {
				return fleeterr.Wrap(fleeterr.KindStoreFailure, "Balance", err)
			}
			flagged++
		}
		if flagged < toFlag {
			b.logger.Debug("fewer surplus candidates than requested, retrying next tick",
				zap.Int("requested", toFlag), zap.Int("flagged", flagged))
		}
		b.logger.Info("scaled down", zap.Int("flagged", flagged), zap.Int("target", target))
	}

	if err := tx.Commit(ctx); err != nil {
		if err == store.ErrConflict {
			b.logger.Info("balance transaction conflicted with a concurrent update, retrying next tick")
			return nil
		}
		return fleeterr.Wrap(fleeterr.KindStoreFailure, "Balance", err)
	}
	committed = true
	return nil
}
