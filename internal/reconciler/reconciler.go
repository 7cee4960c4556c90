// Package reconciler implements the periodic driver of spec.md §4.4:
// each tick advances every record, computes a fresh target, and
// balances toward it, then sleeps until the next tick honouring
// cancellation.
package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/balancer"
	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/fleeterr"
	"github.com/partyfleet/controller/internal/planner"
	"github.com/partyfleet/controller/internal/statemachine"
	"github.com/partyfleet/controller/internal/store"
	"github.com/partyfleet/controller/internal/types"
)

// Manager drives the reconciler loop, grounded on the teacher's
// jobs/cleanup.Manager (ticker-driven goroutine with cooperative
// cancellation via context).
type Manager struct {
	store       store.ClusterStore
	statemach   *statemachine.StateMachine
	balancer    *balancer.Balancer
	cfg         *config.Config
	interval    time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *zap.Logger
}

func NewManager(s store.ClusterStore, sm *statemachine.StateMachine, b *balancer.Balancer, cfg *config.Config, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     s,
		statemach: sm,
		balancer:  b,
		cfg:       cfg,
		interval:  cfg.RefreshInterval,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.Named("reconciler"),
	}
}

// Start begins the reconciler loop in a goroutine.
func (m *Manager) Start() {
	m.logger.Info("starting reconciler loop", zap.Duration("interval", m.interval))
	go m.run()
}

// Stop cancels the reconciler loop.
func (m *Manager) Stop() {
	m.logger.Info("stopping reconciler loop")
	m.cancel()
}

func (m *Manager) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("reconciler loop shutting down")
			return
		case <-ticker.C:
			if err := m.Tick(m.ctx); err != nil {
				m.logger.Error("reconciler tick failed", zap.Error(err))
			}
		}
	}
}

// Tick runs one pass of advance-all -> compute-target -> balance. It is
// exported so tests can drive individual ticks deterministically without
// waiting on the ticker.
func (m *Manager) Tick(ctx context.Context) error {
	if err := m.advanceAll(ctx); err != nil {
		return err
	}

	fleet, err := m.snapshot(ctx)
	if err != nil {
		return err
	}
	target := planner.ComputeTarget(fleet, m.cfg)

	return m.balancer.Balance(ctx, target)
}

func (m *Manager) advanceAll(ctx context.Context) error {
	ids, err := m.store.Enumerate(ctx)
	if err != nil {
		return fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.advanceAll", err)
	}

	tx, err := m.store.BeginTransaction(ctx)
	if err != nil {
		return fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.advanceAll", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Abort(ctx)
		}
	}()

	for _, id := range ids {
		rec, ok, err := m.store.TryGet(ctx, tx, id, store.LockNone)
		if err != nil {
			return fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.advanceAll", err)
		}
		if !ok {
			continue
		}

		next, err := m.statemach.Advance(ctx, rec)
		if err != nil {
			m.logger.Warn("advancing record failed, leaving unchanged this tick",
				id.ZapField(), zap.Error(err))
			continue
		}

		if next.Status == types.StatusDeleted {
			if _, err := m.store.TryRemove(ctx, tx, id); err != nil {
				return fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.advanceAll", err)
			}
			continue
		}
		if err := m.store.Set(ctx, tx, id, next); err != nil {
			return fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.advanceAll", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if err == store.ErrConflict {
			m.logger.Info("advance-all transaction conflicted with a concurrent update, retrying next tick")
			return nil
		}
		return fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.advanceAll", err)
	}
	committed = true
	return nil
}

func (m *Manager) snapshot(ctx context.Context) ([]types.ClusterRecord, error) {
	ids, err := m.store.Enumerate(ctx)
	if err != nil {
		return nil, fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.snapshot", err)
	}

	tx, err := m.store.BeginTransaction(ctx)
	if err != nil {
		return nil, fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.snapshot", err)
	}
	defer tx.Commit(ctx)

	fleet := make([]types.ClusterRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := m.store.TryGet(ctx, tx, id, store.LockNone)
		if err != nil {
			return nil, fleeterr.Wrap(fleeterr.KindStoreFailure, "Tick.snapshot", err)
		}
		if ok {
			fleet = append(fleet, rec)
		}
	}
	return fleet, nil
}
