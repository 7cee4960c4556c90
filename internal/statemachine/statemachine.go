// Package statemachine implements the per-record lifecycle step of
// spec.md §4.1: a pure advance of one ClusterRecord driven entirely by
// the provisioner's observed status and the clock, never by local
// assumptions, so a crash-and-replay converges on the truth the
// provisioner reports.
package statemachine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/fleeterr"
	"github.com/partyfleet/controller/internal/provisioner"
	"github.com/partyfleet/controller/internal/types"
)

// StateMachine advances ClusterRecords by consulting a Provisioner and
// the wall clock, grounded on the teacher's SchedulerService (a struct
// holding its collaborators, exposing operations as methods) generalized
// from pod-event handling to the table in spec.md §4.1.
type StateMachine struct {
	provisioner provisioner.Provisioner
	counters    provisioner.CounterSource
	cfg         *config.Config
	logger      *zap.Logger
	now         func() time.Time
}

// New builds a StateMachine. counters may be nil: the Ready-state
// counter refresh is optional per spec.md §4.1.
func New(p provisioner.Provisioner, counters provisioner.CounterSource, cfg *config.Config, logger *zap.Logger) *StateMachine {
	return &StateMachine{
		provisioner: p,
		counters:    counters,
		cfg:         cfg,
		logger:      logger.Named("statemachine"),
		now:         time.Now,
	}
}

// Advance runs one step of the table in spec.md §4.1 against rec and
// returns the resulting record. It never mutates rec in place.
func (sm *StateMachine) Advance(ctx context.Context, rec types.ClusterRecord) (types.ClusterRecord, error) {
	next := rec.Clone()

	switch rec.Status {
	case types.StatusNew:
		return sm.advanceNew(ctx, next)
	case types.StatusCreating:
		return sm.advanceCreating(ctx, next)
	case types.StatusReady:
		return sm.advanceReady(ctx, next)
	case types.StatusRemove:
		return sm.advanceRemove(ctx, next)
	case types.StatusDeleting:
		return sm.advanceDeleting(ctx, next)
	default:
		// Deleted records are removed from the mapping by the reconciler,
		// never advanced again.
		return next, nil
	}
}

func (sm *StateMachine) advanceNew(ctx context.Context, rec types.ClusterRecord) (types.ClusterRecord, error) {
	name := types.GenerateClusterName()
	address, err := sm.provisioner.Create(ctx, name)
	if err != nil {
		return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.New", err)
	}
	rec.Address = address
	rec.Status = types.StatusCreating
	sm.logger.Debug("cluster created", rec.ID.ZapField(), zap.String("address", address))
	return rec, nil
}

func (sm *StateMachine) advanceCreating(ctx context.Context, rec types.ClusterRecord) (types.ClusterRecord, error) {
	status, err := sm.provisioner.Status(ctx, rec.Address)
	if err != nil {
		return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.Creating", err)
	}

	switch status {
	case provisioner.StatusCreating:
		return rec, nil
	case provisioner.StatusReady:
		ports, err := sm.provisioner.Ports(ctx, rec.Address)
		if err != nil {
			return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.Creating", err)
		}
		rec.Ports = ports
		rec.CreatedOn = sm.now()
		rec.Status = types.StatusReady
		sm.logger.Info("cluster ready", rec.ID.ZapField())
		return rec, nil
	case provisioner.StatusCreateFailed:
		// Revert to New so the next tick retries creation with a fresh name.
		rec.Address = ""
		rec.Status = types.StatusNew
		sm.logger.Warn("cluster create failed, reverting to New", rec.ID.ZapField())
		return rec, nil
	case provisioner.StatusDeleting:
		rec.Status = types.StatusDeleting
		return rec, nil
	default:
		return rec, nil
	}
}

func (sm *StateMachine) advanceReady(ctx context.Context, rec types.ClusterRecord) (types.ClusterRecord, error) {
	// Tie-break per spec.md §4.1: uptime expiry takes priority over an
	// observed Deleting status; either way the record ends up Deleting.
	if sm.now().Sub(rec.CreatedOn) >= sm.cfg.MaxClusterUptime {
		if err := sm.provisioner.Delete(ctx, rec.Address); err != nil {
			return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.Ready", err)
		}
		rec.Status = types.StatusDeleting
		sm.logger.Info("cluster exceeded max uptime", rec.ID.ZapField())
		return rec, nil
	}

	status, err := sm.provisioner.Status(ctx, rec.Address)
	if err != nil {
		return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.Ready", err)
	}
	if status == provisioner.StatusDeleting {
		rec.Status = types.StatusDeleting
		return rec, nil
	}

	if sm.counters != nil {
		if appCount, err := sm.counters.AppCount(ctx, rec.Address); err == nil {
			rec.AppCount = appCount
		}
		if svcCount, err := sm.counters.ServiceCount(ctx, rec.Address); err == nil {
			rec.ServiceCount = svcCount
		}
	}
	return rec, nil
}

func (sm *StateMachine) advanceRemove(ctx context.Context, rec types.ClusterRecord) (types.ClusterRecord, error) {
	status, err := sm.provisioner.Status(ctx, rec.Address)
	if err != nil {
		return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.Remove", err)
	}

	switch status {
	case provisioner.StatusCreating, provisioner.StatusReady, provisioner.StatusCreateFailed, provisioner.StatusDeleteFailed:
		if err := sm.provisioner.Delete(ctx, rec.Address); err != nil {
			return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.Remove", err)
		}
		rec.Status = types.StatusDeleting
		return rec, nil
	case provisioner.StatusDeleting:
		rec.Status = types.StatusDeleting
		return rec, nil
	default:
		return rec, nil
	}
}

func (sm *StateMachine) advanceDeleting(ctx context.Context, rec types.ClusterRecord) (types.ClusterRecord, error) {
	status, err := sm.provisioner.Status(ctx, rec.Address)
	if err != nil {
		return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.Deleting", err)
	}

	switch status {
	case provisioner.StatusCreating, provisioner.StatusReady:
		// Idempotent retry: the provisioner has not observed the delete yet.
		if err := sm.provisioner.Delete(ctx, rec.Address); err != nil {
			return rec, fleeterr.Wrap(fleeterr.KindProvisionerFailure, "Advance.Deleting", err)
		}
		return rec, nil
	case provisioner.StatusDeleting:
		return rec, nil
	case provisioner.StatusClusterNotFound:
		rec.Status = types.StatusDeleted
		sm.logger.Info("cluster deleted", rec.ID.ZapField())
		return rec, nil
	case provisioner.StatusCreateFailed, provisioner.StatusDeleteFailed:
		rec.Status = types.StatusRemove
		return rec, nil
	default:
		return rec, nil
	}
}
