package reconciler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/balancer"
	"github.com/partyfleet/controller/internal/config"
	"github.com/partyfleet/controller/internal/statemachine"
	"github.com/partyfleet/controller/internal/store"
)

// ManagerParams contains the dependencies for the reconciler manager,
// grounded on the teacher's jobs/cleanup.ManagerParams.
type ManagerParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      *config.Config
	Store       store.ClusterStore
	StateMach   *statemachine.StateMachine
	Balancer    *balancer.Balancer
	Logger      *zap.Logger
}

// ProvideManager creates and registers the reconciler manager with the fx
// lifecycle.
func ProvideManager(p ManagerParams) {
	logger := p.Logger.Named("reconciler-manager")
	manager := NewManager(p.Store, p.StateMach, p.Balancer, p.Config, logger)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			manager.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			manager.Stop()
			return nil
		},
	})
}

// Module provides the reconciler dependency to the fx container.
var Module = fx.Options(
	fx.Invoke(ProvideManager),
)
