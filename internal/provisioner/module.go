package provisioner

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/partyfleet/controller/internal/config"
)

// ProvideProvisioner creates the Provisioner backend selected by
// Config.ProvisionerBackend, grounded on the teacher's
// k8sclient/module.go backend-selection pattern.
func ProvideProvisioner(cfg *config.Config, logger *zap.Logger) (Provisioner, error) {
	switch cfg.ProvisionerBackend {
	case "", "mock":
		return NewMockProvisioner(logger, 0, 0), nil
	case "kubernetes":
		return NewKubernetesProvisioner(cfg.KubeNamespacePrefix)
	default:
		return nil, fmt.Errorf("unknown provisioner backend %q", cfg.ProvisionerBackend)
	}
}

// ProvideCounterSource exposes the same backend as an optional
// CounterSource when it implements one, so the reconciler can refresh
// Ready-state counters per spec.md §4.1 without a hard dependency on it.
func ProvideCounterSource(p Provisioner) CounterSource {
	if cs, ok := p.(CounterSource); ok {
		return cs
	}
	return nil
}

// Module provides the provisioner dependency to the fx container.
var Module = fx.Options(
	fx.Provide(ProvideProvisioner),
	fx.Provide(ProvideCounterSource),
)
