package store

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/partyfleet/controller/internal/config"
)

// ProvideClusterStore creates the ClusterStore backend selected by
// Config.StoreBackend, grounded on the teacher's persistence/module.go
// backend-selection pattern.
func ProvideClusterStore(cfg *config.Config) (ClusterStore, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.RedisURI)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Module provides the durable store dependency to the fx container.
var Module = fx.Options(
	fx.Provide(ProvideClusterStore),
)
