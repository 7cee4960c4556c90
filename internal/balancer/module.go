package balancer

import "go.uber.org/fx"

// Module provides the balancer dependency to the fx container.
var Module = fx.Options(
	fx.Provide(New),
)
