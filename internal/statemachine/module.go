package statemachine

import (
	"go.uber.org/fx"
)

// Module provides the state machine dependency to the fx container.
var Module = fx.Options(
	fx.Provide(New),
)
