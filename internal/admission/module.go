package admission

import "go.uber.org/fx"

// Module provides the admission handler dependency to the fx container.
var Module = fx.Options(
	fx.Provide(New),
)
