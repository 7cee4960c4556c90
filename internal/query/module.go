package query

import "go.uber.org/fx"

// Module provides the query handler dependency to the fx container.
var Module = fx.Options(
	fx.Provide(New),
)
