package queries

import (
	"go.uber.org/fx"
)

// Module provides the query router.
var Module = fx.Module("queries",
	fx.Provide(NewMetrics),
	fx.Provide(NewRouter),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
