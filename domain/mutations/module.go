package mutations

import (
	"go.uber.org/fx"
)

// Module provides the mutation router.
var Module = fx.Module("mutations",
	fx.Provide(NewMetrics),
	fx.Provide(NewRouter),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
