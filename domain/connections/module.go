package connections

import (
	"go.uber.org/fx"
)

// Module provides connection domain dependencies.
var Module = fx.Module("connections",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
