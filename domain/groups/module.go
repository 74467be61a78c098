package groups

import (
	"go.uber.org/fx"
)

// Module provides group domain dependencies.
var Module = fx.Module("groups",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
