package knowledge

import (
	"go.uber.org/fx"
)

// Module provides knowledge index dependencies.
var Module = fx.Module("knowledge",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
