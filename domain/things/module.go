package things

import (
	"go.uber.org/fx"
)

// Module provides thing domain dependencies.
var Module = fx.Module("things",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
