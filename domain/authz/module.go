package authz

import (
	"go.uber.org/fx"
)

// Module provides authorization dependencies.
var Module = fx.Module("authz",
	fx.Provide(NewRepository),
	fx.Provide(NewEvaluator),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
