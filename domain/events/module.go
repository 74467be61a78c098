package events

import (
	"go.uber.org/fx"

	"github.com/substrate-hq/substrate/domain/authz"
)

// Module provides event log dependencies.
var Module = fx.Module("events",
	fx.Provide(NewRepository),
	fx.Provide(func(e *authz.Evaluator) PermissionChecker { return e }),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
