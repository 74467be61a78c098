package typeregistry

import (
	"go.uber.org/fx"

	"github.com/substrate-hq/substrate/domain/authz"
)

// Module provides type registry dependencies.
var Module = fx.Module("typeregistry",
	fx.Provide(NewRepository),
	fx.Provide(NewRegistry),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Provide(func(e *authz.Evaluator) PermissionChecker { return e }),
	fx.Invoke(RegisterRoutes),
)
