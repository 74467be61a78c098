package webhooks

import (
	"go.uber.org/fx"
)

// Module provides webhook ingestion.
var Module = fx.Module("webhooks",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
