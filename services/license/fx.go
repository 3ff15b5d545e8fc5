package license

import (
	"go.uber.org/fx"
)

var Module = fx.Module("license.service",
	fx.Provide(NewService),
)

var ServerModule = fx.Module("license.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

var WorkerModule = fx.Module("license.worker",
	Module,
	fx.Invoke(RegisterHandlers),
)
