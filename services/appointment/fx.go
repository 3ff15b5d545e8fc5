package appointment

import (
	"go.uber.org/fx"
)

var Module = fx.Module("appointment.service",
	fx.Provide(NewService),
)

var ServerModule = fx.Module("appointment.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
