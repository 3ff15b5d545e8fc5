package tenant

import (
	"practice-controlplane/services/license"

	"go.uber.org/fx"
)

var Module = fx.Module("tenant.module",
	fx.Provide(
		func(s *license.Service) SeatReconciler { return s },
		NewService,
	),
)

var ServerModule = fx.Module("tenant.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
