package billing

import (
	"practice-controlplane/services/license"
	"practice-controlplane/services/tenant"

	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(
		func(s *tenant.Service) TenantDirectory { return s },
		func(s *license.Service) SeatReconciler { return s },
		NewService,
	),
)

var ServerModule = fx.Module("billing.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
