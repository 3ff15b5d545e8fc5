package task

import (
	"practice-controlplane/services/license"
	"practice-controlplane/services/tenant"

	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(
		func(s *tenant.Service) TenantLister { return s },
		func(s *license.Service) SeatReconciler { return s },
		NewService,
	),
)

// SchedulerModule enqueues the daily sweep. It needs Module or WorkerModule alongside it.
var SchedulerModule = fx.Module("task.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)

var WorkerModule = fx.Module("task.worker",
	Module,
	fx.Invoke(RegisterHandlers),
)
