package rating

import (
	"practice-controlplane/services/appointment"
	"practice-controlplane/services/practitioner"

	"go.uber.org/fx"
)

var Module = fx.Module("rating.service",
	fx.Provide(
		func(s *appointment.Service) ParticipantLister { return s },
		func(d practitioner.Directory) NameResolver { return d },
		NewService,
	),
)

var ServerModule = fx.Module("rating.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
