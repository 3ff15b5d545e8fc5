package practitioner

import (
	"practice-controlplane/pkg/repository"
	"practice-controlplane/services/license"

	"go.uber.org/fx"
)

var Module = fx.Module("practitioner.service",
	fx.Provide(
		repository.ProvideStore[Practitioner],
		func(s *license.Service) LicenseAssigner { return s },
		NewService,
		func(s *Service) Directory { return s.Directory() },
	),
)

var ServerModule = fx.Module("practitioner.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
