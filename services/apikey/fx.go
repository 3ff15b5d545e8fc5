package apikey

import (
	"practice-controlplane/pkg/middleware"

	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(
		NewService,
		func(s *Service) middleware.KeyVerifier { return s },
	),
)
