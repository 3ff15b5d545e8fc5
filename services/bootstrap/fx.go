package bootstrap

import (
	"context"

	"practice-controlplane/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("bootstrap",
	fx.Provide(
		NewService,
	),
	fx.Invoke(runBootstrap),
)

// runBootstrap migrates on start unless DATABASE.AUTO_MIGRATE is off.
func runBootstrap(lc fx.Lifecycle, cfg *config.Config, b *Service) {
	if !cfg.Database.AutoMigrate {
		zap.L().Info("[bootstrap] auto migrate disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return b.Migrate(ctx)
		},
	})
}
