package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"practice-controlplane/pkg/config"
	"practice-controlplane/pkg/db"
	"practice-controlplane/pkg/gen"
	"practice-controlplane/pkg/hashistack/secretmanager"
	"practice-controlplane/pkg/lock"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/redis"
	"practice-controlplane/services/bootstrap"
	"practice-controlplane/services/license"
)

const startTimeout = 30 * time.Second

type globalFlags struct {
	localLock bool
}

// deps is what the subcommands pull out of the fx graph.
type deps struct {
	Licenses  *license.Service
	Bootstrap *bootstrap.Service
}

// withApp starts a minimal fx app, hands its services to fn and stops the app afterwards.
func withApp(ctx context.Context, g *globalFlags, fn func(ctx context.Context, d deps) error) error {
	locker := lock.Module
	infra := []fx.Option{redis.Module}
	if g.localLock {
		locker = lock.LocalModule
		infra = nil
	}

	var d deps
	opts := append([]fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		locker,
		license.Module,
		fx.Provide(bootstrap.NewService),
		fx.Populate(&d.Licenses, &d.Bootstrap),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}, infra...)

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx, d)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
