package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"practice-controlplane/pkg/config"
	"practice-controlplane/pkg/db"
	"practice-controlplane/pkg/events"
	"practice-controlplane/pkg/gen"
	"practice-controlplane/pkg/hashistack/secretmanager"
	"practice-controlplane/pkg/lock"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/metrics"
	"practice-controlplane/pkg/otelcol"
	"practice-controlplane/pkg/profiling"
	"practice-controlplane/pkg/redis"
	"practice-controlplane/pkg/sequence"
	"practice-controlplane/pkg/task"
	"practice-controlplane/services/apikey"
	"practice-controlplane/services/license"
	jobs "practice-controlplane/services/task"
	"practice-controlplane/services/tenant"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		lock.Module,
		gen.Module,
		sequence.Module,
		metrics.Module,
		events.Module,
		task.Client,
		task.Server,

		apikey.Module,
		license.WorkerModule,
		tenant.Module,
		jobs.WorkerModule,
		jobs.SchedulerModule,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
