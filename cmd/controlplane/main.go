package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"practice-controlplane/pkg/auth"
	"practice-controlplane/pkg/config"
	"practice-controlplane/pkg/db"
	"practice-controlplane/pkg/events"
	"practice-controlplane/pkg/featureflags"
	"practice-controlplane/pkg/gen"
	"practice-controlplane/pkg/hashistack/secretmanager"
	"practice-controlplane/pkg/hashistack/servicediscover"
	"practice-controlplane/pkg/health"
	"practice-controlplane/pkg/httpapi"
	"practice-controlplane/pkg/lock"
	"practice-controlplane/pkg/logger"
	"practice-controlplane/pkg/metrics"
	"practice-controlplane/pkg/middleware"
	"practice-controlplane/pkg/minio"
	"practice-controlplane/pkg/otelcol"
	"practice-controlplane/pkg/profiling"
	"practice-controlplane/pkg/redis"
	"practice-controlplane/pkg/sequence"
	"practice-controlplane/pkg/server"
	"practice-controlplane/pkg/task"
	"practice-controlplane/services/apikey"
	"practice-controlplane/services/appointment"
	"practice-controlplane/services/billing"
	"practice-controlplane/services/bootstrap"
	"practice-controlplane/services/license"
	"practice-controlplane/services/practitioner"
	"practice-controlplane/services/rating"
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
		featureflags.Module,
		minio.Client,
		task.Client,
		auth.Module,
		middleware.Module,
		health.Module,
		httpapi.Module,
		bootstrap.Module,

		apikey.Module,
		license.ServerModule,
		tenant.ServerModule,
		practitioner.ServerModule,
		appointment.ServerModule,
		rating.ServerModule,
		billing.ServerModule,

		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		servicediscover.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
