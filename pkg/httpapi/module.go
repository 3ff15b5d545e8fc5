package httpapi

import (
	"net/http"

	"practice-controlplane/pkg/auth"
	"practice-controlplane/pkg/config"
	"practice-controlplane/pkg/health"
	"practice-controlplane/pkg/metrics"
	"practice-controlplane/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewRouter,
		func(r *Router) http.Handler { return r.Engine },
	),
)

// Router exposes the route groups services mount their handlers on.
type Router struct {
	Engine *gin.Engine
	// API is /api/v1 for tenant scoped calls: bearer token, X-Tenant-ID and RBAC.
	API *gin.RouterGroup
	// Platform is /api/v1 without the tenant header requirement.
	Platform *gin.RouterGroup
	// Webhooks is unauthenticated; handlers verify their own signatures.
	Webhooks *gin.RouterGroup
}

type RouterParams struct {
	fx.In
	Config         *config.Config
	Health         health.HealthService
	Metrics        *metrics.Collector `optional:"true"`
	Verifier       *auth.Verifier
	Keys           middleware.KeyVerifier `optional:"true"`
	Enforcer       *casbin.Enforcer
	TracerProvider trace.TracerProvider `optional:"true"`
}

func NewRouter(p RouterParams) *Router {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), tracing(p.TracerProvider), p.Metrics.Middleware(), middleware.Error())

	engine.GET("/healthz", p.Health.Liveness)
	engine.GET("/readyz", p.Health.Readiness)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	authn := middleware.Authenticate(p.Verifier, p.Keys)
	authz := middleware.Authorize(p.Enforcer)

	return &Router{
		Engine:   engine,
		API:      engine.Group("/api/v1", authn, middleware.Tenant(), authz),
		Platform: engine.Group("/api/v1", authn, authz),
		Webhooks: engine.Group("/webhooks"),
	}
}

// tracing starts a server span per request so services can read trace ids from the context.
func tracing(tp trace.TracerProvider) gin.HandlerFunc {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer("practice-controlplane/httpapi")

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
