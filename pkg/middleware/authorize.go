package middleware

import (
	"practice-controlplane/pkg/auth"
	"practice-controlplane/pkg/config"
	"practice-controlplane/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("middleware", fx.Provide(ProvideEnforcer))

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

var defaultPolicies = [][]string{
	{PlatformAdmin, "/api/v1/*", "*"},
	{"practice_admin", "/api/v1/licenses", "GET"},
	{"practice_admin", "/api/v1/licenses/*", "*"},
	{"practice_admin", "/api/v1/practitioners", "*"},
	{"practice_admin", "/api/v1/practitioners/*", "GET"},
	{"practice_admin", "/api/v1/appointments", "POST"},
	{"practice_admin", "/api/v1/appointments/*", "*"},
	{"practice_admin", "/api/v1/tenants/:id", "GET"},
	{"receptionist", "/api/v1/appointments", "POST"},
	{"receptionist", "/api/v1/appointments/:id/feedback", "POST"},
	{"receptionist", "/api/v1/appointments/:id/ratings", "GET"},
	{"practitioner", "/api/v1/practitioners/:id/rating-summary", "GET"},
	{"practitioner", "/api/v1/appointments/:id/ratings", "GET"},
}

// ProvideEnforcer loads ACCESS_CONTROL.MODEL/POLICY when set, otherwise the built-in portal RBAC.
func ProvideEnforcer(cfg *config.Config) (*casbin.Enforcer, error) {
	if cfg.AccessControl.Model != "" && cfg.AccessControl.Policy != "" {
		return casbin.NewEnforcer(cfg.AccessControl.Model, cfg.AccessControl.Policy)
	}
	return NewDefaultEnforcer()
}

func NewDefaultEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, err
	}

	return e, nil
}

// Authorize checks every role of the principal against the route template and method.
func Authorize(e *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.FromContext(c.Request.Context())
		if !ok {
			Abort(c, errutil.Unauthorized("unauthenticated", nil))
			return
		}

		obj := c.Request.URL.Path
		act := c.Request.Method
		for _, role := range p.Roles {
			allowed, err := e.Enforce(role, obj, act)
			if err != nil {
				zap.L().Error("casbin enforce failed", zap.Error(err))
				Abort(c, errutil.Internal("authorization failed", err))
				return
			}
			if allowed {
				c.Next()
				return
			}
		}

		Abort(c, errutil.Forbidden("insufficient permissions", nil))
	}
}
