package middleware

import (
	"practice-controlplane/pkg/auth"
	"practice-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const (
	TenantHeader = "X-Tenant-ID"
	tenantKey    = "tenant_id"

	PlatformAdmin = "platform_admin"
)

// Tenant requires the X-Tenant-ID header and, for authenticated callers, that it matches their tenant.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(TenantHeader)
		if tenantID == "" {
			Abort(c, errutil.BadRequest("missing X-Tenant-ID header", nil))
			return
		}

		if p, ok := auth.FromContext(c.Request.Context()); ok && !hasRole(p.Roles, PlatformAdmin) && p.TenantID != tenantID {
			Abort(c, errutil.Forbidden("token is not valid for this tenant", nil))
			return
		}

		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func TenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
