package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"practice-controlplane/pkg/auth"
	"practice-controlplane/pkg/errutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

const secret = "0123456789abcdef0123456789abcdef"

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()

	enforcer, err := NewDefaultEnforcer()
	require.NoError(t, err)

	r := gin.New()
	r.Use(Error())
	api := r.Group("/api/v1", Authenticate(auth.NewVerifier(secret, "portal"), staticKeys{"k1.s3cret": {Subject: "k1", TenantID: "t1", Roles: []string{"practice_admin"}}}), Tenant(), Authorize(enforcer))
	api.GET("/licenses", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tenant_id": TenantID(c)})
	})
	api.POST("/tenants", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

type staticKeys map[string]*auth.Principal

func (k staticKeys) VerifyKey(ctx context.Context, key string) (*auth.Principal, error) {
	if p, ok := k[key]; ok {
		return p, nil
	}
	return nil, errors.New("unknown key")
}

func token(t *testing.T, tenantID string, roles ...string) string {
	t.Helper()
	tok, err := auth.NewVerifier(secret, "portal").Issue("user-1", auth.Claims{TenantID: tenantID, Roles: roles}, time.Minute)
	require.NoError(t, err)
	return tok
}

func do(r http.Handler, method, path, tenantID, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if tenantID != "" {
		req.Header.Set(TenantHeader, tenantID)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAllowsTenantAdmin(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodGet, "/api/v1/licenses", "t1", token(t, "t1", "practice_admin"))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"tenant_id":"t1"}`, w.Body.String())
}

func TestRejectsMissingToken(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodGet, "/api/v1/licenses", "t1", "")

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, string(errutil.StatusUnauthorized), body["error"]["code"])
}

func TestRejectsMissingTenantHeader(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodGet, "/api/v1/licenses", "", token(t, "t1", "practice_admin"))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRejectsCrossTenantToken(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodGet, "/api/v1/licenses", "t2", token(t, "t1", "practice_admin"))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestPlatformAdminCrossesTenants(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/api/v1/tenants", "t2", token(t, "", PlatformAdmin))
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRejectsRoleWithoutPolicy(t *testing.T) {
	r := newRouter(t)
	w := do(r, http.MethodPost, "/api/v1/tenants", "t1", token(t, "t1", "practice_admin"))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestErrorRendersUnknownErrorsAsInternal(t *testing.T) {
	r := gin.New()
	r.Use(Error())
	r.GET("/boom", func(c *gin.Context) { Abort(c, errors.New("boom")) })

	w := do(r, http.MethodGet, "/boom", "", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "boom")
}

func TestAllowsAPIKey(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/licenses", nil)
	req.Header.Set(TenantHeader, "t1")
	req.Header.Set(APIKeyHeader, "k1.s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRejectsUnknownAPIKey(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/licenses", nil)
	req.Header.Set(TenantHeader, "t1")
	req.Header.Set(APIKeyHeader, "k1.wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
