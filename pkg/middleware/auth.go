package middleware

import (
	"context"
	"strings"

	"practice-controlplane/pkg/auth"
	"practice-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const APIKeyHeader = "X-Api-Key"

// KeyVerifier authenticates machine callers that send an API key instead of a bearer token.
type KeyVerifier interface {
	VerifyKey(ctx context.Context, key string) (*auth.Principal, error)
}

// Authenticate verifies the bearer token, or the X-Api-Key header when keys is set,
// and stores the principal on the request context.
func Authenticate(v *auth.Verifier, keys KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(APIKeyHeader); key != "" && keys != nil {
			p, err := keys.VerifyKey(c.Request.Context(), key)
			if err != nil {
				Abort(c, errutil.Unauthorized("invalid api key", err))
				return
			}

			c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			Abort(c, errutil.Unauthorized("missing bearer token", nil))
			return
		}

		p, err := v.Verify(token)
		if err != nil {
			Abort(c, errutil.Unauthorized("invalid bearer token", err))
			return
		}

		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}
