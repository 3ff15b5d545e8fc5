package apikey

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"practice-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &APIKey{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, nil, "t1", APIKeyTypeServer, []string{"practice_admin"})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Secret)
	require.NotContains(t, issued.APIKey.SecretHash, issued.Secret)
	require.Contains(t, issued.APIKey.KeyID, keyPrefix)

	key, err := svc.Verify(ctx, issued.APIKey.KeyID, issued.Secret)
	require.NoError(t, err)
	require.Equal(t, "t1", key.TenantID)
	require.NotNil(t, key.LastUsedAt)

	_, err = svc.Verify(ctx, issued.APIKey.KeyID, "wrong")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = svc.Verify(ctx, "pcsk_live_missing", issued.Secret)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestVerifyKeyBuildsPrincipal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, nil, "t1", APIKeyTypeServer, []string{"practice_admin"})
	require.NoError(t, err)

	p, err := svc.VerifyKey(ctx, issued.Token())
	require.NoError(t, err)
	require.Equal(t, "t1", p.TenantID)
	require.Equal(t, []string{"practice_admin"}, p.Roles)

	_, err = svc.VerifyKey(ctx, "no-separator")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestRevokedKeyIsRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, nil, "t1", APIKeyTypeWebhook, []string{"practice_admin"})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, "t1", issued.APIKey.KeyID))

	_, err = svc.Verify(ctx, issued.APIKey.KeyID, issued.Secret)
	require.ErrorIs(t, err, ErrKeyRevoked)
}
