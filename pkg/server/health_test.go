package server

import (
	"context"
	"testing"

	"github.com/gogo/status"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"

	"practice-controlplane/services/testutil"
)

func TestHealthCheckServing(t *testing.T) {
	db := testutil.NewTestDB(t)
	srv := NewHealthServer(healthParams{DB: db})

	resp, err := srv.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestHealthCheckClosedDB(t *testing.T) {
	db := testutil.NewTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	srv := NewHealthServer(healthParams{DB: db})
	resp, err := srv.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestHealthWatchUnimplemented(t *testing.T) {
	srv := NewHealthServer(healthParams{})
	err := srv.Watch(&grpc_health_v1.HealthCheckRequest{}, nil)

	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.Unimplemented, st.Code())
}
