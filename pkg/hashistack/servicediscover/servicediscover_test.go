package servicediscover

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"practice-controlplane/pkg/config"
)

func TestNewRegistryWithoutConsul(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Addr = "8080"

	reg, err := NewRegistry(cfg)
	require.NoError(t, err)
	require.IsType(t, noopRegistry{}, reg)
	require.NoError(t, reg.Register(context.Background()))
	require.NoError(t, reg.Deregister(context.Background()))
}

func TestNewRegistryWithConsul(t *testing.T) {
	cfg := &config.Config{AppName: "practice-controlplane", NodeID: 3}
	cfg.Server.Addr = "8080"
	cfg.Consul.Addr = "127.0.0.1:8500"
	cfg.Consul.Host = "10.0.0.5"

	reg, err := NewRegistry(cfg)
	require.NoError(t, err)

	consul, ok := reg.(*ConsulRegistry)
	require.True(t, ok)
	require.Equal(t, "practice-controlplane-3", consul.serviceID)
	require.Equal(t, 8080, consul.service.Port)
	require.Equal(t, "http://10.0.0.5:8080/readyz", consul.service.Check.HTTP)
}

func TestNewRegistryInvalidPort(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Addr = "not-a-port"
	cfg.Consul.Addr = "127.0.0.1:8500"

	_, err := NewRegistry(cfg)
	require.Error(t, err)
}
