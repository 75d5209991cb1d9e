package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupNoopWhenDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "test", Config{Enabled: false, Endpoint: "http://localhost:4318"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "test", Config{Enabled: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, shutdown(ctx))
}

func TestSetupWithEndpoint(t *testing.T) {
	// non-routable, nothing is exported before shutdown
	shutdown, err := Setup(context.Background(), "test", Config{Enabled: true, Endpoint: "http://192.0.2.1:4318"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
