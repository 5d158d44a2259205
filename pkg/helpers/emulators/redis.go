package emulators

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testRedisImage = "redis:7-alpine"
	testRedisPort  = "6379"
)

// SetupRedisContainer starts a Redis container and returns its address
// (host:port) plus a cleanup func.
func SetupRedisContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        testRedisImage,
		ExposedPorts: []string{fmt.Sprintf("%s/tcp", testRedisPort)},
		WaitingFor:   wait.ForListeningPort(nat.Port(testRedisPort)),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port(testRedisPort))
	require.NoError(t, err)

	addr := fmt.Sprintf("%s:%s", host, port.Port())
	t.Logf("Redis container started, listening on: %s", addr)

	return addr, func() {
		require.NoError(t, container.Terminate(ctx))
	}
}
