//go:build integration

package eventbus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a real Redis container for exercising Connect
// against an actual server, rather than miniredis's in-process emulation.
func setupRedisContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cleanup := func() {
		_ = redisC.Terminate(ctx)
	}
	return fmt.Sprintf("redis://%s:%s", host, port.Port()), cleanup
}

func TestBus_PublishJobEventAgainstRealRedis(t *testing.T) {
	url, cleanup := setupRedisContainer(t)
	defer cleanup()

	ctx := context.Background()
	bus, err := Connect(ctx, url)
	require.NoError(t, err)
	defer bus.Close()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, jobEventsChannel)
	defer sub.Close()
	_, err = sub.Receive(ctx) // blocks until the subscribe is acknowledged
	require.NoError(t, err)

	err = bus.PublishJobEvent(ctx, JobEvent{JobID: "job-integration", Status: "success", At: time.Now().UTC()})
	require.NoError(t, err)

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)
	require.Contains(t, msg.Payload, "job-integration")
}
