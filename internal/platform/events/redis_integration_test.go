//go:build integration

package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisBus_FanoutIntegration(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	publisher := NewRedisBus(client, zerolog.Nop())
	defer publisher.Close()
	subscriber := NewRedisBus(client, zerolog.Nop())
	defer subscriber.Close()

	clinic, other := uuid.New(), uuid.New()
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub1, err := subscriber.Subscribe(subCtx, clinic)
	require.NoError(t, err)
	sub2, err := subscriber.Subscribe(subCtx, clinic)
	require.NoError(t, err)
	subOther, err := subscriber.Subscribe(subCtx, other)
	require.NoError(t, err)

	event := QueueEvent{ID: uuid.New(), Type: EventQueueStatus, ClinicID: clinic, QueueNumber: 3, FromStatus: "waiting", ToStatus: "serving"}
	require.NoError(t, publisher.Publish(ctx, event))

	got1 := waitForEvent(t, sub1)
	got2 := waitForEvent(t, sub2)
	assert.Equal(t, event.ID, got1.ID)
	assert.Equal(t, "serving", got2.ToStatus)
	assert.Empty(t, subOther)
	require.NoError(t, subscriber.Ping(ctx))
}
