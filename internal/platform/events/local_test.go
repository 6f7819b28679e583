package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, ch <-chan QueueEvent) QueueEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return QueueEvent{}
	}
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("6f1c0a52-6a4e-4f3e-9a0e-6f6c2f3b8d11")
	assert.Equal(t, "clinic:6f1c0a52-6a4e-4f3e-9a0e-6f6c2f3b8d11:queue", Channel(id))
}

func TestLocalBus_FanoutWithinClinic(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	clinic := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub1, err := bus.Subscribe(ctx, clinic)
	require.NoError(t, err)
	sub2, err := bus.Subscribe(ctx, clinic)
	require.NoError(t, err)

	event := QueueEvent{ID: uuid.New(), Type: EventQueueAdmitted, ClinicID: clinic, QueueNumber: 1, ToStatus: "waiting"}
	require.NoError(t, bus.Publish(context.Background(), event))

	assert.Equal(t, event.ID, waitForEvent(t, sub1).ID)
	assert.Equal(t, event.ID, waitForEvent(t, sub2).ID)
}

func TestLocalBus_DoesNotLeakAcrossClinics(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clinicA, clinicB := uuid.New(), uuid.New()
	subB, err := bus.Subscribe(ctx, clinicB)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), QueueEvent{ID: uuid.New(), ClinicID: clinicA}))

	select {
	case ev := <-subB:
		t.Fatalf("clinic B received clinic A event %v", ev.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	clinic := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx, clinic)
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount(clinic))

	cancel()
	select {
	case _, ok := <-sub:
		assert.False(t, ok, "expected closed channel")
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed after cancel")
	}
	assert.Equal(t, 0, bus.SubscriberCount(clinic))
}

func TestLocalBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	clinic := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := bus.Subscribe(ctx, clinic)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = bus.Publish(context.Background(), QueueEvent{ID: uuid.New(), ClinicID: clinic})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestLocalBus_SubscribeAfterClose(t *testing.T) {
	bus := NewLocalBus()
	require.NoError(t, bus.Close())

	sub, err := bus.Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)
	_, ok := <-sub
	assert.False(t, ok)
}
