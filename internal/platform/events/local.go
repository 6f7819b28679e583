package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalBus fans events out to subscribers in the same process. It is used
// when no Redis is configured and in tests.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan QueueEvent]struct{} // channel -> subscribers
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[chan QueueEvent]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, event QueueEvent) error {
	b.broadcast(Channel(event.ClinicID), event)
	return nil
}

func (b *LocalBus) broadcast(channel string, event QueueEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[channel] {
		select {
		case ch <- event:
		default:
			// subscriber buffer full
		}
	}
}

func (b *LocalBus) Subscribe(ctx context.Context, clinicID uuid.UUID) (<-chan QueueEvent, error) {
	channel := Channel(clinicID)
	ch := make(chan QueueEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan QueueEvent]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(channel, ch)
	}()
	return ch, nil
}

func (b *LocalBus) remove(channel string, ch chan QueueEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[channel]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(b.subs, channel)
	}
}

// SubscriberCount returns the number of live subscribers for a clinic.
func (b *LocalBus) SubscriberCount(clinicID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[Channel(clinicID)])
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, subs := range b.subs {
		for ch := range subs {
			close(ch)
		}
		delete(b.subs, channel)
	}
	b.closed = true
	return nil
}
