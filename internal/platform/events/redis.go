package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus publishes queue events on Redis pub/sub so every server instance
// can feed its own SSE and WebSocket clients. One Redis subscription is held
// per clinic channel and fanned out locally.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger
	local  *LocalBus

	mu            sync.Mutex
	subscriptions map[string]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisBus(client *redis.Client, logger zerolog.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBus{
		client:        client,
		logger:        logger,
		local:         NewLocalBus(),
		subscriptions: make(map[string]*redis.PubSub),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (b *RedisBus) Publish(ctx context.Context, event QueueEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(event.ClinicID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, clinicID uuid.UUID) (<-chan QueueEvent, error) {
	channel := Channel(clinicID)

	b.mu.Lock()
	if _, ok := b.subscriptions[channel]; !ok {
		pubsub := b.client.Subscribe(b.ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			b.mu.Unlock()
			pubsub.Close()
			return nil, fmt.Errorf("subscribe %s: %w", channel, err)
		}
		b.subscriptions[channel] = pubsub
		go b.receive(channel, pubsub)
	}
	b.mu.Unlock()

	return b.local.Subscribe(ctx, clinicID)
}

func (b *RedisBus) receive(channel string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event QueueEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("channel", channel).Msg("dropping malformed queue event")
				continue
			}
			b.local.broadcast(channel, event)
		}
	}
}

func (b *RedisBus) Close() error {
	b.cancel()

	b.mu.Lock()
	for channel, pubsub := range b.subscriptions {
		_ = pubsub.Close()
		delete(b.subscriptions, channel)
	}
	b.mu.Unlock()

	return b.local.Close()
}

// Ping reports Redis reachability for the health endpoint.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
