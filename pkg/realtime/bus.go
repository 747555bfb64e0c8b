package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

// Bus carries deliveries between API instances.
type Bus interface {
	Publish(ctx context.Context, d Delivery) error
	// Start registers the handler invoked for every delivery the bus receives.
	Start(ctx context.Context, onDelivery func(context.Context, Delivery)) error
	Close() error
}

// LocalBus hands deliveries straight to the handler of this process.
type LocalBus struct {
	mu      sync.RWMutex
	handler func(context.Context, Delivery)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(ctx context.Context, d Delivery) error {
	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()
	if handler == nil {
		return nil
	}
	handler(ctx, d)
	return nil
}

func (b *LocalBus) Start(_ context.Context, onDelivery func(context.Context, Delivery)) error {
	if onDelivery == nil {
		return errors.New("delivery handler required")
	}
	b.mu.Lock()
	b.handler = onDelivery
	b.mu.Unlock()
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.handler = nil
	b.mu.Unlock()
	return nil
}

// PubSub is the redis surface the bus needs; *redis.Client satisfies it.
type PubSub interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (*goredis.PubSub, error)
}

// RedisBus fans deliveries out to every instance subscribed to the topic.
type RedisBus struct {
	client PubSub
	topic  string
	logg   *logger.Logger

	mu  sync.Mutex
	sub *goredis.PubSub
}

func NewRedisBus(client PubSub, topic string, logg *logger.Logger) (*RedisBus, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if topic == "" {
		return nil, errors.New("realtime topic required")
	}
	return &RedisBus{client: client, topic: topic, logg: logg}, nil
}

func (b *RedisBus) Publish(ctx context.Context, d Delivery) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	return b.client.Publish(ctx, b.topic, raw)
}

// Start subscribes and forwards messages until ctx is cancelled or Close is called.
func (b *RedisBus) Start(ctx context.Context, onDelivery func(context.Context, Delivery)) error {
	if onDelivery == nil {
		return errors.New("delivery handler required")
	}
	sub, err := b.client.Subscribe(ctx, b.topic)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					return
				}
				var d Delivery
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					if b.logg != nil {
						b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "bad realtime payload on bus")
					}
					continue
				}
				onDelivery(ctx, d)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub == nil {
		return nil
	}
	err := b.sub.Close()
	b.sub = nil
	return err
}
