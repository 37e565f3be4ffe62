package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares values between processes through Redis keys and announces
// every write on a pub/sub channel so other processes can react.
type RedisStore struct {
	client    *redis.Client
	namespace string
	origin    string
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	subs   []*redis.PubSub
	wg     sync.WaitGroup
}

func NewRedisStore(client *redis.Client, namespace string, logger *slog.Logger) *RedisStore {
	if namespace == "" {
		namespace = "storefront"
	}
	return &RedisStore{
		client:    client,
		namespace: namespace,
		origin:    uuid.New().String(),
		logger:    logger,
	}
}

func (r *RedisStore) Origin() string {
	return r.origin
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.valueKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	payload, err := json.Marshal(ChangeEvent{Key: key, Value: value, Origin: r.origin})
	if err != nil {
		return fmt.Errorf("marshal change event failed: %w", err)
	}
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.valueKey(key), value, 0)
		p.Publish(ctx, r.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	removed, err := r.client.Del(ctx, r.valueKey(key)).Result()
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if removed == 0 {
		return nil
	}

	payload, err := json.Marshal(ChangeEvent{Key: key, Deleted: true, Origin: r.origin})
	if err != nil {
		return fmt.Errorf("marshal change event failed: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(), payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so writes made
// after it returns are guaranteed to be observed.
func (r *RedisStore) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	ps := r.client.Subscribe(ctx, r.channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}
	r.subs = append(r.subs, ps)

	sub := newSubscriber()
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		sub.run(ctx)
	}()
	go func() {
		defer r.wg.Done()
		defer sub.stop()
		r.forward(ctx, ps, sub)
	}()
	return sub.out, nil
}

func (r *RedisStore) forward(ctx context.Context, ps *redis.PubSub, sub *subscriber) {
	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = ps.Close()
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if r.logger != nil {
					r.logger.Warn("dropping malformed change event", "error", err)
				}
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			sub.push(ev)
		}
	}
}

// Close ends all subscriptions. The redis client is owned by the caller.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	r.wg.Wait()
	return nil
}

func (r *RedisStore) valueKey(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

func (r *RedisStore) channel() string {
	return fmt.Sprintf("%s:changes", r.namespace)
}
