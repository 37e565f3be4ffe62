package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBroker holds the values shared by all handles of one in-process store,
// the way one browser origin shares its storage between tabs.
type MemoryBroker struct {
	mu     sync.RWMutex
	values map[string]string
	subs   map[*subscriber]string // subscriber -> origin of the handle that owns it
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		values: make(map[string]string),
		subs:   make(map[*subscriber]string),
	}
}

// Open returns a new handle with its own origin.
func (b *MemoryBroker) Open() *MemoryStore {
	return &MemoryStore{
		broker: b,
		origin: uuid.New().String(),
		subs:   make(map[*subscriber]struct{}),
	}
}

func (b *MemoryBroker) publish(ev ChangeEvent) {
	for sub, origin := range b.subs {
		if origin != ev.Origin {
			sub.push(ev)
		}
	}
}

// MemoryStore is one handle ("tab") on a MemoryBroker.
type MemoryStore struct {
	broker *MemoryBroker
	origin string

	mu     sync.Mutex
	closed bool
	subs   map[*subscriber]struct{}
	wg     sync.WaitGroup
}

func (s *MemoryStore) Origin() string {
	return s.origin
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	if s.isClosed() {
		return "", ErrClosed
	}
	s.broker.mu.RLock()
	defer s.broker.mu.RUnlock()

	v, ok := s.broker.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()

	s.broker.values[key] = value
	s.broker.publish(ChangeEvent{Key: key, Value: value, Origin: s.origin})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()

	if _, ok := s.broker.values[key]; !ok {
		return nil
	}
	delete(s.broker.values, key)
	s.broker.publish(ChangeEvent{Key: key, Deleted: true, Origin: s.origin})
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	sub := newSubscriber()
	s.subs[sub] = struct{}{}

	s.broker.mu.Lock()
	s.broker.subs[sub] = s.origin
	s.broker.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sub.run(ctx)
		s.removeSubscriber(sub)
	}()
	return sub.out, nil
}

func (s *MemoryStore) removeSubscriber(sub *subscriber) {
	s.broker.mu.Lock()
	delete(s.broker.subs, sub)
	s.broker.mu.Unlock()

	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// Close stops every subscription of this handle. Values stay in the broker.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for sub := range s.subs {
		sub.stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *MemoryStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
