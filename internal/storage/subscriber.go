package storage

import (
	"context"
	"sync"
)

// subscriber queues events without bound so a slow reader never makes a writer
// block or lose a token removal.
type subscriber struct {
	out    chan ChangeEvent
	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	queue []ChangeEvent
}

func newSubscriber() *subscriber {
	return &subscriber{
		out:    make(chan ChangeEvent),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *subscriber) push(ev ChangeEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// run delivers queued events in order until ctx is done or stop is called.
func (s *subscriber) run(ctx context.Context) {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}
