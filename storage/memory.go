package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Backend. Several stores sharing one Memory value
// behave like tabs sharing the same origin storage, which makes it the
// backend of choice for tests and single-instance deployments.
type Memory struct {
	mu       sync.Mutex
	rec      *Record
	watchers map[chan Event]string
}

var _ Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		watchers: make(map[chan Event]string),
	}
}

func (m *Memory) Read(ctx context.Context) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, ErrNotFound
	}
	cp := *m.rec
	return &cp, nil
}

func (m *Memory) Write(ctx context.Context, rec *Record, origin string) error {
	cp := *rec
	m.mu.Lock()
	m.rec = &cp
	m.mu.Unlock()
	m.notify(origin)
	return nil
}

func (m *Memory) Delete(ctx context.Context, origin string) error {
	m.mu.Lock()
	m.rec = nil
	m.mu.Unlock()
	m.notify(origin)
	return nil
}

func (m *Memory) Watch(ctx context.Context, origin string) (<-chan Event, error) {
	ch := make(chan Event, 8)
	m.mu.Lock()
	m.watchers[ch] = origin
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, ch)
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) notify(origin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch, watcherOrigin := range m.watchers {
		if watcherOrigin == origin {
			continue
		}
		select {
		case ch <- Event{Origin: origin}:
		default:
			// slow watcher; it will catch up on the next mutation
		}
	}
}
