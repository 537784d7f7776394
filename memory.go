package prefz

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store backed by a map. It is safe for
// concurrent use and delivers watch callbacks from a single dispatch
// goroutine, preserving per-key change order.
//
// Useful for testing and for single-process applications that do not need
// settings to survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[string]map[int]func(raw []byte, ok bool)
	nextID   int

	// queue is unbounded so Set never blocks behind a slow watcher
	// callback, which could otherwise deadlock a caller that writes
	// while holding its own lock. It holds keys only; dispatch reads the
	// key's current bytes at delivery time, so the echo of an overwritten
	// write delivers the newer state instead of the stale bytes.
	queueMu sync.Mutex
	queue   []string
	wake    *sync.Cond
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates an empty MemoryStore and starts its dispatch
// goroutine. Call Close when the store is no longer needed.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		data:     make(map[string][]byte),
		watchers: make(map[string]map[int]func(raw []byte, ok bool)),
		done:     make(chan struct{}),
	}
	s.wake = sync.NewCond(&s.queueMu)
	go s.dispatch()
	return s
}

// Get returns a copy of the stored bytes for key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, true, nil
}

// Set stores a copy of value under key and notifies watchers of key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	s.data[key] = cp
	s.mu.Unlock()

	s.enqueue(key)
	return nil
}

// Delete removes key and notifies watchers. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	_, present := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()

	if present {
		s.enqueue(key)
	}
	return nil
}

// Watch registers fn for subsequent changes to key. The registration is
// released by the returned CancelFunc, or when ctx is canceled.
func (s *MemoryStore) Watch(ctx context.Context, key string, fn func(raw []byte, ok bool)) (CancelFunc, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]func(raw []byte, ok bool))
	}
	s.watchers[key][id] = fn
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers[key], id)
			if len(s.watchers[key]) == 0 {
				delete(s.watchers, key)
			}
		})
	}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-s.done:
			}
		}()
	}

	return cancel, nil
}

// Close stops the dispatch goroutine. Watchers receive no further callbacks.
// Get, Set, and Delete remain usable after Close.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.queueMu.Lock()
		s.closed = true
		s.queueMu.Unlock()
		s.wake.Signal()
	})
	return nil
}

// enqueue appends a changed key for the dispatch goroutine. Never blocks.
func (s *MemoryStore) enqueue(key string) {
	s.queueMu.Lock()
	if !s.closed {
		s.queue = append(s.queue, key)
	}
	s.queueMu.Unlock()
	s.wake.Signal()
}

// dispatch delivers each queued change to the watchers registered for its
// key. The key's bytes are read at delivery time, not capture time, so a
// callback never observes state older than a write that already returned.
func (s *MemoryStore) dispatch() {
	for {
		s.queueMu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.wake.Wait()
		}
		if s.closed {
			s.queueMu.Unlock()
			return
		}
		key := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		s.mu.RLock()
		raw, ok := s.data[key]
		var cp []byte
		if ok {
			cp = make([]byte, len(raw))
			copy(cp, raw)
		}
		fns := make([]func(raw []byte, ok bool), 0, len(s.watchers[key]))
		for _, fn := range s.watchers[key] {
			fns = append(fns, fn)
		}
		s.mu.RUnlock()

		for _, fn := range fns {
			fn(cp, ok)
		}
	}
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
