// Package bolt provides a prefz.Store backed by an embedded bbolt database.
//
// bbolt has no native change feed and locks its database file to a single
// process, so change notifications cover writes made through this Store
// only. Multiple Observables bound through the same Store still converge
// after any write performed through either.
package bolt

import (
	"context"
	"sync"

	bbolt "go.etcd.io/bbolt"

	"github.com/zoobzio/prefz"
)

// DefaultBucket is the bucket settings are stored in unless WithBucket is given.
const DefaultBucket = "prefz"

// Store is a prefz.Store persisting to one bbolt bucket.
type Store struct {
	db     *bbolt.DB
	bucket []byte

	mu       sync.RWMutex
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

// Option configures a Store.
type Option func(*Store)

// WithBucket sets the bucket name. Defaults to DefaultBucket.
func WithBucket(name string) Option {
	return func(s *Store) {
		s.bucket = []byte(name)
	}
}

// New creates a Store over the given open database and starts its dispatch
// goroutine. The caller retains ownership of the database; Close stops the
// dispatcher without closing it.
func New(db *bbolt.DB, opts ...Option) *Store {
	s := &Store{
		db:       db,
		bucket:   []byte(DefaultBucket),
		watchers: make(map[string]map[int]func(raw []byte, ok bool)),
		done:     make(chan struct{}),
	}
	s.wake = sync.NewCond(&s.queueMu)
	for _, opt := range opts {
		opt(s)
	}
	go s.dispatch()
	return s
}

// Get returns a copy of the bytes stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			// Bytes returned by bbolt are only valid inside the transaction.
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	return raw, true, nil
}

// Set stores value under key and notifies watchers of key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return err
	}

	s.enqueue(key)
	return nil
}

// Delete removes key and notifies watchers. Deleting an absent key is a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	present := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if b.Get([]byte(key)) == nil {
			return nil
		}
		present = true
		return b.Delete([]byte(key))
	})
	if err != nil {
		return err
	}

	if present {
		s.enqueue(key)
	}
	return nil
}

// Watch registers fn for subsequent changes to key made through this Store.
func (s *Store) Watch(ctx context.Context, key string, fn func(raw []byte, ok bool)) (prefz.CancelFunc, error) {
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

// Close stops the dispatch goroutine. The database itself stays open.
func (s *Store) Close() error {
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
func (s *Store) enqueue(key string) {
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
func (s *Store) dispatch() {
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

		raw, ok, err := s.Get(context.Background(), key)
		if err != nil {
			continue
		}

		s.mu.RLock()
		fns := make([]func(raw []byte, ok bool), 0, len(s.watchers[key]))
		for _, fn := range s.watchers[key] {
			fns = append(fns, fn)
		}
		s.mu.RUnlock()

		for _, fn := range fns {
			fn(raw, ok)
		}
	}
}

// Ensure Store implements prefz.Store.
var _ prefz.Store = (*Store)(nil)
