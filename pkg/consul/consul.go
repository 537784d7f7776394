// Package consul provides a prefz.Store backed by Consul KV, with change
// notifications via blocking queries.
package consul

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/consul/api"

	"github.com/zoobzio/prefz"
)

// Store is a prefz.Store persisting to Consul KV.
type Store struct {
	client *api.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces all keys under the given KV path prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.TrimSuffix(prefix, "/") + "/"
	}
}

// New creates a Store using the given Consul client. The caller retains
// ownership of the client.
func New(client *api.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the bytes stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	opts := (&api.QueryOptions{}).WithContext(ctx)
	pair, _, err := s.client.KV().Get(s.prefix+key, opts)
	if err != nil {
		return nil, false, err
	}
	if pair == nil {
		return nil, false, nil
	}
	return pair.Value, true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	opts := (&api.WriteOptions{}).WithContext(ctx)
	_, err := s.client.KV().Put(&api.KVPair{Key: s.prefix + key, Value: value}, opts)
	return err
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	opts := (&api.WriteOptions{}).WithContext(ctx)
	_, err := s.client.KV().Delete(s.prefix+key, opts)
	return err
}

// Watch observes key with blocking queries and invokes fn whenever the
// key's modify index advances: with the new bytes on a write, or with
// ok=false when the key is removed.
func (s *Store) Watch(ctx context.Context, key string, fn func(raw []byte, ok bool)) (prefz.CancelFunc, error) {
	kv := s.client.KV()
	path := s.prefix + key

	// Establish the starting index so only subsequent changes are delivered.
	initOpts := (&api.QueryOptions{}).WithContext(ctx)
	pair, meta, err := kv.Get(path, initOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query key %q: %w", key, err)
	}

	watchCtx, stop := context.WithCancel(ctx)

	go func() {
		lastIndex := meta.LastIndex
		present := pair != nil

		for {
			select {
			case <-watchCtx.Done():
				return
			default:
			}

			opts := &api.QueryOptions{WaitIndex: lastIndex}
			opts = opts.WithContext(watchCtx)

			pair, meta, err := kv.Get(path, opts)
			if err != nil {
				if watchCtx.Err() != nil {
					return
				}
				// Other error - continue watching
				continue
			}

			if meta.LastIndex <= lastIndex {
				continue
			}
			lastIndex = meta.LastIndex

			switch {
			case pair != nil:
				present = true
				fn(pair.Value, true)
			case present:
				present = false
				fn(nil, false)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(stop)
	}
	return cancel, nil
}

// Ensure Store implements prefz.Store.
var _ prefz.Store = (*Store)(nil)
