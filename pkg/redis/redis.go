// Package redis provides a prefz.Store backed by Redis, with change
// notifications via keyspace notifications.
//
// Requires Redis to have keyspace notifications enabled:
//
//	CONFIG SET notify-keyspace-events KEA
//
// Or in redis.conf:
//
//	notify-keyspace-events KEA
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/zoobzio/prefz"
)

// Store is a prefz.Store persisting to Redis string keys.
type Store struct {
	client *redis.Client
	db     int
}

// Option configures a Store.
type Option func(*Store)

// WithDB sets the logical database index used in keyspace notification
// channel names. Defaults to 0 and must match the database the client
// is connected to.
func WithDB(db int) Option {
	return func(s *Store) {
		s.db = db
	}
}

// New creates a Store using the given Redis client. The caller retains
// ownership of the client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the bytes stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value under key with no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Watch subscribes to keyspace notifications for key and invokes fn with the
// key's new value on each write, or with ok=false when the key is removed.
func (s *Store) Watch(ctx context.Context, key string, fn func(raw []byte, ok bool)) (prefz.CancelFunc, error) {
	channel := fmt.Sprintf("__keyspace@%d__:%s", s.db, key)
	pubsub := s.client.Subscribe(ctx, channel)

	// Verify subscription worked
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
	}

	watchCtx, stop := context.WithCancel(ctx)

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-watchCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				switch msg.Payload {
				case "set", "mset", "setex", "psetex", "setnx":
					val, err := s.client.Get(watchCtx, key).Bytes()
					if err != nil {
						continue
					}
					fn(val, true)
				case "del", "expired", "unlink":
					fn(nil, false)
				}
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
