package prefz

import (
	"context"
	"sync"
)

// CancelFunc releases a registration acquired by Watch or Subscribe.
// Calling it more than once is safe.
type CancelFunc func()

// Store is the capability a backing key-value store must provide.
// Keys are unique within one Store instance; values are opaque bytes
// produced by a Codec.
//
// Implementations deliver watch callbacks on their own goroutines. Callbacks
// must not be assumed to arrive on the goroutine that performed the write.
type Store interface {
	// Get returns the stored bytes for key. The second return value reports
	// whether the key is present; an absent key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Watch registers fn for subsequent changes to key. The current value is
	// not delivered; callers load it with Get first. On each change fn
	// receives the new raw bytes, or ok=false when the key was removed.
	// The returned CancelFunc releases the registration. A callback already
	// in flight may complete after cancel returns, but no new callbacks
	// begin once the registration is released.
	Watch(ctx context.Context, key string, fn func(raw []byte, ok bool)) (CancelFunc, error)
}

var (
	defaultMu    sync.RWMutex
	defaultStore Store = NewMemoryStore()
)

// Default returns the package default store used by Observe and NewProperty
// when no WithStore option is given. The initial default is an in-memory
// store; applications that want persistence across runs should install one
// of the pkg/ stores with SetDefault.
func Default() Store {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultStore
}

// SetDefault replaces the package default store. Observables already bound
// keep the store they were constructed with.
func SetDefault(s Store) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultStore = s
}
