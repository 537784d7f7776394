package prefz

import "context"

// Property binds a declared setting to its Observable. It is a thin
// accessor: every Get and Set delegates to the underlying Observable, which
// callers can also subscribe to directly via Observable().
type Property[T comparable] struct {
	key string
	obs Observable[T]
}

// NewProperty declares a setting with the given key and default value and
// binds it immediately. The package default store is used unless WithStore
// is given.
//
// Example:
//
//	retries, err := prefz.NewProperty[int](ctx, "retries", 5,
//	    prefz.WithStore(store),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer retries.Close()
func NewProperty[T comparable](ctx context.Context, key string, def T, opts ...Option) (*Property[T], error) {
	obs, err := Observe(ctx, key, def, opts...)
	if err != nil {
		return nil, err
	}
	return &Property[T]{key: key, obs: obs}, nil
}

// Key returns the stored key this property is bound to.
func (p *Property[T]) Key() string {
	return p.key
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	return p.obs.Get()
}

// Set updates the value, persisting and notifying subscribers when it differs
// from the current one.
func (p *Property[T]) Set(v T) {
	p.obs.Set(v)
}

// Observable returns the underlying Observable for direct subscription.
func (p *Property[T]) Observable() Observable[T] {
	return p.obs
}

// Close releases the underlying Observable's watch registration.
func (p *Property[T]) Close() error {
	return p.obs.Close()
}
