package prefz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/zoobzio/capitan"
)

// validate is the shared validator instance.
var validate = validator.New()

// Observable is the uniform reactive surface over one stored setting,
// independent of which Store backs it.
//
// The value type must be comparable: equality gates every mutation path, so
// setting a value equal to the current one writes nothing and emits nothing.
type Observable[T comparable] interface {
	// Get returns the current cached value. It never touches the store.
	Get() T

	// Set updates the value. If the new value equals the current one this
	// is a no-op. Otherwise the cache is updated, the encoded bytes are
	// persisted, and subscribers are notified. Encode or persist failures
	// remove the stored key instead of writing corrupt bytes; they are
	// absorbed, not returned.
	Set(v T)

	// Subscribe registers fn to receive values. fn is invoked synchronously
	// with the current value before Subscribe returns, then once for every
	// subsequent distinct value, in order. Only the latest value is ever
	// delivered; there is no replay of missed intermediates.
	//
	// fn may be invoked from a store watcher goroutine and must not call
	// back into this Observable.
	Subscribe(fn func(T)) CancelFunc

	// LastError returns the most recently absorbed codec or store error,
	// or nil if none occurred.
	LastError() error

	// ErrorHistory returns recent absorbed errors, oldest first.
	// Returns nil unless WithErrorHistory was given.
	ErrorHistory() []error

	// Close releases the store watch registration. It is idempotent and
	// must be called on every disposal path; a live registration after the
	// Observable is abandoned is a leak.
	Close() error
}

// observable binds a typed cached value to one key in a Store.
type observable[T comparable] struct {
	ctx     context.Context
	store   Store
	key     string
	def     T
	codec   Codec
	checked bool
	onError func(error)
	metrics MetricsProvider
	history *errorRing

	current   atomic.Pointer[T]
	lastError atomic.Pointer[error]

	mu      sync.Mutex
	subs    map[int]func(T)
	nextSub int
	closed  bool

	cancelWatch CancelFunc
	closeOnce   sync.Once
}

// Observe binds key in the configured store to a typed Observable with the
// given default value.
//
// The stored bytes for key are loaded and decoded immediately; a missing key
// or undecodable bytes yield the default value, which is not written back.
// A watch registration for key is acquired before Observe returns; if the
// store cannot satisfy it, Observe fails. Reading the store at construction
// failing is treated the same way: an unreachable store is a construction
// error, not a silent default.
//
// Two Observables bound to the same key on the same store are independent
// but converge after any write performed through either.
func Observe[T comparable](ctx context.Context, key string, def T, opts ...Option) (Observable[T], error) {
	cfg := newConfig(opts)

	o := &observable[T]{
		ctx:     ctx,
		store:   cfg.store,
		key:     key,
		def:     def,
		codec:   cfg.codec,
		checked: cfg.validate,
		onError: cfg.onError,
		metrics: cfg.metrics,
		history: newErrorRing(cfg.historySize),
		subs:    make(map[int]func(T)),
	}

	initial := def
	raw, ok, err := cfg.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	if ok {
		if v, derr := o.decode(raw); derr != nil {
			o.absorb(derr)
			capitan.Emit(ctx, DecodeFailed,
				KeyName.Field(key),
				KeyError.Field(derr.Error()),
			)
			if o.metrics != nil {
				o.metrics.OnDecodeFailure(key)
			}
		} else {
			initial = v
		}
	}
	o.current.Store(&initial)

	cancel, err := cfg.store.Watch(ctx, key, o.storeChanged)
	if err != nil {
		return nil, fmt.Errorf("failed to watch key %q: %w", key, err)
	}
	o.cancelWatch = cancel

	capitan.Emit(ctx, ObservableBound,
		KeyName.Field(key),
		KeyContentType.Field(cfg.codec.ContentType()),
	)

	return o, nil
}

// Get returns the current cached value.
func (o *observable[T]) Get() T {
	return *o.current.Load()
}

// Set updates the cached value and mirrors it into the store.
func (o *observable[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if *o.current.Load() == v {
		return
	}
	o.current.Store(&v)

	raw, err := o.codec.Marshal(v)
	if err == nil {
		err = o.store.Set(o.ctx, o.key, raw)
	}
	if err != nil {
		// Never leave partially written bytes behind.
		_ = o.store.Delete(o.ctx, o.key) //nolint:errcheck // Absorbed below
		o.absorb(fmt.Errorf("failed to persist key %q: %w", o.key, err))
		capitan.Emit(o.ctx, EncodeFailed,
			KeyName.Field(o.key),
			KeyError.Field(err.Error()),
		)
		if o.metrics != nil {
			o.metrics.OnEncodeFailure(o.key)
		}
	}

	capitan.Emit(o.ctx, ValueChanged, KeyName.Field(o.key))
	if o.metrics != nil {
		o.metrics.OnValueChanged(o.key)
	}
	o.emitLocked(v)
}

// Subscribe registers fn and delivers the current value synchronously.
func (o *observable[T]) Subscribe(fn func(T)) CancelFunc {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn

	capitan.Emit(o.ctx, SubscriberAdded,
		KeyName.Field(o.key),
		KeySubscribers.Field(len(o.subs)),
	)

	fn(*o.current.Load())

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
		})
	}
}

// LastError returns the most recently absorbed error, or nil.
func (o *observable[T]) LastError() error {
	ptr := o.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent absorbed errors, oldest first.
func (o *observable[T]) ErrorHistory() []error {
	return o.history.all()
}

// Close releases the watch registration.
func (o *observable[T]) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()

		o.cancelWatch()
		capitan.Emit(o.ctx, ObservableClosed, KeyName.Field(o.key))
	})
	return nil
}

// storeChanged handles a change notification for this key from the store.
// Undecodable bytes and key removal both fall back to the default value,
// never to the stale cache.
//
// The delivered payload can predate a local Set that completed while the
// notification was in flight. Local writes hold o.mu, so the store is read
// again under the lock; that read is ordered after every completed write,
// keeping the echo of an overwritten value from reverting the cache. When
// the read fails the delivered payload is used as is.
func (o *observable[T]) storeChanged(raw []byte, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	if cur, curOK, err := o.store.Get(o.ctx, o.key); err == nil {
		raw, ok = cur, curOK
	}

	next := o.def
	if ok {
		if v, err := o.decode(raw); err != nil {
			o.absorb(err)
			capitan.Emit(o.ctx, DecodeFailed,
				KeyName.Field(o.key),
				KeyError.Field(err.Error()),
			)
			if o.metrics != nil {
				o.metrics.OnDecodeFailure(o.key)
			}
		} else {
			next = v
		}
	}

	if *o.current.Load() == next {
		return
	}
	o.current.Store(&next)

	capitan.Emit(o.ctx, ExternalChangeApplied, KeyName.Field(o.key))
	if o.metrics != nil {
		o.metrics.OnExternalChange(o.key)
	}
	o.emitLocked(next)
}

// emitLocked delivers v to all subscribers. Caller holds o.mu, which
// serializes emissions from local sets and external changes.
func (o *observable[T]) emitLocked(v T) {
	for _, fn := range o.subs {
		fn(v)
	}
}

// decode unmarshals raw bytes and, when validation is enabled, checks
// struct tags. Non-struct types pass validation unconditionally.
func (o *observable[T]) decode(raw []byte) (T, error) {
	var v T
	if err := o.codec.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode failed for key %q: %w", o.key, err)
	}
	if o.checked {
		if err := validate.Struct(v); err != nil {
			var invalid *validator.InvalidValidationError
			if !errors.As(err, &invalid) {
				return v, fmt.Errorf("validation failed for key %q: %w", o.key, err)
			}
		}
	}
	return v, nil
}

// absorb records an error without surfacing it to the caller.
func (o *observable[T]) absorb(err error) {
	e := err
	o.lastError.Store(&e)
	o.history.push(err)
	if o.onError != nil {
		o.onError(err)
	}
}
