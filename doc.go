// Package prefz provides reactive persisted settings primitives.
//
// A setting is a typed value backed by a key in a pluggable store. Reads
// return a cached in-memory value, writes are mirrored into the store, and
// external changes to the stored bytes are decoded and re-published to any
// number of in-process subscribers.
//
// # Observable
//
// The core type is Observable, a subscribable container over one stored key:
//
//	obs, err := prefz.Observe[int](ctx, "retries", 5, prefz.WithStore(store))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Close()
//
//	cancel := obs.Subscribe(func(v int) {
//	    log.Printf("retries is now %d", v)
//	})
//	defer cancel()
//
//	obs.Set(10)
//
// Subscribers receive the current value synchronously upon subscribing, then
// every subsequent distinct value. Setting a value equal to the current one
// is a no-op: nothing is written and nothing is emitted.
//
// # Properties
//
// Property binds a declared setting to its Observable in one step:
//
//	timeout, err := prefz.NewProperty[int](ctx, "timeout", 30)
//	timeout.Set(60)
//	t := timeout.Get()
//
// Properties use the package default store unless WithStore is given.
//
// # Stores
//
// The Store interface abstracts the backing key-value store. The core package
// provides MemoryStore for testing and single-process use. Additional stores
// are available in pkg/:
//
//   - pkg/file: JSON document on disk, watched with fsnotify
//   - pkg/redis: Redis keyspace notifications
//   - pkg/bolt: embedded bbolt database
//   - pkg/postgres: PostgreSQL LISTEN/NOTIFY
//   - pkg/consul: Consul KV blocking queries
//
// # Failure policy
//
// Stored bytes that fail to decode are replaced by the declared default, never
// surfaced as an error. A value that fails to encode removes the stored key
// rather than writing corrupt bytes. Both conditions are observable through
// LastError, ErrorHistory, and the optional WithOnError callback; the
// synchronous Get/Set surface stays silent. Only watch registration failures
// are fatal, at construction time.
package prefz
