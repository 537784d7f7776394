package prefz

import "github.com/zoobzio/capitan"

// Observable lifecycle signals.
var (
	// ObservableBound is emitted when an Observable binds to a stored key.
	ObservableBound = capitan.NewSignal(
		"prefz.observable.bound",
		"Observable bound to stored key",
	)

	// ObservableClosed is emitted when an Observable releases its watch registration.
	ObservableClosed = capitan.NewSignal(
		"prefz.observable.closed",
		"Observable watch registration released",
	)

	// SubscriberAdded is emitted when a subscriber registers with an Observable.
	SubscriberAdded = capitan.NewSignal(
		"prefz.observable.subscriber.added",
		"Subscriber registered",
	)
)

// Value change signals.
var (
	// ValueChanged is emitted when a local Set changes the cached value.
	ValueChanged = capitan.NewSignal(
		"prefz.value.changed",
		"Local write changed the cached value",
	)

	// ExternalChangeApplied is emitted when a store change is applied to the cached value.
	ExternalChangeApplied = capitan.NewSignal(
		"prefz.value.external.applied",
		"External store change applied",
	)

	// DecodeFailed is emitted when stored bytes fail to decode and the default is substituted.
	DecodeFailed = capitan.NewSignal(
		"prefz.codec.decode.failed",
		"Stored bytes failed to decode",
	)

	// EncodeFailed is emitted when a value fails to encode or persist and the stored key is removed.
	EncodeFailed = capitan.NewSignal(
		"prefz.codec.encode.failed",
		"Value failed to encode or persist",
	)
)
