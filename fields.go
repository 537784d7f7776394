package prefz

import "github.com/zoobzio/capitan"

// Field keys for setting events.
var (
	// KeyName is the stored key an event concerns.
	KeyName = capitan.NewStringKey("key")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyContentType is the codec content type of an Observable.
	KeyContentType = capitan.NewStringKey("content_type")

	// KeySubscribers is the number of active subscribers on an Observable.
	KeySubscribers = capitan.NewIntKey("subscribers")
)
