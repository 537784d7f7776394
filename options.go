package prefz

// config holds construction options for an Observable.
type config struct {
	store       Store
	codec       Codec
	validate    bool
	onError     func(error)
	historySize int
	metrics     MetricsProvider
}

// Option configures an Observable or Property at construction.
type Option func(*config)

// newConfig applies opts over the package defaults.
func newConfig(opts []Option) *config {
	cfg := &config{
		store: Default(),
		codec: JSONCodec{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithStore sets the backing store. Default: the package default store.
func WithStore(s Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithCodec sets the codec for encoding and decoding stored bytes.
// Default: JSONCodec.
func WithCodec(codec Codec) Option {
	return func(c *config) {
		c.codec = codec
	}
}

// WithValidation validates decoded struct values using
// go-playground/validator tags. A decoded value that fails validation is
// treated like a decode failure: the declared default is substituted.
// Non-struct types are unaffected.
func WithValidation() Option {
	return func(c *config) {
		c.validate = true
	}
}

// WithOnError sets a callback invoked whenever a codec or store error is
// absorbed. Without it, absorbed errors are only visible through LastError
// and ErrorHistory; the Get/Set surface stays silent either way.
//
// The callback may run on a store watcher goroutine.
func WithOnError(fn func(error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// WithErrorHistory retains up to n recent absorbed errors, returned by
// ErrorHistory. Use 0 (default) to retain only the most recent error.
func WithErrorHistory(n int) Option {
	return func(c *config) {
		c.historySize = n
	}
}

// WithMetrics sets a metrics provider for observability integration.
// The provider receives callbacks on value changes, external changes, and
// absorbed codec failures.
func WithMetrics(provider MetricsProvider) Option {
	return func(c *config) {
		c.metrics = provider
	}
}
