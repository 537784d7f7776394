package prefz

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key setting events.
type MetricsProvider interface {
	// OnValueChanged is called when a local Set changes the cached value.
	OnValueChanged(key string)

	// OnExternalChange is called when a store change for key is applied
	// to the cached value.
	OnExternalChange(key string)

	// OnDecodeFailure is called when stored bytes fail to decode and the
	// default value is substituted.
	OnDecodeFailure(key string)

	// OnEncodeFailure is called when a value fails to encode or persist
	// and the stored key is removed instead.
	OnEncodeFailure(key string)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnValueChanged(_ string)   {}
func (NoOpMetricsProvider) OnExternalChange(_ string) {}
func (NoOpMetricsProvider) OnDecodeFailure(_ string)  {}
func (NoOpMetricsProvider) OnEncodeFailure(_ string)  {}
