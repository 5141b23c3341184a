package cache

// Option applies a configuration option to the cache.
type Option func(*config)

type config struct {
	capacity int
	metrics  bool
}

// WithCapacity sets the maximum number of entries. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithMetrics toggles Prometheus hit/miss/size reporting.
func WithMetrics(enabled bool) Option {
	return func(c *config) {
		c.metrics = enabled
	}
}
