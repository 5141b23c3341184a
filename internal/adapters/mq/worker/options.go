package worker

import (
	"time"

	"github.com/okian/airrisk/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithName sets the pool name used as the worker name prefix in logs.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets a custom logger for the pool and its workers.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetricsInterval sets how often throughput gauges are refreshed.
func WithMetricsInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.metricsInterval = d
		}
	}
}
