// Package features turns a sensor reading and its recent history into the
// engineered feature vector consumed by trained models.
package features

// Option applies a configuration option to the Transformer.
type Option func(*Transformer)

// WithWindows sets the rolling window sizes in samples. At the default
// five-minute cadence 12, 72 and 288 samples cover 1h, 6h and 24h.
func WithWindows(short, medium, long int) Option {
	return func(t *Transformer) {
		if short > 0 && medium >= short && long >= medium {
			t.windows = [3]window{{short, "1h"}, {medium, "6h"}, {long, "24h"}}
		}
	}
}

// WithFillLimit sets how many consecutive gaps forward and backward fill may
// bridge before falling back to the column median.
func WithFillLimit(n int) Option {
	return func(t *Transformer) {
		if n >= 0 {
			t.fillLimit = n
		}
	}
}
