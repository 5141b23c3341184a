package repository

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithReadingRetention caps the readings kept per sensor. Older rows are
// pruned on write. Non-positive values keep everything.
func WithReadingRetention(n int) Option {
	return func(s *SQLiteStore) {
		s.retention = n
	}
}
