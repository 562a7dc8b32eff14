package idempotency

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithTTL sets how long a committed response is replayed.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}
