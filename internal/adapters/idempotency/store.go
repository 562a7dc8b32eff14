// Package idempotency replays responses for repeated Idempotency-Key requests.
//
// Committed responses live in a ristretto cache bounded by total body size.
// Keys that are being processed are tracked separately so a concurrent
// duplicate is refused instead of executed twice. Responses the cache
// declines to admit are held in a small expiring map instead.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/okian/matchmaker/pkg/metrics"
)

const (
	defaultTTL         = 10 * time.Minute
	minCostBytes int64 = 1 << 16
)

// Response is a cached HTTP outcome.
type Response struct {
	Status int
	Body   []byte
}

// Store is safe for concurrent use.
type Store struct {
	cache *ristretto.Cache[string, Response]
	ttl   time.Duration

	mu        sync.Mutex
	inflight  map[string]struct{}
	committed map[string]committedResponse
}

type committedResponse struct {
	resp    Response
	expires time.Time
}

// New creates a store whose cached bodies total at most maxCostBytes.
func New(maxCostBytes int64, opts ...Option) (*Store, error) {
	if maxCostBytes < minCostBytes {
		maxCostBytes = minCostBytes
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, Response]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("idempotency cache: %w", err)
	}
	s := &Store{
		cache:     c,
		ttl:       defaultTTL,
		inflight:  make(map[string]struct{}),
		committed: make(map[string]committedResponse),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lookup returns the committed response for key, if any.
func (s *Store) Lookup(_ context.Context, key string) (Response, bool) {
	s.mu.Lock()
	resp, ok := s.lookupLocked(key, time.Now())
	s.mu.Unlock()
	if ok {
		metrics.RecordIdempotentReplay()
	}
	return resp, ok
}

func (s *Store) lookupLocked(key string, now time.Time) (Response, bool) {
	if resp, ok := s.cache.Get(key); ok {
		return resp, true
	}
	c, ok := s.committed[key]
	if !ok {
		return Response{}, false
	}
	if now.After(c.expires) {
		delete(s.committed, key)
		return Response{}, false
	}
	return c.resp, true
}

// Begin claims key for processing. It fails with ErrInFlight while another
// caller holds the same key and with ErrCommitted once a response for key
// has been committed.
func (s *Store) Begin(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.lookupLocked(key, time.Now()); done {
		return ErrCommitted
	}
	if _, busy := s.inflight[key]; busy {
		metrics.RecordErrorByComponent("idempotency", "in_flight")
		return ErrInFlight
	}
	s.inflight[key] = struct{}{}
	return nil
}

// Abort releases key without caching anything, so the request may be retried.
func (s *Store) Abort(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}

// Commit caches resp under key and releases the claim. The response is
// visible to Lookup and Begin before the claim is dropped.
func (s *Store) Commit(_ context.Context, key string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	admitted := s.cache.SetWithTTL(key, resp, int64(len(resp.Body))+1, s.ttl)
	s.cache.Wait()
	if _, ok := s.cache.Get(key); !admitted || !ok {
		s.pruneLocked(now)
		s.committed[key] = committedResponse{resp: resp, expires: now.Add(s.ttl)}
	}
	delete(s.inflight, key)
}

func (s *Store) pruneLocked(now time.Time) {
	for k, c := range s.committed {
		if now.After(c.expires) {
			delete(s.committed, k)
		}
	}
}

// Close shuts down the cache and releases resources.
func (s *Store) Close() {
	s.cache.Close()
}
