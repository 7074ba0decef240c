package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/coachpo/sizedpool/errs"
)

const (
	defaultWaitInitialInterval = 5 * time.Millisecond
	defaultWaitMaxInterval     = 250 * time.Millisecond
)

// Synchronized serialises every operation on a Pool behind a mutex so it can
// be shared between goroutines. Listener callbacks run while the lock is held.
type Synchronized[K comparable, T comparable, C any] struct {
	mu   sync.Mutex
	pool *Pool[K, T, C]

	waitInitial time.Duration
	waitMax     time.Duration
}

// NewSynchronized wraps p. p must not be used directly afterwards.
func NewSynchronized[K comparable, T comparable, C any](p *Pool[K, T, C]) *Synchronized[K, T, C] {
	if p == nil {
		panic("pool: NewSynchronized requires a pool")
	}
	return &Synchronized[K, T, C]{
		pool:        p,
		waitInitial: defaultWaitInitialInterval,
		waitMax:     defaultWaitMaxInterval,
	}
}

// WithWaitIntervals overrides the backoff bounds used by GetWait.
func (s *Synchronized[K, T, C]) WithWaitIntervals(initial, maxInterval time.Duration) *Synchronized[K, T, C] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if initial > 0 {
		s.waitInitial = initial
	}
	if maxInterval >= s.waitInitial {
		s.waitMax = maxInterval
	}
	return s
}

// Name returns the wrapped pool's name.
func (s *Synchronized[K, T, C]) Name() string { return s.pool.Name() }

// IsDeleted reports whether the wrapped pool has been deleted.
func (s *Synchronized[K, T, C]) IsDeleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.IsDeleted()
}

// Trim trims the wrapped pool.
func (s *Synchronized[K, T, C]) Trim(c C) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Trim(c)
}

// Get borrows a value for key.
func (s *Synchronized[K, T, C]) Get(c C, key K) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Get(c, key)
}

// GetWait behaves like Get but, while the pool is at its hard limit, retries
// with exponential backoff until a value fits or ctx is done. Other failures
// are returned immediately.
func (s *Synchronized[K, T, C]) GetWait(ctx context.Context, c C, key K) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.waitInitial
	policy.MaxInterval = s.waitMax
	s.mu.Unlock()
	policy.Reset()

	for {
		value, err := s.Get(c, key)
		if err == nil || !errors.Is(err, errs.ErrHardLimitExceeded) {
			return value, err
		}

		sleep := policy.NextBackOff()
		if sleep == backoff.Stop {
			sleep = policy.MaxInterval
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("pool %s: %w: %w", s.pool.Name(), ctx.Err(), err)
		case <-timer.C:
		}
	}
}

// ReturnValue returns a borrowed value.
func (s *Synchronized[K, T, C]) ReturnValue(c C, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.ReturnValue(c, value)
}

// Size returns the wrapped pool's size.
func (s *Synchronized[K, T, C]) Size() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Size()
}

// DeleteSafely deletes the wrapped pool if no values are outstanding.
func (s *Synchronized[K, T, C]) DeleteSafely(c C) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.DeleteSafely(c)
}

// DeleteUnsafely deletes the wrapped pool regardless of outstanding values.
func (s *Synchronized[K, T, C]) DeleteUnsafely(c C) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.DeleteUnsafely(c)
}

// Stats returns a snapshot of the wrapped pool.
func (s *Synchronized[K, T, C]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Stats()
}
