package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coachpo/sizedpool/errs"
	"github.com/coachpo/sizedpool/lib/observability"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	defaultAcquireTimeout  = 100 * time.Millisecond
	shutdownPollInterval   = 10 * time.Millisecond
)

var (
	// ErrPoolNotRegistered indicates the requested pool has not been registered.
	ErrPoolNotRegistered = errors.New("pool manager: pool not registered")
	// ErrManagerClosed indicates the manager is shutting down and cannot service requests.
	ErrManagerClosed = errs.New("pool manager", errs.CodeUnavailable, errs.WithMessage("shutdown in progress"))
)

type managedPool struct {
	name    string
	pool    any
	stats   func() Stats
	release func() error
}

// Manager is a registry of named synchronized pools with coordinated
// shutdown.
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*managedPool
	closed bool
	logger observability.Logger
}

// NewManager constructs an empty manager. A nil logger uses the global logger.
func NewManager(logger observability.Logger) *Manager {
	m := new(Manager)
	m.pools = make(map[string]*managedPool)
	m.logger = logger
	return m
}

func (m *Manager) log() observability.Logger {
	if m.logger != nil {
		return m.logger
	}
	return observability.Log()
}

// Register adds s under its name. teardown is the context value passed to
// the listener when the manager deletes the pool on Shutdown.
func Register[K comparable, T comparable, C any](m *Manager, s *Synchronized[K, T, C], teardown C) error {
	if s == nil {
		return errs.New("pool manager", errs.CodeInvalid, errs.WithMessage("pool must be provided"))
	}
	name := s.Name()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if _, exists := m.pools[name]; exists {
		return fmt.Errorf("pool manager: pool %s already registered", name)
	}
	m.pools[name] = &managedPool{
		name:  name,
		pool:  s,
		stats: s.Stats,
		release: func() error {
			return releaseManaged(m, s, teardown)
		},
	}
	return nil
}

// Lookup returns the pool registered under name.
func Lookup[K comparable, T comparable, C any](m *Manager, name string) (*Synchronized[K, T, C], error) {
	m.mu.RLock()
	closed := m.closed
	mp, ok := m.pools[name]
	m.mu.RUnlock()
	if closed {
		return nil, ErrManagerClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotRegistered, name)
	}
	s, ok := mp.pool.(*Synchronized[K, T, C])
	if !ok {
		return nil, fmt.Errorf("pool manager: pool %s has type %T", name, mp.pool)
	}
	return s, nil
}

// Borrow looks up name and waits for a value for key, giving up after 100ms
// when ctx has no deadline. The returned func hands the value back.
func Borrow[K comparable, T comparable, C any](
	ctx context.Context,
	m *Manager,
	name string,
	c C,
	key K,
) (T, func() error, error) {
	var zero T
	s, err := Lookup[K, T, C](m, name)
	if err != nil {
		return zero, nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultAcquireTimeout)
	}
	if cancel != nil {
		defer cancel()
	}

	value, err := s.GetWait(ctx, c, key)
	if err != nil {
		return zero, nil, fmt.Errorf("pool manager: borrow from %s: %w", name, err)
	}
	release := func() error {
		return s.ReturnValue(c, value)
	}
	return value, release, nil
}

// Names returns the registered pool names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a snapshot of every registered pool, sorted by name.
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	pools := make([]*managedPool, 0, len(m.pools))
	for _, mp := range m.pools {
		pools = append(pools, mp)
	}
	m.mu.RUnlock()

	out := make([]Stats, 0, len(pools))
	for _, mp := range pools {
		out = append(out, mp.stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Shutdown stops the manager, waits for borrowed values to be returned until
// ctx is done (5 seconds when ctx has no deadline), then deletes every pool.
// Pools that still have values outstanding are deleted forcibly and reported
// in the returned error.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
	}
	if cancel != nil {
		defer cancel()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.closed = true
	pools := make([]*managedPool, 0, len(m.pools))
	for _, mp := range m.pools {
		pools = append(pools, mp)
	}
	m.mu.Unlock()
	sort.Slice(pools, func(i, j int) bool { return pools[i].name < pools[j].name })

	m.waitForReturns(ctx, pools)

	failures := make([]error, 0, len(pools))
	for _, mp := range pools {
		failures = append(failures, mp.release())
	}
	return observability.AggregateErrors(m.log(), "pool manager shutdown", failures)
}

func (m *Manager) waitForReturns(ctx context.Context, pools []*managedPool) {
	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		outstanding := 0
		for _, mp := range pools {
			outstanding += mp.stats().Used
		}
		if outstanding == 0 {
			return
		}
		select {
		case <-ctx.Done():
			m.log().Error("pool manager: shutdown timed out with values in use",
				observability.F("outstanding", outstanding))
			return
		case <-ticker.C:
		}
	}
}

func releaseManaged[K comparable, T comparable, C any](m *Manager, s *Synchronized[K, T, C], teardown C) error {
	err := s.DeleteSafely(teardown)
	if err == nil || !errors.Is(err, errs.ErrObjectsNotReturned) {
		return err
	}
	logOutstanding(m.log(), s.Name(), err)
	if forceErr := s.DeleteUnsafely(teardown); forceErr != nil {
		return errors.Join(err, forceErr)
	}
	return err
}

func logOutstanding(logger observability.Logger, name string, err error) {
	var poolErr *errs.E
	if !errors.As(err, &poolErr) {
		return
	}
	for _, item := range poolErr.Outstanding {
		fields := []observability.Field{
			observability.F("pool", name),
			observability.F("key", item.Key),
			observability.F("value", item.Value),
		}
		if item.Stack != "" {
			fields = append(fields, observability.F("stack", item.Stack))
		}
		logger.Error("pool manager: value not returned before shutdown", fields...)
	}
}
