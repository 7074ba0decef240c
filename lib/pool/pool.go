// Package pool implements a size-bounded pool of reusable values keyed by an
// arbitrary key type.
//
// A Pool tracks the size of every value it holds and enforces two limits. The
// soft limit triggers eviction of the least recently used free values; the
// hard limit is never exceeded. Creation, measurement and destruction of
// values are delegated to a caller-supplied Listener.
//
// Pool is a plain sequential state machine and performs no locking. Callers
// sharing a pool between goroutines must serialise access, for example via
// Synchronized.
package pool

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"github.com/coachpo/sizedpool/errs"
	"github.com/coachpo/sizedpool/lib/observability"
	"github.com/coachpo/sizedpool/lib/unsigned"
)

// outstandingSample bounds the number of outstanding values listed when a
// safe deletion is refused.
const outstandingSample = 10

// Pool is a size-bounded pool of values of type T keyed by K. Every listener
// call receives the caller's context value C unchanged.
type Pool[K comparable, T comparable, C any] struct {
	name      string
	listener  *checkedListener[K, T, C]
	logger    observability.Logger
	observer  Observer
	free      *freeIndex[K, T]
	used      map[T]*entry[K, T]
	debug     *debugState
	softLimit uint64
	hardLimit uint64
	sizeNow   uint64
	time      uint64
	deleted   bool
}

// New constructs a pool. The pool's size never exceeds hardLimit, and free
// values are trimmed whenever the size is above softLimit.
func New[K comparable, T comparable, C any](
	listener Listener[K, T, C],
	softLimit, hardLimit uint64,
	opts ...Option,
) (*Pool[K, T, C], error) {
	o := buildOptions(opts)
	if isNil(listener) {
		return nil, errs.New(o.name, errs.CodeInvalid, errs.WithMessage("listener must be provided"))
	}
	if softLimit > hardLimit {
		return nil, errs.New(o.name, errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("soft limit %d exceeds hard limit %d", softLimit, hardLimit)))
	}

	p := new(Pool[K, T, C])
	p.name = o.name
	p.logger = o.logger
	p.observer = o.observer
	p.free = newFreeIndex[K, T]()
	p.used = make(map[T]*entry[K, T])
	p.debug = newDebugState()
	p.softLimit = softLimit
	p.hardLimit = hardLimit
	p.listener = newCheckedListener(o.name, listener, p.log)
	return p, nil
}

// Name returns the pool name.
func (p *Pool[K, T, C]) Name() string { return p.name }

// SoftLimit returns the size above which free values are trimmed.
func (p *Pool[K, T, C]) SoftLimit() uint64 { return p.softLimit }

// HardLimit returns the size the pool never exceeds.
func (p *Pool[K, T, C]) HardLimit() uint64 { return p.hardLimit }

// IsDeleted reports whether the pool has been deleted.
func (p *Pool[K, T, C]) IsDeleted() bool { return p.deleted }

// Trim evicts the least recently used free values until the size is at or
// below the soft limit or no free values remain. Used values are untouched.
func (p *Pool[K, T, C]) Trim(c C) error {
	if err := p.checkContext(c); err != nil {
		return err
	}
	if err := p.checkNotDeleted(); err != nil {
		return err
	}
	return p.trim(c)
}

// Get returns a value for key, reusing the oldest free value for key when one
// exists and asking the listener to create one otherwise.
func (p *Pool[K, T, C]) Get(c C, key K) (T, error) {
	var zero T
	if err := p.checkContext(c); err != nil {
		return zero, err
	}
	if isNil(key) {
		return zero, errs.New(p.name, errs.CodeInvalid, errs.WithMessage("key must not be nil"))
	}
	if err := p.checkNotDeleted(); err != nil {
		return zero, err
	}
	value, err := p.get(c, key)
	if err != nil {
		p.observer.Failed(errs.CodeOf(err))
		return zero, err
	}
	return value, nil
}

// ReturnValue hands value back to the pool for reuse by later Get calls for
// the same key, then trims the pool.
func (p *Pool[K, T, C]) ReturnValue(c C, value T) error {
	if err := p.checkContext(c); err != nil {
		return err
	}
	if isNil(value) {
		return errs.New(p.name, errs.CodeInvalid, errs.WithMessage("value must not be nil"))
	}
	if err := p.checkNotDeleted(); err != nil {
		return err
	}
	e, ok := p.used[value]
	if !ok {
		return errs.New(p.name, errs.CodeObjectNotActive,
			errs.WithMessage(fmt.Sprintf("returned value not active: %v", value)))
	}
	p.release(e)
	return p.trim(c)
}

// Size returns the summed size of all used and free values.
func (p *Pool[K, T, C]) Size() (uint64, error) {
	if err := p.checkNotDeleted(); err != nil {
		return 0, err
	}
	return p.sizeNow, nil
}

// DeleteSafely deletes every free value and marks the pool deleted. It
// refuses, leaving the pool intact, while any value is still in use.
func (p *Pool[K, T, C]) DeleteSafely(c C) error {
	if err := p.checkContext(c); err != nil {
		return err
	}
	if err := p.checkNotDeleted(); err != nil {
		return err
	}
	if len(p.used) > 0 {
		return p.errorNotEmpty()
	}
	return p.deleteAll(c)
}

// DeleteUnsafely returns every used value to the pool, deletes every value
// and marks the pool deleted. The pool is marked deleted even when teardown
// fails.
func (p *Pool[K, T, C]) DeleteUnsafely(c C) error {
	if err := p.checkContext(c); err != nil {
		return err
	}
	if err := p.checkNotDeleted(); err != nil {
		return err
	}
	return p.deleteAll(c)
}

// Stats returns a snapshot of the pool's accounting. It is valid after
// deletion.
func (p *Pool[K, T, C]) Stats() Stats {
	return Stats{
		Name:      p.name,
		SoftLimit: p.softLimit,
		HardLimit: p.hardLimit,
		Size:      p.sizeNow,
		Used:      len(p.used),
		Free:      p.free.len(),
		FreeKeys:  p.free.keys(),
		Deleted:   p.deleted,
	}
}

func (p *Pool[K, T, C]) log() observability.Logger {
	if p.logger != nil {
		return p.logger
	}
	return observability.Log()
}

func (p *Pool[K, T, C]) checkNotDeleted() error {
	if p.deleted {
		return errs.New(p.name, errs.CodePoolDeleted, errs.WithMessage("pool has been deleted"))
	}
	return nil
}

func (p *Pool[K, T, C]) checkContext(c C) error {
	if isNil(c) {
		return errs.New(p.name, errs.CodeInvalid, errs.WithMessage("context must not be nil"))
	}
	return nil
}

func (p *Pool[K, T, C]) trim(c C) error {
	for p.sizeNow > p.softLimit {
		oldest, ok := p.free.oldest()
		if !ok {
			return nil
		}
		if err := p.evict(c, oldest); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool[K, T, C]) get(c C, key K) (T, error) {
	var zero T
	if err := p.trim(c); err != nil {
		return zero, err
	}

	if e, ok := p.free.takeOldest(key); ok {
		p.time++
		e.stamp = p.time
		p.used[e.value] = e
		p.debug.recordAcquire(e.value)
		p.observer.Reused()
		p.listener.reuse(c, e.key, e.value)
		return e.value, nil
	}

	if err := p.checkEstimate(c, key); err != nil {
		return zero, err
	}

	value, err := p.listener.create(c, key)
	if err != nil {
		return zero, p.creationError("create value", err)
	}
	if _, dup := p.used[value]; dup {
		return zero, p.creationError("create value",
			fmt.Errorf("listener returned a value already in use: %v", value))
	}

	size, err := p.listener.size(c, key, value)
	if err != nil {
		p.listener.delete(c, key, value)
		return zero, p.creationError("measure value", err)
	}

	newSize, err := p.checkNewSize(c, key, value, size)
	if err != nil {
		return zero, err
	}

	p.time++
	e := &entry[K, T]{key: key, value: value, size: size, stamp: p.time}
	p.sizeNow = newSize
	p.used[value] = e
	p.debug.recordAcquire(value)
	p.observer.Created(size)
	return value, nil
}

// checkEstimate rejects a creation that is known in advance to breach the
// hard limit, before the listener is asked to create anything.
func (p *Pool[K, T, C]) checkEstimate(c C, key K) error {
	estimate, err := p.listener.estimateSize(c, key)
	if err != nil {
		return p.creationError("estimate size", err)
	}
	estimated, err := unsigned.CheckedAdd(p.sizeNow, estimate)
	if err != nil {
		return errs.New(p.name, errs.CodeInternalOverflow,
			errs.WithMessage("estimated size overflows"), errs.WithCause(err))
	}
	if estimated > p.hardLimit {
		return errs.New(p.name, errs.CodeHardLimitExceeded,
			errs.WithMessage("estimated size exceeds hard limit"),
			errs.WithLimit(p.hardLimit, estimated))
	}
	return nil
}

// checkNewSize deletes value and fails when its measured size cannot be
// accounted within the hard limit.
func (p *Pool[K, T, C]) checkNewSize(c C, key K, value T, size uint64) (uint64, error) {
	newSize, err := unsigned.CheckedAdd(p.sizeNow, size)
	if err != nil {
		p.listener.delete(c, key, value)
		return 0, errs.New(p.name, errs.CodeInternalOverflow,
			errs.WithMessage("measured size overflows"), errs.WithCause(err))
	}
	if newSize > p.hardLimit {
		p.listener.delete(c, key, value)
		return 0, errs.New(p.name, errs.CodeHardLimitExceeded,
			errs.WithMessage("measured size exceeds hard limit"),
			errs.WithLimit(p.hardLimit, newSize))
	}
	return newSize, nil
}

func (p *Pool[K, T, C]) creationError(step string, cause error) error {
	return errs.New(p.name, errs.CodeObjectCreation, errs.WithMessage(step+" failed"), errs.WithCause(cause))
}

func (p *Pool[K, T, C]) release(e *entry[K, T]) {
	delete(p.used, e.value)
	p.debug.recordRelease(e.value)
	p.free.insert(e)
}

// evict permanently removes a free entry. Accounting is committed before the
// listener is told to delete the value.
func (p *Pool[K, T, C]) evict(c C, e *entry[K, T]) error {
	if !p.free.contains(e) {
		panic(fmt.Sprintf("pool %s: evicted entry for key %v is not free", p.name, e.key))
	}
	if e.size > 0 && p.sizeNow == 0 {
		panic(fmt.Sprintf("pool %s: evicting %d units from an empty pool", p.name, e.size))
	}
	remaining, err := unsigned.CheckedSubtract(p.sizeNow, e.size)
	if err != nil {
		return errs.New(p.name, errs.CodeInternalOverflow,
			errs.WithMessage("evicted size underflows"), errs.WithCause(err))
	}
	p.free.remove(e)
	p.sizeNow = remaining
	p.observer.Evicted(e.size)
	p.log().Debug("pool evicted value",
		observability.F("pool", p.name),
		observability.F("key", fmt.Sprint(e.key)),
		observability.F("size", e.size),
		observability.F("pool_size", remaining),
	)
	p.listener.delete(c, e.key, e.value)
	return nil
}

func (p *Pool[K, T, C]) deleteAll(c C) (err error) {
	defer func() {
		p.deleted = true
		p.debug.reset()
	}()

	for _, e := range p.usedByStamp() {
		p.release(e)
	}
	var failures []error
	for _, e := range p.free.snapshot() {
		if evictErr := p.evict(c, e); evictErr != nil {
			failures = append(failures, evictErr)
		}
	}
	if len(failures) > 0 {
		return observability.AggregateErrors(p.log(), "delete pool "+p.name, failures,
			observability.F("pool", p.name))
	}
	p.log().Debug("pool deleted", observability.F("pool", p.name))
	return nil
}

func (p *Pool[K, T, C]) usedByStamp() []*entry[K, T] {
	out := make([]*entry[K, T], 0, len(p.used))
	for _, e := range p.used {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *entry[K, T]) int {
		return cmp.Compare(a.stamp, b.stamp)
	})
	return out
}

func (p *Pool[K, T, C]) errorNotEmpty() error {
	used := p.usedByStamp()
	sample := used
	if len(sample) > outstandingSample {
		sample = sample[:outstandingSample]
	}
	items := make([]errs.Outstanding, 0, len(sample))
	for _, e := range sample {
		items = append(items, errs.Outstanding{
			Key:   fmt.Sprint(e.key),
			Value: fmt.Sprint(e.value),
			Stack: p.debug.stackFor(e.value),
		})
	}
	return errs.New(p.name, errs.CodeObjectsNotReturned,
		errs.WithMessage(fmt.Sprintf("%d values not yet returned", len(used))),
		errs.WithOutstanding(items...))
}

// isNil reports whether v is nil or a nil pointer, map, slice, channel,
// func or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
