package pool

import (
	"fmt"
	"runtime/debug"

	"github.com/coachpo/sizedpool/lib/observability"
)

// checkedListener decorates a caller's Listener. Failures from EstimateSize,
// Create and Size are reported through OnError and returned; failures from
// Reuse and Delete are reported and swallowed because the pool has already
// committed the transition. Panics count as failures.
type checkedListener[K comparable, T comparable, C any] struct {
	pool     string
	listener Listener[K, T, C]
	logger   func() observability.Logger
}

func newCheckedListener[K comparable, T comparable, C any](
	pool string,
	listener Listener[K, T, C],
	logger func() observability.Logger,
) *checkedListener[K, T, C] {
	return &checkedListener[K, T, C]{pool: pool, listener: listener, logger: logger}
}

func guard(callback string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Callback: callback, Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func (l *checkedListener[K, T, C]) estimateSize(c C, key K) (uint64, error) {
	var size uint64
	err := guard("EstimateSize", func() error {
		var err error
		size, err = l.listener.EstimateSize(c, key)
		return err
	})
	if err != nil {
		l.onError(c, key, nil, err)
		return 0, err
	}
	return size, nil
}

func (l *checkedListener[K, T, C]) create(c C, key K) (T, error) {
	var value T
	err := guard("Create", func() error {
		var err error
		value, err = l.listener.Create(c, key)
		return err
	})
	if err != nil {
		l.onError(c, key, nil, err)
		var zero T
		return zero, err
	}
	return value, nil
}

func (l *checkedListener[K, T, C]) size(c C, key K, value T) (uint64, error) {
	var size uint64
	err := guard("Size", func() error {
		var err error
		size, err = l.listener.Size(c, key, value)
		return err
	})
	if err != nil {
		l.onError(c, key, nil, err)
		return 0, err
	}
	return size, nil
}

func (l *checkedListener[K, T, C]) reuse(c C, key K, value T) {
	err := guard("Reuse", func() error {
		return l.listener.Reuse(c, key, value)
	})
	if err != nil {
		l.onError(c, key, &value, err)
	}
}

func (l *checkedListener[K, T, C]) delete(c C, key K, value T) {
	err := guard("Delete", func() error {
		return l.listener.Delete(c, key, value)
	})
	if err != nil {
		l.onError(c, key, &value, err)
	}
}

// onError forwards cause to the caller's OnError. If the handler fails it is
// given its own failure once more; a second failure is logged and dropped.
func (l *checkedListener[K, T, C]) onError(c C, key K, value *T, cause error) {
	first := guard("OnError", func() error {
		return l.listener.OnError(c, key, value, cause)
	})
	if first == nil {
		return
	}
	second := guard("OnError", func() error {
		return l.listener.OnError(c, key, value, first)
	})
	if second == nil {
		return
	}
	l.logger().Error("suppressed listener error",
		observability.F("pool", l.pool),
		observability.F("key", fmt.Sprint(key)),
		observability.F("cause", cause),
		observability.F("error", second),
	)
}
