package pool

import (
	"errors"
	"fmt"
)

// Listener owns the lifecycle of pooled values. The pool calls it
// synchronously, inline with the triggering operation; c and key are never nil.
type Listener[K comparable, T any, C any] interface {
	// EstimateSize is a best-effort size hint checked against the hard limit
	// before Create is called. Return 0 when unknown.
	EstimateSize(c C, key K) (uint64, error)
	// Create constructs a new value for key.
	Create(c C, key K) (T, error)
	// Size measures a value that Create just returned.
	Size(c C, key K, value T) (uint64, error)
	// Reuse is notified when a free value is handed out again.
	Reuse(c C, key K, value T) error
	// Delete releases any resources owned by value. It is called exactly once
	// per value the pool evicts or deletes.
	Delete(c C, key K, value T) error
	// OnError receives failures from the other callbacks. value is nil when no
	// value exists yet. Its own failures are logged and discarded.
	OnError(c C, key K, value *T, cause error) error
}

// ListenerFuncs adapts plain functions to Listener. CreateFunc is required;
// nil funcs default to a zero estimate, a size of zero, and no-op
// notifications.
type ListenerFuncs[K comparable, T any, C any] struct {
	EstimateSizeFunc func(c C, key K) (uint64, error)
	CreateFunc       func(c C, key K) (T, error)
	SizeFunc         func(c C, key K, value T) (uint64, error)
	ReuseFunc        func(c C, key K, value T) error
	DeleteFunc       func(c C, key K, value T) error
	OnErrorFunc      func(c C, key K, value *T, cause error) error
}

var errNoCreateFunc = errors.New("listener: CreateFunc not set")

func (l ListenerFuncs[K, T, C]) EstimateSize(c C, key K) (uint64, error) {
	if l.EstimateSizeFunc == nil {
		return 0, nil
	}
	return l.EstimateSizeFunc(c, key)
}

func (l ListenerFuncs[K, T, C]) Create(c C, key K) (T, error) {
	if l.CreateFunc == nil {
		var zero T
		return zero, errNoCreateFunc
	}
	return l.CreateFunc(c, key)
}

func (l ListenerFuncs[K, T, C]) Size(c C, key K, value T) (uint64, error) {
	if l.SizeFunc == nil {
		return 0, nil
	}
	return l.SizeFunc(c, key, value)
}

func (l ListenerFuncs[K, T, C]) Reuse(c C, key K, value T) error {
	if l.ReuseFunc == nil {
		return nil
	}
	return l.ReuseFunc(c, key, value)
}

func (l ListenerFuncs[K, T, C]) Delete(c C, key K, value T) error {
	if l.DeleteFunc == nil {
		return nil
	}
	return l.DeleteFunc(c, key, value)
}

func (l ListenerFuncs[K, T, C]) OnError(c C, key K, value *T, cause error) error {
	if l.OnErrorFunc == nil {
		return nil
	}
	return l.OnErrorFunc(c, key, value, cause)
}

// PanicError is the failure recorded when a listener callback panics.
type PanicError struct {
	Callback string
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("listener %s panicked: %v", e.Callback, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
