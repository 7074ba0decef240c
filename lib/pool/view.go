package pool

import (
	"fmt"
	"reflect"

	"github.com/coachpo/sizedpool/errs"
)

// Usable is the part of a pool handed to consumers that may borrow and
// return values but must not delete the pool. U is the caller-visible type.
type Usable[K comparable, U any, C any] interface {
	IsDeleted() bool
	Trim(c C) error
	Get(c C, key K) (U, error)
	ReturnValue(c C, value U) error
	Size() (uint64, error)
}

var _ Usable[string, *struct{}, string] = (*Pool[string, *struct{}, string])(nil)

// View exposes a pool of internal values T as values of a narrower public
// type U, which T must implement. Values returned through the view are
// mapped back to T by type assertion.
type View[K comparable, T comparable, U any, C any] struct {
	pool *Pool[K, T, C]
}

// NewView wraps p. It fails when T does not provide U.
func NewView[K comparable, T comparable, U any, C any](p *Pool[K, T, C]) (*View[K, T, U, C], error) {
	if p == nil {
		return nil, errs.New("", errs.CodeInvalid, errs.WithMessage("pool must be provided"))
	}
	var zero T
	if _, ok := any(zero).(U); !ok {
		return nil, errs.New(p.name, errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("%s does not provide %s", reflect.TypeFor[T](), reflect.TypeFor[U]())))
	}
	return &View[K, T, U, C]{pool: p}, nil
}

// IsDeleted reports whether the underlying pool has been deleted.
func (v *View[K, T, U, C]) IsDeleted() bool { return v.pool.IsDeleted() }

// Trim trims the underlying pool.
func (v *View[K, T, U, C]) Trim(c C) error { return v.pool.Trim(c) }

// Size returns the underlying pool's size.
func (v *View[K, T, U, C]) Size() (uint64, error) { return v.pool.Size() }

// Get borrows a value for key and returns its public view.
func (v *View[K, T, U, C]) Get(c C, key K) (U, error) {
	var zero U
	value, err := v.pool.Get(c, key)
	if err != nil {
		return zero, err
	}
	return any(value).(U), nil
}

// ReturnValue returns a value previously obtained from Get.
func (v *View[K, T, U, C]) ReturnValue(c C, value U) error {
	internal, ok := any(value).(T)
	if !ok {
		return errs.New(v.pool.name, errs.CodeObjectNotActive,
			errs.WithMessage(fmt.Sprintf("returned value not active: %v", value)))
	}
	return v.pool.ReturnValue(c, internal)
}
