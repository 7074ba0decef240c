package pool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/sizedpool/errs"
)

type handle interface {
	fmt.Stringer
	ID() int
}

type buffer struct {
	id   int
	data []byte
}

func (b *buffer) ID() int        { return b.id }
func (b *buffer) String() string { return fmt.Sprintf("buffer(%d)", b.id) }

type otherHandle struct{ id int }

func (o *otherHandle) ID() int        { return o.id }
func (o *otherHandle) String() string { return "other" }

func newBufferPool(t *testing.T) *Pool[int, *buffer, int] {
	t.Helper()
	next := 0
	listener := ListenerFuncs[int, *buffer, int]{
		CreateFunc: func(_ int, key int) (*buffer, error) {
			next++
			return &buffer{id: next, data: make([]byte, key)}, nil
		},
		SizeFunc: func(_ int, _ int, b *buffer) (uint64, error) {
			return uint64(len(b.data)), nil
		},
	}
	p, err := New[int, *buffer, int](listener, 64, 128, WithName("buffers"))
	require.NoError(t, err)
	return p
}

func TestViewExposesPublicType(t *testing.T) {
	p := newBufferPool(t)
	v, err := NewView[int, *buffer, handle, int](p)
	require.NoError(t, err)

	var usable Usable[int, handle, int] = v
	h, err := usable.Get(1, 16)
	require.NoError(t, err)
	require.Equal(t, 1, h.ID())

	size, err := usable.Size()
	require.NoError(t, err)
	require.Equal(t, uint64(16), size)

	require.NoError(t, usable.ReturnValue(1, h))
	again, err := usable.Get(1, 16)
	require.NoError(t, err)
	require.Equal(t, h, again)
	require.NoError(t, usable.Trim(1))
	require.False(t, usable.IsDeleted())
}

func TestViewRejectsForeignValue(t *testing.T) {
	p := newBufferPool(t)
	v, err := NewView[int, *buffer, handle, int](p)
	require.NoError(t, err)

	err = v.ReturnValue(1, &otherHandle{id: 1})
	require.ErrorIs(t, err, errs.ErrObjectNotActive)
}

func TestNewViewRejectsUnrelatedType(t *testing.T) {
	p := newBufferPool(t)
	_, err := NewView[int, *buffer, fmt.GoStringer, int](p)
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.Contains(t, err.Error(), "*pool.buffer does not provide fmt.GoStringer")

	_, err = NewView[int, *buffer, handle, int](nil)
	require.ErrorIs(t, err, errs.ErrInvalid)
}
