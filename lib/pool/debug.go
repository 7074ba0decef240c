//go:build debug

package pool

import (
	"runtime/debug"
)

// debugState remembers where each used value was handed out so leak
// diagnostics can point at the caller. It shares the pool's external lock.
type debugState struct {
	stacks map[any]string
}

func newDebugState() *debugState {
	return &debugState{stacks: make(map[any]string)}
}

func (d *debugState) recordAcquire(value any) {
	if d == nil {
		return
	}
	d.stacks[value] = string(debug.Stack())
}

func (d *debugState) recordRelease(value any) {
	if d == nil {
		return
	}
	delete(d.stacks, value)
}

func (d *debugState) stackFor(value any) string {
	if d == nil {
		return ""
	}
	return d.stacks[value]
}

func (d *debugState) reset() {
	if d == nil {
		return
	}
	clear(d.stacks)
}
