//go:build !debug

package pool

type debugState struct{}

func newDebugState() *debugState { return nil }

func (d *debugState) recordAcquire(any) {}

func (d *debugState) recordRelease(any) {}

func (d *debugState) stackFor(any) string { return "" }

func (d *debugState) reset() {}
