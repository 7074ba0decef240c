// Package unsigned provides overflow-checked arithmetic over unsigned 64-bit sizes.
package unsigned

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

var (
	// ErrOverflow indicates a result at or above math.MaxUint64.
	ErrOverflow = errors.New("unsigned: integer overflow")
	// ErrUnderflow indicates a result below zero.
	ErrUnderflow = errors.New("unsigned: integer underflow")
)

// ArithmeticError records the operands of a failed checked operation.
type ArithmeticError struct {
	Op   string
	X, Y uint64
	Err  error
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("%s(%d, %d): %v", e.Op, e.X, e.Y, e.Err)
}

func (e *ArithmeticError) Unwrap() error { return e.Err }

// CheckedAdd returns x+y. math.MaxUint64 is reserved, so any sum reaching it
// fails with ErrOverflow.
func CheckedAdd(x, y uint64) (uint64, error) {
	sum, carry := bits.Add64(x, y, 0)
	if carry != 0 || sum == math.MaxUint64 {
		return 0, &ArithmeticError{Op: "add", X: x, Y: y, Err: ErrOverflow}
	}
	return sum, nil
}

// CheckedSubtract returns x-y, failing with ErrUnderflow when y > x and with
// ErrOverflow when the difference is math.MaxUint64.
func CheckedSubtract(x, y uint64) (uint64, error) {
	diff, borrow := bits.Sub64(x, y, 0)
	if borrow != 0 {
		return 0, &ArithmeticError{Op: "subtract", X: x, Y: y, Err: ErrUnderflow}
	}
	if diff == math.MaxUint64 {
		return 0, &ArithmeticError{Op: "subtract", X: x, Y: y, Err: ErrOverflow}
	}
	return diff, nil
}
