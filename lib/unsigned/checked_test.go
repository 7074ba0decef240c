package unsigned

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckedAdd(t *testing.T) {
	cases := []struct {
		name    string
		x, y    uint64
		want    uint64
		wantErr error
	}{
		{name: "zero", x: 0, y: 0, want: 0},
		{name: "small", x: 19, y: 1, want: 20},
		{name: "above signed range", x: 0x8000000000000000, y: 0x64, want: 0x8000000000000064},
		{name: "largest valid", x: math.MaxUint64 - 2, y: 1, want: math.MaxUint64 - 1},
		{name: "reserved max", x: 0, y: math.MaxUint64, wantErr: ErrOverflow},
		{name: "reaches max", x: math.MaxUint64 - 1, y: 1, wantErr: ErrOverflow},
		{name: "wraps", x: math.MaxUint64 - 1, y: 5, wantErr: ErrOverflow},
		{name: "both high", x: 0x8000000000000065, y: 0x8000000000000065, wantErr: ErrOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CheckedAdd(tc.x, tc.y)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				var arith *ArithmeticError
				require.True(t, errors.As(err, &arith))
				require.Equal(t, "add", arith.Op)
				require.Equal(t, tc.x, arith.X)
				require.Equal(t, tc.y, arith.Y)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCheckedSubtract(t *testing.T) {
	cases := []struct {
		name    string
		x, y    uint64
		want    uint64
		wantErr error
	}{
		{name: "to zero", x: 20, y: 20, want: 0},
		{name: "small", x: 20, y: 1, want: 19},
		{name: "high operands", x: math.MaxUint64 - 1, y: 0x8000000000000000, want: 0x7FFFFFFFFFFFFFFE},
		{name: "underflow", x: 1, y: 2, wantErr: ErrUnderflow},
		{name: "underflow from zero", x: 0, y: math.MaxUint64, wantErr: ErrUnderflow},
		{name: "reserved max", x: math.MaxUint64, y: 0, wantErr: ErrOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CheckedSubtract(tc.x, tc.y)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestArithmeticErrorMessage(t *testing.T) {
	_, err := CheckedSubtract(1, 2)
	require.EqualError(t, err, "subtract(1, 2): unsigned: integer underflow")
}
