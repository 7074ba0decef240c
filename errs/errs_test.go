package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormattingIncludesLimitAndCause(t *testing.T) {
	err := New(
		"buffers",
		CodeHardLimitExceeded,
		WithMessage("estimated size exceeds hard limit"),
		WithLimit(20, 21),
		WithCause(errors.New("estimate 21")),
	)

	out := err.Error()
	if !strings.Contains(out, "pool=buffers") {
		t.Fatalf("expected pool marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=hard_limit_exceeded") {
		t.Fatalf("expected code in error string: %s", out)
	}
	if !strings.Contains(out, "hard_limit=20 size=21") {
		t.Fatalf("expected limit fields in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"estimate 21\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestLimitFieldsOmittedForOtherCodes(t *testing.T) {
	err := New("buffers", CodeObjectNotActive, WithLimit(1, 2))
	require.NotContains(t, err.Error(), "hard_limit=")
}

func TestOutstandingFormatting(t *testing.T) {
	err := New("buffers", CodeObjectsNotReturned, WithOutstanding(
		Outstanding{Key: "a", Value: "1"},
		Outstanding{Key: "b", Value: "2"},
	))
	require.Len(t, err.Outstanding, 2)
	require.Contains(t, err.Error(), `outstanding="a"->"1","b"->"2"`)
}

func TestWithOutstandingEmptyLeavesNil(t *testing.T) {
	err := New("buffers", CodeObjectsNotReturned, WithOutstanding())
	require.Nil(t, err.Outstanding)
}

func TestIsMatchesByCode(t *testing.T) {
	err := New("buffers", CodePoolDeleted, WithMessage("pool has been deleted"))
	wrapped := fmt.Errorf("get: %w", err)

	require.True(t, errors.Is(wrapped, ErrPoolDeleted))
	require.False(t, errors.Is(wrapped, ErrObjectNotActive))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("listener exploded")
	err := New("buffers", CodeObjectCreation, WithCause(cause))

	require.Same(t, cause, err.Unwrap())
	require.True(t, errors.Is(err, cause))
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New("", CodeInternalOverflow))
	require.Equal(t, CodeInternalOverflow, CodeOf(err))
	require.Equal(t, Code(""), CodeOf(errors.New("plain")))
	require.Equal(t, Code(""), CodeOf(nil))
}

func TestEmptyPoolAndCodeDefaultToUnknown(t *testing.T) {
	err := New("  ", "")
	require.Equal(t, "pool=unknown code=unknown", err.Error())
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("expected <nil> string for nil error, got %q", got)
	}
	require.False(t, e.Is(ErrPoolDeleted))
}
