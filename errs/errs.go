// Package errs provides structured error types and helpers for pool operations.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a pool failure category.
type Code string

const (
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodePoolDeleted indicates the pool has already been deleted.
	CodePoolDeleted Code = "pool_deleted"
	// CodeHardLimitExceeded indicates an operation would push the pool past its hard limit.
	CodeHardLimitExceeded Code = "hard_limit_exceeded"
	// CodeInternalOverflow indicates size accounting over- or underflowed 64 bits.
	CodeInternalOverflow Code = "internal_overflow"
	// CodeObjectCreation indicates the listener failed to estimate, create, or measure a value.
	CodeObjectCreation Code = "object_creation"
	// CodeObjectNotActive indicates a returned value is not currently in use.
	CodeObjectNotActive Code = "object_not_active"
	// CodeObjectsNotReturned indicates a safe deletion found values still in use.
	CodeObjectsNotReturned Code = "objects_not_returned"
	// CodeUnavailable indicates the owning manager is shutting down.
	CodeUnavailable Code = "unavailable"
)

// Sentinels usable with errors.Is. Any *E carrying the same Code matches.
var (
	ErrInvalid            = &E{Code: CodeInvalid}
	ErrPoolDeleted        = &E{Code: CodePoolDeleted}
	ErrHardLimitExceeded  = &E{Code: CodeHardLimitExceeded}
	ErrInternalOverflow   = &E{Code: CodeInternalOverflow}
	ErrObjectCreation     = &E{Code: CodeObjectCreation}
	ErrObjectNotActive    = &E{Code: CodeObjectNotActive}
	ErrObjectsNotReturned = &E{Code: CodeObjectsNotReturned}
	ErrUnavailable        = &E{Code: CodeUnavailable}
)

// Outstanding describes one value still held by a caller.
type Outstanding struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Stack string `json:"stack,omitempty"`
}

// E captures structured error information produced by the pool stack.
type E struct {
	Pool        string
	Code        Code
	Message     string
	HardLimit   uint64
	Size        uint64
	Outstanding []Outstanding

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the pool and error code.
func New(pool string, code Code, opts ...Option) *E {
	e := &E{
		Pool:        strings.TrimSpace(pool),
		Code:        code,
		Message:     "",
		HardLimit:   0,
		Size:        0,
		Outstanding: nil,
		cause:       nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithLimit records the hard limit and the size that would have been reached.
func WithLimit(hardLimit, size uint64) Option {
	return func(e *E) {
		e.HardLimit = hardLimit
		e.Size = size
	}
}

// WithOutstanding appends outstanding value descriptions.
func WithOutstanding(items ...Outstanding) Option {
	return func(e *E) {
		if len(items) == 0 {
			return
		}
		e.Outstanding = append(e.Outstanding, items...)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	pool := strings.TrimSpace(e.Pool)
	if pool == "" {
		pool = "unknown"
	}
	parts = append(parts, "pool="+pool)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.Code == CodeHardLimitExceeded {
		parts = append(parts, "hard_limit="+strconv.FormatUint(e.HardLimit, 10))
		parts = append(parts, "size="+strconv.FormatUint(e.Size, 10))
	}
	if len(e.Outstanding) > 0 {
		pairs := make([]string, 0, len(e.Outstanding))
		for _, o := range e.Outstanding {
			pairs = append(pairs, strconv.Quote(o.Key)+"->"+strconv.Quote(o.Value))
		}
		parts = append(parts, "outstanding="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Is reports whether target is an *E with the same Code.
func (e *E) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*E)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the Code of the first *E in err's chain, or "" when none is present.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
