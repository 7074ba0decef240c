package pool

import (
	"strings"

	"github.com/google/uuid"

	"github.com/coachpo/sizedpool/errs"
	"github.com/coachpo/sizedpool/lib/observability"
)

// Observer receives engine events. Implementations must not call back into
// the pool.
type Observer interface {
	Reused()
	Created(size uint64)
	Evicted(size uint64)
	Failed(code errs.Code)
}

type noopObserver struct{}

func (noopObserver) Reused()           {}
func (noopObserver) Created(uint64)   {}
func (noopObserver) Evicted(uint64)   {}
func (noopObserver) Failed(errs.Code) {}

type options struct {
	name     string
	logger   observability.Logger
	observer Observer
}

// Option configures a Pool.
type Option func(*options)

// WithName sets the pool name used in errors, logs and stats. Unnamed pools
// are called "pool-<uuid>".
func WithName(name string) Option {
	trimmed := strings.TrimSpace(name)
	return func(o *options) {
		o.name = trimmed
	}
}

// WithLogger routes pool logging to logger instead of the global logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver registers an Observer for engine events.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

func buildOptions(opts []Option) options {
	o := options{name: "", logger: nil, observer: nil}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.name == "" {
		o.name = "pool-" + uuid.NewString()
	}
	if o.observer == nil {
		o.observer = noopObserver{}
	}
	return o
}
