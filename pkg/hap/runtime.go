package hap

import (
	"context"

	"github.com/hapkit/hap-go/pkg/clock"
	"github.com/hapkit/hap-go/pkg/log"
)

// Gate wraps consumer operations, e.g. with simulated network conditions.
// Apply must either run op exactly once and return its result, or not run
// it at all and return an error.
type Gate interface {
	Apply(ctx context.Context, op func(context.Context) error) error
}

// Runtime is the environment an accessory graph runs in.
type Runtime struct {
	// Clock stamps events and drives subscription timeouts.
	Clock clock.Clock

	// Gate wraps GetValue and SetValue. Nil runs operations directly.
	Gate Gate

	// Logger receives debug output. Nil means no logging.
	Logger log.Logger
}

var defaultRuntime = &Runtime{
	Clock:  clock.Real(),
	Logger: log.Nop(),
}

// withDefaults fills unset fields.
func (r Runtime) withDefaults() *Runtime {
	if r.Clock == nil {
		r.Clock = clock.Real()
	}
	r.Logger = log.OrNop(r.Logger)
	return &r
}

func (r *Runtime) apply(ctx context.Context, op func(context.Context) error) error {
	if r.Gate == nil {
		return op(ctx)
	}
	return r.Gate.Apply(ctx, op)
}
