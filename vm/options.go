package vm

import "github.com/hashicorp/go-hclog"

// DefaultMaxOpStack is the default bound on a single SubSet/SuperSet DFS
// walk's stack depth (spec §4.3), well beyond smallStackInline's inline
// capacity so the bound is only ever reached by a pathologically deep or
// cyclic closure, not an ordinary hierarchy.
const DefaultMaxOpStack = 4096

// Options configures an Iterator. Zero value is valid.
type Options struct {
	Logger hclog.Logger
	// Trace gates a k0kubun/pp-rendered line after every dispatch step
	// (op index, instruction kind, redo flag, result, correlation id) --
	// distinct from the stable program.Dump format, meant only for
	// interactive debugging of a single iterator run. Register contents are
	// not printed.
	Trace bool
	// MaxOpStack bounds the depth a single SubSet/SuperSet DFS walk's
	// smallStack may reach: once the bound is hit the walk stops pushing
	// deeper levels, and the levels already pushed still drain normally.
	// This guards against unbounded growth over a cyclic or pathologically
	// deep IsA hierarchy (spec §4.3).
	MaxOpStack int
}

// Option mutates an Options value.
type Option func(*Options)

// WithLogger sets the hclog.Logger the iterator logs to: one Trace entry
// when it is created and one when it is destroyed, each tagged with its
// correlation_id. Individual dispatch steps are not logged through it (see
// WithTrace).
func WithLogger(l hclog.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithTrace enables the pp-rendered per-step line on every dispatch step.
func WithTrace(b bool) Option { return func(o *Options) { o.Trace = b } }

// WithMaxOpStack overrides DefaultMaxOpStack for the SubSet/SuperSet DFS
// walk's stack depth bound.
func WithMaxOpStack(n int) Option { return func(o *Options) { o.MaxOpStack = n } }

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = hclog.NewNullLogger()
	}
	if o.MaxOpStack <= 0 {
		o.MaxOpStack = DefaultMaxOpStack
	}
	return o
}
