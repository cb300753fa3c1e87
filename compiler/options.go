package compiler

import "github.com/hashicorp/go-hclog"

// DefaultMaxVariables is the implementation-defined cap on distinct
// variable records per rule (spec §6.3 "too many variables").
const DefaultMaxVariables = 256

// Options configures a single Compile call. Zero value is valid; Compile
// applies defaults (a null logger, DefaultMaxVariables).
type Options struct {
	Logger       hclog.Logger
	MaxVariables int
}

// Option mutates an Options value, following the small-options-struct
// style used across the retrieved corpus rather than a config file.
type Option func(*Options)

// WithLogger sets the hclog.Logger handed to the compiler (named
// "compiler"). Compile writes no log entries to it.
func WithLogger(l hclog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMaxVariables overrides the variable-count cap.
func WithMaxVariables(n int) Option {
	return func(o *Options) { o.MaxVariables = n }
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = hclog.NewNullLogger()
	}
	if o.MaxVariables <= 0 {
		o.MaxVariables = DefaultMaxVariables
	}
	return o
}
