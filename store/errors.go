package store

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// CompileError is the taxonomy of synchronous errors returned from
// compile(terms), per spec §6.3/§7. The offending term or variable name is
// attached so a host can report a useful diagnostic.
type CompileError struct {
	Kind   CompileErrorKind
	Detail string
	cause  error
}

// CompileErrorKind enumerates the compile error taxonomy named in spec §6.3.
type CompileErrorKind int

const (
	ErrNoTerms CompileErrorKind = iota
	ErrOnlyNegatedTerms
	ErrTooManyVariables
	ErrUnconstrainedVariable
	ErrMissingPredicateVarInNot
	ErrMissingObjectVarInNot
)

func (k CompileErrorKind) String() string {
	switch k {
	case ErrNoTerms:
		return "rule has no terms"
	case ErrOnlyNegatedTerms:
		return "rule contains only negated terms"
	case ErrTooManyVariables:
		return "too many variables"
	case ErrUnconstrainedVariable:
		return "unconstrained variable"
	case ErrMissingPredicateVarInNot:
		return "missing predicate variable in Not term"
	case ErrMissingObjectVarInNot:
		return "missing object variable in Not term"
	default:
		return "unknown compile error"
	}
}

func (e *CompileError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Detail)
}

func (e *CompileError) Unwrap() error { return e.cause }

// NewCompileError builds a CompileError, attaching detail (typically a term
// or variable name) via pkg/errors so callers using errors.Cause still find
// the CompileError underneath.
func NewCompileError(kind CompileErrorKind, detail string) error {
	ce := &CompileError{Kind: kind, Detail: detail}
	return errors.WithStack(ce)
}

// ErrorCollector aggregates every problem found during a single compile
// pass (Phase 2 may discover several unconstrained variables, the Not-term
// check may discover several malformed Not terms) into one multierror, so a caller
// sees all of them instead of bailing at the first.
type ErrorCollector struct {
	err *multierror.Error
}

func (c *ErrorCollector) Add(err error) {
	if err == nil {
		return
	}
	c.err = multierror.Append(c.err, err)
}

func (c *ErrorCollector) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err.ErrorOrNil()
}
