package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileErrorMessages(t *testing.T) {
	cases := []struct {
		kind CompileErrorKind
		want string
	}{
		{ErrNoTerms, "rule has no terms"},
		{ErrOnlyNegatedTerms, "rule contains only negated terms"},
		{ErrTooManyVariables, "too many variables"},
		{ErrUnconstrainedVariable, "unconstrained variable"},
		{ErrMissingPredicateVarInNot, "missing predicate variable in Not term"},
		{ErrMissingObjectVarInNot, "missing object variable in Not term"},
	}
	for _, c := range cases {
		err := NewCompileError(c.kind, "")
		assert.EqualError(t, err, c.want)
	}
}

func TestCompileErrorDetailIsAppended(t *testing.T) {
	err := NewCompileError(ErrUnconstrainedVariable, "X")
	assert.EqualError(t, err, "unconstrained variable: X")
}

func TestErrorCollectorAggregatesAndIgnoresNil(t *testing.T) {
	var c ErrorCollector
	c.Add(nil)
	assert.Nil(t, c.Err())

	c.Add(NewCompileError(ErrUnconstrainedVariable, "X"))
	c.Add(NewCompileError(ErrUnconstrainedVariable, "Y"))
	err := c.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "X")
	assert.Contains(t, err.Error(), "Y")
}
