package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinawalsh/ecsquery/memstore"
	"github.com/kevinawalsh/ecsquery/program"
	"github.com/kevinawalsh/ecsquery/store"
	"github.com/kevinawalsh/ecsquery/term"
)

func TestCompileRejectsNoTerms(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	_, err = Compile(nil, s)
	var ce *store.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, store.ErrNoTerms, ce.Kind)
}

func TestCompileRejectsOnlyNegatedTerms(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.HomePlanet), term.Var("X"), term.Var("Y"), term.Not),
	}
	_, err = Compile(terms, s)
	var ce *store.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, store.ErrOnlyNegatedTerms, ce.Kind)
}

func TestCompileRejectsUnconstrainedVariable(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	// W is the subject of a term that shares no variable with any term on
	// the root ("."), so it can never be assigned a depth from the root: it
	// floats free. (Z is reached as the root term's object.)
	terms := []term.Term{
		term.NewPair(term.Bound(memstore.HomePlanet), term.ImplicitThis(), term.Var("Z"), term.Normal),
		term.New(term.Var("Z"), term.Var("W"), term.Normal),
	}
	_, err = Compile(terms, s)
	var ce *store.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, store.ErrUnconstrainedVariable, ce.Kind)
}

func TestCompileRejectsMissingVariableInNotTerm(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.HomePlanet), term.ImplicitThis(), term.Var("P"), term.Normal),
		term.NewPair(term.Bound(memstore.Enemy), term.ImplicitThis(), term.Var("E"), term.Not),
	}
	_, err = Compile(terms, s)
	var ce *store.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, store.ErrMissingObjectVarInNot, ce.Kind)
}

// TestCompileRejectsNotTermBeforeItsVariable exercises the order-dependent
// half of validateNotTerms: a Not term referencing a variable that only a
// later term establishes must be rejected even though that variable does
// occur somewhere else in the term list, since this compiler's emission
// (and so its register reads) is strictly left to right.
func TestCompileRejectsNotTermBeforeItsVariable(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.Enemy), term.Bound(memstore.Luke), term.Var("X"), term.Not),
		term.NewPair(term.Bound(memstore.HomePlanet), term.ImplicitThis(), term.Var("X"), term.Normal),
	}
	_, err = Compile(terms, s)
	var ce *store.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, store.ErrMissingObjectVarInNot, ce.Kind)
}

func TestCompileRejectsTooManyVariables(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.Likes), term.ImplicitThis(), term.Var("Y"), term.Normal),
	}
	_, err = Compile(terms, s, WithMaxVariables(1))
	var ce *store.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, store.ErrTooManyVariables, ce.Kind)
}

// TestCompileHomePlanetQuery exercises a plain single-object query:
// HomePlanet(., P), the spec §8 "what's Luke's home planet" shape.
func TestCompileHomePlanetQuery(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.HomePlanet), term.ImplicitThis(), term.Var("P"), term.Normal),
	}
	rule, err := Compile(terms, s)
	require.NoError(t, err)
	require.NotNil(t, rule.Program)

	// Two variables: the implicit subject (Table-kind) and P (Entity-kind).
	require.Equal(t, 2, rule.Vars.Len())

	var sawYield, sawSelectOrWith bool
	for _, ins := range rule.Program.Instructions {
		switch ins.Kind {
		case program.Yield:
			sawYield = true
		case program.Select, program.With:
			sawSelectOrWith = true
		}
	}
	assert.True(t, sawYield, "program must terminate with Yield")
	assert.True(t, sawSelectOrWith, "a literal-predicate pair term compiles to Select or With")

	// HomePlanet is Final, so no SubSet substitution instruction should
	// have been emitted ahead of it.
	for _, ins := range rule.Program.Instructions {
		assert.NotEqual(t, program.SubSet, ins.Kind, "Final predicate must skip IsA substitution")
	}
}

// TestCompileIsATransitiveQuery exercises IsA(., Character): a Transitive,
// TransitiveSelf predicate with the object bound, subject unknown -- rule 6
// (SubSet enumerating descendants).
func TestCompileIsATransitiveQuery(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(store.IsA), term.ImplicitThis(), term.Bound(memstore.Character), term.Normal),
	}
	rule, err := Compile(terms, s)
	require.NoError(t, err)

	var sawSubSet bool
	for _, ins := range rule.Program.Instructions {
		if ins.Kind == program.SubSet {
			sawSubSet = true
		}
	}
	assert.True(t, sawSubSet, "transitive predicate with known object, unknown subject compiles to SubSet")
}

// TestCompileNotTerm exercises a rule with a trailing Not term whose
// variables are all bound by an earlier positive term.
func TestCompileNotTerm(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.HomePlanet), term.ImplicitThis(), term.Var("P"), term.Normal),
		term.NewPair(term.Bound(memstore.Enemy), term.ImplicitThis(), term.Var("P"), term.Not),
	}
	rule, err := Compile(terms, s)
	require.NoError(t, err)

	var sawNot bool
	for _, ins := range rule.Program.Instructions {
		if ins.Kind == program.Not {
			sawNot = true
			assert.Equal(t, program.NoReg, ins.OutReg, "Not never writes a register")
		}
	}
	assert.True(t, sawNot)
}

func TestRuleDumpIncludesEveryInstruction(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.HomePlanet), term.ImplicitThis(), term.Var("P"), term.Normal),
	}
	rule, err := Compile(terms, s)
	require.NoError(t, err)

	dump := rule.Dump()
	lines := 0
	for _, c := range dump {
		if c == '\n' {
			lines++
		}
	}
	assert.Equal(t, len(rule.Program.Instructions), lines)
}
