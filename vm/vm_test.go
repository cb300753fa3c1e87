package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinawalsh/ecsquery/compiler"
	"github.com/kevinawalsh/ecsquery/memstore"
	"github.com/kevinawalsh/ecsquery/store"
	"github.com/kevinawalsh/ecsquery/term"
	"github.com/kevinawalsh/ecsquery/vartable"
)

// varID returns the id a compiled rule assigned to name/kind, failing the
// test if no such variable was ever referenced.
func varID(t *testing.T, rule *compiler.Rule, name string, kind vartable.Kind) int {
	t.Helper()
	for i := 0; i < rule.Vars.Len(); i++ {
		v := rule.Vars.Get(i)
		if v.Name == term.Canonical(name) && v.Kind == kind {
			return i
		}
	}
	t.Fatalf("no %s variable named %q in compiled rule", kind, name)
	return -1
}

// TestIteratorResolvesHomePlanet exercises spec §8's worked example:
// HomePlanet(Luke, ?) resolves to Tatooine, and only Tatooine.
func TestIteratorResolvesHomePlanet(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.HomePlanet), term.Bound(memstore.Luke), term.Var("P"), term.Normal),
	}
	rule, err := compiler.Compile(terms, s)
	require.NoError(t, err)

	pID := varID(t, rule, "P", vartable.Entity)

	it := Iter(rule)
	require.True(t, it.Next())
	assert.Equal(t, memstore.Tatooine, it.GetVar(pID))
	assert.False(t, it.Next(), "Luke has exactly one home planet")
}

// TestIteratorResolvesMutualLikes exercises the spec §8 Likes facts: Luke
// likes Leia, and Leia likes Luke, each discoverable from the other side.
// Likes carries neither Final nor Transitive, so the compiler routes it
// through the IsA-substitution path (preparePredicate's anon SubSet) ahead
// of the main filter.
func TestIteratorResolvesMutualLikes(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	lukeTerms := []term.Term{
		term.NewPair(term.Bound(memstore.Likes), term.Bound(memstore.Luke), term.Var("Y"), term.Normal),
	}
	rule, err := compiler.Compile(lukeTerms, s)
	require.NoError(t, err)
	yID := varID(t, rule, "Y", vartable.Entity)

	it := Iter(rule)
	require.True(t, it.Next())
	assert.Equal(t, memstore.Leia, it.GetVar(yID))
	assert.False(t, it.Next())

	leiaTerms := []term.Term{
		term.NewPair(term.Bound(memstore.Likes), term.Bound(memstore.Leia), term.Var("Y"), term.Normal),
	}
	rule2, err := compiler.Compile(leiaTerms, s)
	require.NoError(t, err)
	yID2 := varID(t, rule2, "Y", vartable.Entity)

	it2 := Iter(rule2)
	require.True(t, it2.Next())
	assert.Equal(t, memstore.Luke, it2.GetVar(yID2))
}

// TestIteratorResolvesEnemyNegation exercises a rule with a trailing Not
// term: nobody in the fixture is recorded as anybody's Enemy, so the
// negation should always pass and the positive term's solution should still
// come through unaffected.
func TestIteratorResolvesEnemyNegation(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.HomePlanet), term.Bound(memstore.Luke), term.Var("P"), term.Normal),
		term.NewPair(term.Bound(memstore.Enemy), term.Bound(memstore.Luke), term.Var("P"), term.Not),
	}
	rule, err := compiler.Compile(terms, s)
	require.NoError(t, err)

	pID := varID(t, rule, "P", vartable.Entity)

	it := Iter(rule)
	require.True(t, it.Next())
	assert.Equal(t, memstore.Tatooine, it.GetVar(pID))
}

// TestIteratorOptionalTermNeverMatchingTerminates exercises a rule with a
// single Optional term that never matches (nobody in the fixture carries
// an Enemy fact): it must yield exactly one solution with its variable
// left unbound, and draining it to Next() == false must actually
// terminate rather than oscillate forever between the Optional
// instruction and its forward fallthrough.
func TestIteratorOptionalTermNeverMatchingTerminates(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.Enemy), term.Bound(memstore.Luke), term.Var("E"), term.Optional),
	}
	rule, err := compiler.Compile(terms, s)
	require.NoError(t, err)
	eID := varID(t, rule, "E", vartable.Entity)

	it := Iter(rule)
	require.True(t, it.Next(), "an Optional term that never matches still yields once, unbound")
	assert.Equal(t, store.Wildcard, it.GetVar(eID))
	assert.False(t, it.Next(), "draining past the single solution must terminate, not loop forever")
}

// TestIteratorOptionalTermMatchingDoesNotDuplicate exercises an Optional
// term that does match: Luke likes Leia. It must yield exactly the one
// real match (no extra unbound phantom solution once backtracking
// exhausts it).
func TestIteratorOptionalTermMatchingDoesNotDuplicate(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(memstore.Likes), term.Bound(memstore.Luke), term.Var("Y"), term.Optional),
	}
	rule, err := compiler.Compile(terms, s)
	require.NoError(t, err)
	yID := varID(t, rule, "Y", vartable.Entity)

	it := Iter(rule)
	require.True(t, it.Next())
	assert.Equal(t, memstore.Leia, it.GetVar(yID))
	assert.False(t, it.Next(), "Luke likes exactly one person; no phantom unbound solution follows")
}

// TestIteratorEachBindsNotCompanionFromTable exercises a variable that is
// both a positive term's subject (giving it a written Table-kind
// companion) and, separately, only ever referenced by name inside a Not
// term's object position (an Entity-kind record markFilterWrites never
// touches). The epilogue's Each must bind that Entity-kind register to the
// companion's actual bound entity, not store.Wildcard, for every solution.
func TestIteratorEachBindsNotCompanionFromTable(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(store.IsA), term.Var("X"), term.Bound(memstore.Droid), term.Normal),
		term.NewPair(term.Bound(memstore.Enemy), term.Bound(memstore.Luke), term.Var("X"), term.Not),
	}
	rule, err := compiler.Compile(terms, s)
	require.NoError(t, err)
	xTable := varID(t, rule, "X", vartable.Table)
	xEntity := varID(t, rule, "X", vartable.Entity)

	it := Iter(rule)
	var gotTable, gotEntity []store.Entity
	for it.Next() {
		gotTable = append(gotTable, it.GetVar(xTable))
		gotEntity = append(gotEntity, it.GetVar(xEntity))
	}
	assert.ElementsMatch(t, []store.Entity{memstore.Droid, memstore.R2D2, memstore.C3PO}, gotTable)
	assert.Equal(t, gotTable, gotEntity, "the Not-only Entity-kind companion must mirror the Table-kind variable's binding, not wildcard")
}

// TestIteratorWalksIsATransitiveClosure exercises IsA(X, Character): a
// TransitiveSelf predicate with the object bound to Character and the
// subject unknown, so the VM must enumerate Character's entire descendant
// closure (spec §8's celestial-body/character hierarchy), including
// Character itself via the reflexive TransitiveSelf case.
func TestIteratorWalksIsATransitiveClosure(t *testing.T) {
	s, err := memstore.StarWars()
	require.NoError(t, err)

	terms := []term.Term{
		term.NewPair(term.Bound(store.IsA), term.Var("X"), term.Bound(memstore.Character), term.Normal),
	}
	rule, err := compiler.Compile(terms, s)
	require.NoError(t, err)

	xID := varID(t, rule, "X", vartable.Table)

	it := Iter(rule)
	var got []store.Entity
	for it.Next() {
		got = append(got, it.GetVar(xID))
	}
	assert.ElementsMatch(t, []store.Entity{
		memstore.Character, // reflexive, TransitiveSelf
		memstore.Human, memstore.Droid,
		memstore.Luke, memstore.Leia,
		memstore.R2D2, memstore.C3PO,
	}, got)
}
