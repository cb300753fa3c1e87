package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinawalsh/ecsquery/store"
)

func TestStarWarsFixtureBasics(t *testing.T) {
	s, err := StarWars()
	require.NoError(t, err)

	rec, ok := s.Record(Luke)
	require.True(t, ok)
	assert.Equal(t, Tatooine, rec.Table.Type()[1].Object())

	assert.True(t, s.IsAlive(Luke))
	assert.False(t, s.IsAlive(store.Entity(99999)))

	assert.True(t, s.HasAttribute(store.IsA, store.Transitive))
	assert.True(t, s.HasAttribute(store.IsA, store.TransitiveSelf))
	assert.True(t, s.HasAttribute(HomePlanet, store.Final))
	assert.False(t, s.HasAttribute(Likes, store.Final))
}

func TestStarWarsIsAHierarchyLookup(t *testing.T) {
	s, err := StarWars()
	require.NoError(t, err)

	// Human and Droid both descend directly from Character.
	entries := s.Lookup(store.Pair(store.IsA, Character))
	require.Len(t, entries, 2)
	var kinds []store.Entity
	for _, e := range entries {
		kinds = append(kinds, e.Table.Entities()[0])
	}
	assert.ElementsMatch(t, []store.Entity{Human, Droid}, kinds)

	// Luke and Leia both descend directly from Human.
	entries = s.Lookup(store.Pair(store.IsA, Human))
	require.Len(t, entries, 2)
	var people []store.Entity
	for _, e := range entries {
		people = append(people, e.Table.Entities()[0])
	}
	assert.ElementsMatch(t, []store.Entity{Luke, Leia}, people)
}

func TestPairMatchHonorsWildcardHalves(t *testing.T) {
	s, err := StarWars()
	require.NoError(t, err)

	concrete := store.Pair(HomePlanet, Tatooine)
	assert.True(t, s.PairMatch(concrete, store.Pair(store.Wildcard, Tatooine)))
	assert.True(t, s.PairMatch(concrete, store.Pair(HomePlanet, store.Wildcard)))
	assert.False(t, s.PairMatch(concrete, store.Pair(HomePlanet, Alderaan)))
}
