package memstore

import "github.com/kevinawalsh/ecsquery/store"

// Entity handles assigned by StarWars, exported so tests can reference
// them directly rather than re-deriving indices.
const (
	CelestialBody store.Entity = 10 + iota
	Planet
	Moon
	Character
	Human
	Droid

	Tatooine
	Alderaan
	Yavin4

	Luke
	Leia
	R2D2
	C3PO

	HomePlanet
	Enemy
	Likes
)

// StarWars populates a fresh Store with the worked example dataset (spec
// §8): an IsA hierarchy of celestial bodies and characters, three
// planets/moons, four named characters, and HomePlanet/Likes facts among
// them. Enemy is registered as a predicate but no entity carries an Enemy
// fact.
func StarWars() (*Store, error) {
	s, err := New()
	if err != nil {
		return nil, err
	}

	predicates := s.AddTable()
	if err := s.Insert(predicates, store.IsA, store.Transitive, store.TransitiveSelf); err != nil {
		return nil, err
	}
	// HomePlanet and Enemy are Final: they name no more specific
	// predicate, so the compiler skips IsA substitution for them. Likes
	// is left non-Final to exercise that substitution path even though
	// this fixture defines no sub-predicate of it.
	for _, p := range []store.Entity{HomePlanet, Enemy} {
		if err := s.Insert(predicates, p, store.Final); err != nil {
			return nil, err
		}
	}
	if err := s.Insert(predicates, Likes); err != nil {
		return nil, err
	}

	// IsA hierarchy: each entity's own table carries a pair component
	// (IsA, parent) naming its direct parent.
	bodies := s.AddTable()
	if err := s.Insert(bodies, CelestialBody); err != nil {
		return nil, err
	}
	planetKind := s.AddTable(store.Pair(store.IsA, CelestialBody))
	if err := s.Insert(planetKind, Planet); err != nil {
		return nil, err
	}
	moonKind := s.AddTable(store.Pair(store.IsA, CelestialBody))
	if err := s.Insert(moonKind, Moon); err != nil {
		return nil, err
	}
	characters := s.AddTable()
	if err := s.Insert(characters, Character); err != nil {
		return nil, err
	}
	humanKind := s.AddTable(store.Pair(store.IsA, Character))
	if err := s.Insert(humanKind, Human); err != nil {
		return nil, err
	}
	droidKind := s.AddTable(store.Pair(store.IsA, Character))
	if err := s.Insert(droidKind, Droid); err != nil {
		return nil, err
	}

	planets := s.AddTable(store.Pair(store.IsA, Planet))
	for _, p := range []store.Entity{Tatooine, Alderaan} {
		if err := s.Insert(planets, p); err != nil {
			return nil, err
		}
	}
	moons := s.AddTable(store.Pair(store.IsA, Moon))
	if err := s.Insert(moons, Yavin4); err != nil {
		return nil, err
	}

	// Luke and Leia: each a distinct archetype (their HomePlanet and
	// Likes pair components name different concrete entities, so they
	// cannot share one table's type vector).
	lukeTbl := s.AddTable(
		store.Pair(store.IsA, Human),
		store.Pair(HomePlanet, Tatooine),
		store.Pair(Likes, Leia),
	)
	if err := s.Insert(lukeTbl, Luke); err != nil {
		return nil, err
	}
	leiaTbl := s.AddTable(
		store.Pair(store.IsA, Human),
		store.Pair(HomePlanet, Alderaan),
		store.Pair(Likes, Luke),
	)
	if err := s.Insert(leiaTbl, Leia); err != nil {
		return nil, err
	}

	// Droids: R2D2 and C3PO, no home planet.
	droids := s.AddTable(store.Pair(store.IsA, Droid))
	for _, d := range []store.Entity{R2D2, C3PO} {
		if err := s.Insert(droids, d); err != nil {
			return nil, err
		}
	}

	return s, nil
}
