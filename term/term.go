// Package term holds the parsed input to the rule compiler: a list of
// terms with predicate/subject/object positions, each either a bound
// entity or a named variable, plus a modifier. Term parsing (turning
// source text into this structure) is an external collaborator, out of
// scope per spec §1.
package term

import "github.com/kevinawalsh/ecsquery/store"

// ImplicitSubject is the canonical name both "." and "This" resolve to;
// they refer to the same implicit subject variable (spec §3.1).
const ImplicitSubject = "."

// Canonical normalizes a variable name so that "." and "This" compare
// equal everywhere in the compiler.
func Canonical(name string) string {
	if name == "This" {
		return ImplicitSubject
	}
	return name
}

// Modifier distinguishes a plain conjunctive term from a negated or
// optional one (spec §3.1).
type Modifier int

const (
	Normal Modifier = iota
	Not
	Optional
)

// Position is one of a term's three slots: predicate, subject, object.
// It is either a bound entity (IsVar() == false) or a named variable.
type Position struct {
	varName string
	entity  store.Entity
	bound   bool
}

// Bound returns a Position holding a fixed entity identifier.
func Bound(e store.Entity) Position {
	return Position{entity: e, bound: true}
}

// Var returns a Position holding a named variable. "." and "This" both
// normalize to the implicit subject variable.
func Var(name string) Position {
	return Position{varName: Canonical(name)}
}

// IsVar reports whether the position holds a variable rather than a fixed
// entity.
func (p Position) IsVar() bool { return !p.bound }

// Name returns the variable name; only meaningful when IsVar() is true.
func (p Position) Name() string { return p.varName }

// Entity returns the bound entity; only meaningful when IsVar() is false.
func (p Position) Entity() store.Entity { return p.entity }

// Term has a predicate, subject, object, a modifier, and a flag saying
// whether the object position is in use (pair) or not (single component
// lookup on the subject). Subject is always set: callers pass
// ImplicitThis() for the implicit "." subject; nothing fills it in when a
// Term is built without one.
type Term struct {
	Predicate Position
	Subject   Position
	Object    Position
	HasObject bool
	Modifier  Modifier
}

// New builds a single-component term: predicate(subject).
func New(pred, subj Position, mod Modifier) Term {
	return Term{Predicate: pred, Subject: subj, Modifier: mod}
}

// NewPair builds a pair term: predicate(subject, object).
func NewPair(pred, subj, obj Position, mod Modifier) Term {
	return Term{Predicate: pred, Subject: subj, Object: obj, HasObject: true, Modifier: mod}
}

// ImplicitThis returns the Position for the implicit "." subject, used
// when a term is constructed without an explicit subject.
func ImplicitThis() Position { return Var(ImplicitSubject) }
