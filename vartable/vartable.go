// Package vartable implements the Variable Table (spec §3.2) discovered
// during compiler Phase 1/2/3: variable discovery, depth assignment, and
// the final Table-before-Entity / depth / occurrence / id ordering.
package vartable

import (
	"math"
	"sort"

	"github.com/kevinawalsh/ecsquery/term"
)

// Kind classifies a variable. Every record is created as Table or Entity
// (EnsureTable/EnsureEntity); Unknown is never assigned by this package.
type Kind int

const (
	Unknown Kind = iota
	Table        // a subject variable: binds to a store.Table + row range
	Entity       // a derived (pred/obj, or subject-read-as-entity) variable
)

func (k Kind) String() string {
	switch k {
	case Table:
		return "Table"
	case Entity:
		return "Entity"
	default:
		return "Unknown"
	}
}

// NoDepth is the UINT_MAX sentinel meaning "not yet determined". Every
// variable must leave Phase 2 with a depth other than NoDepth, or
// compilation fails (spec §3.2 invariant).
const NoDepth = uint32(math.MaxUint32)

// Variable is one entry in the table: a stable id (its position, kept in
// sync with slice index by Sort), a name, a kind, an occurrence count, and
// a depth (distance from the root).
type Variable struct {
	ID          int
	Name        string
	Kind        Kind
	Occurrences int
	Depth       uint32
}

type key struct {
	name string
	kind Kind
}

// VarTable is the set of variables discovered for one rule. A variable
// name may have up to two records: a Table-kind record (if it ever
// appeared as a subject) and an Entity-kind record (if it ever appeared in
// predicate or object position) -- spec §3.2's "two records sharing a
// name".
type VarTable struct {
	vars  []*Variable
	index map[key]int // key -> slice index (not ID; index is stable pre-sort)
}

// New returns an empty variable table.
func New() *VarTable {
	return &VarTable{index: make(map[key]int)}
}

// ensure returns the variable record for (name, kind), creating it (with a
// fresh id equal to its current slice position) if absent.
func (t *VarTable) ensure(name string, k Kind) *Variable {
	name = term.Canonical(name)
	ky := key{name, k}
	if i, ok := t.index[ky]; ok {
		return t.vars[i]
	}
	v := &Variable{ID: len(t.vars), Name: name, Kind: k, Depth: NoDepth}
	t.index[ky] = len(t.vars)
	t.vars = append(t.vars, v)
	return v
}

// EnsureTable returns (creating if needed) the Table-kind record for name,
// used when name occurs as a term's subject (Phase 1).
func (t *VarTable) EnsureTable(name string) *Variable {
	return t.ensure(name, Table)
}

// EnsureEntity returns (creating if needed) the Entity-kind record for
// name, used for an occurrence in predicate or object position (Phase 1
// second pass) and for the compiler's internal anonymous registers.
func (t *VarTable) EnsureEntity(name string) *Variable {
	return t.ensure(name, Entity)
}

// Lookup returns the variable record for (name, kind) if one has been
// created, without creating it.
func (t *VarTable) Lookup(name string, k Kind) (*Variable, bool) {
	name = term.Canonical(name)
	i, ok := t.index[key{name, k}]
	if !ok {
		return nil, false
	}
	return t.vars[i], true
}

// Get returns the variable at the given id (valid only after Sort, where
// id == slice position is the invariant).
func (t *VarTable) Get(id int) *Variable { return t.vars[id] }

// Len returns the number of variable records (Table-kind and Entity-kind
// records for the same name both count).
func (t *VarTable) Len() int { return len(t.vars) }

// All returns every variable record, in current table order.
func (t *VarTable) All() []*Variable { return t.vars }

// TableVariables returns every Table-kind record, in current table order.
func (t *VarTable) TableVariables() []*Variable {
	out := make([]*Variable, 0, len(t.vars))
	for _, v := range t.vars {
		if v.Kind == Table {
			out = append(out, v)
		}
	}
	return out
}

// ElectRoot picks the root per spec §3.2: the variable equivalent to "."
// if one exists, else the subject (Table-kind) variable with the most
// occurrences. Returns nil if there are no subject variables at all (the
// rule evaluates a fixed fact set, spec §4.1 Phase 1).
func (t *VarTable) ElectRoot() *Variable {
	if v, ok := t.Lookup(term.ImplicitSubject, Table); ok {
		return v
	}
	var best *Variable
	for _, v := range t.vars {
		if v.Kind != Table {
			continue
		}
		if best == nil || v.Occurrences > best.Occurrences {
			best = v
		}
	}
	return best
}

// Sort applies the spec §3.2 ordering -- primarily by kind (Table before
// Entity), then ascending depth, then descending occurrence count, then
// descending id -- and reassigns ids to match the new positions so that
// "id == position" holds afterward.
func (t *VarTable) Sort() {
	sort.SliceStable(t.vars, func(i, j int) bool {
		a, b := t.vars[i], t.vars[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind // Table(1) before Entity(2); Unknown(0) shouldn't remain
		}
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if a.Occurrences != b.Occurrences {
			return a.Occurrences > b.Occurrences
		}
		return a.ID > b.ID
	})
	t.index = make(map[key]int, len(t.vars))
	for i, v := range t.vars {
		v.ID = i
		t.index[key{v.Name, v.Kind}] = i
	}
}
