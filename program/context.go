package program

import "github.com/kevinawalsh/ecsquery/store"

// smallStackInline is the inline capacity recommended by spec §4.3 to
// avoid allocation in typical shallow hierarchies; deeper walks spill to a
// heap-backed slice.
const smallStackInline = 16

// smallStack is a stack with small-array optimization: the first
// smallStackInline entries live inline, further pushes spill to a heap
// slice. Used by SubSet/SuperSet operation contexts for their DFS walk
// (spec §4.3 "The small-stack (inline capacity 16) with heap spill").
type smallStack[T any] struct {
	inline [smallStackInline]T
	n      int
	spill  []T
}

func (s *smallStack[T]) Push(v T) {
	if s.n < smallStackInline {
		s.inline[s.n] = v
	} else {
		s.spill = append(s.spill, v)
	}
	s.n++
}

func (s *smallStack[T]) Pop() (T, bool) {
	var zero T
	if s.n == 0 {
		return zero, false
	}
	s.n--
	if s.n >= smallStackInline {
		v := s.spill[len(s.spill)-1]
		s.spill = s.spill[:len(s.spill)-1]
		return v, true
	}
	return s.inline[s.n], true
}

func (s *smallStack[T]) Top() (*T, bool) {
	if s.n == 0 {
		return nil, false
	}
	if s.n-1 >= smallStackInline {
		return &s.spill[s.n-1-smallStackInline], true
	}
	return &s.inline[s.n-1], true
}

func (s *smallStack[T]) Len() int { return s.n }

func (s *smallStack[T]) Reset() {
	s.n = 0
	s.spill = s.spill[:0]
}

// subsetFrame is one level of a SubSet DFS walk: the tables matching
// (predicate, currentObject), a cursor into them, the table currently
// being enumerated, and the row being expanded next (spec §3.5/§4.2).
type subsetFrame struct {
	Entries     []store.IndexEntry
	EntryCursor int
	Table       store.Table
	Row         int
}

// supersetFrame is one level of a SuperSet DFS walk: the entity currently
// being expanded, its home table, and the column within that table at
// which the next (predicate, *) pair is sought (spec §3.5/§4.2).
type supersetFrame struct {
	Entity store.Entity
	Table  store.Table
	Column int
}

// OpContext is the per-instruction iteration state, spec §3.5. Exactly one
// of the embedded variants is meaningful for a given instruction, selected
// by the instruction's Kind.
type OpContext struct {
	// Select
	Entries     []store.IndexEntry
	EntryCursor int
	Column      int

	// With: the single table the filter was resolved against, and
	// whether this context has already yielded its one possible match.
	Table   store.Table
	Matched bool

	// SubSet
	SubSetStack smallStack[subsetFrame]

	// SuperSet
	SuperSetStack smallStack[supersetFrame]

	// Each: Row is the cursor into [Offset, Offset+Count) of Table's dense
	// entity vector (the companion Table-kind variable's bound range); Table
	// is shared with the With variant above since only one kind of context
	// ever applies to a given instruction.
	Row    int
	Offset int
	Count  int

	// SetJmp
	Label int

	initialized bool
}

// NewSubsetFrame builds a DFS stack level for a SubSet walk from the
// given set of matching (table, column) entries. Exported as a
// constructor, not a type, since subsetFrame's fields are already
// exported and vm only ever needs to push/inspect a value, never name
// the type.
func NewSubsetFrame(entries []store.IndexEntry) subsetFrame {
	return subsetFrame{Entries: entries}
}

// NewSupersetFrame builds a DFS stack level for a SuperSet walk expanding
// entity e, whose home table is tbl.
func NewSupersetFrame(e store.Entity, tbl store.Table) supersetFrame {
	return supersetFrame{Entity: e, Table: tbl}
}

// ContextSet is the Iterator-owned, one-entry-per-instruction parallel
// array of OpContext values.
type ContextSet struct {
	ctx []OpContext
}

// NewContextSet allocates a context array sized for opCount instructions.
func NewContextSet(opCount int) *ContextSet {
	return &ContextSet{ctx: make([]OpContext, opCount)}
}

// At returns the context for instruction op.
func (c *ContextSet) At(op int) *OpContext { return &c.ctx[op] }
