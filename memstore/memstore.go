// Package memstore is a go-memdb-backed reference implementation of
// store.Store, used by this repo's own tests and as a worked example of
// the seam a host ECS plugs into (spec §6.1). Grounded on the teacher's
// fact-table bookkeeping (kevinawalsh/datalog's Database), generalized
// from a flat predicate->facts map to typed, column-indexed tables.
package memstore

import (
	"sort"

	"github.com/hashicorp/go-memdb"

	"github.com/kevinawalsh/ecsquery/store"
)

// table is the memstore.Store implementation of store.Table: a fixed,
// sorted component-id vector shared by every entity added under it.
type table struct {
	typ      []store.ComponentID
	entities []store.Entity
}

func (t *table) Type() []store.ComponentID { return t.typ }
func (t *table) Entities() []store.Entity  { return t.entities }
func (t *table) Count() int                { return len(t.entities) }

func (t *table) Column(id store.ComponentID) int {
	for i, c := range t.typ {
		if store.ComponentID(c).IsPair() != id.IsPair() {
			continue
		}
		if !id.IsPair() {
			if c == id || id.WildcardID() {
				return i
			}
			continue
		}
		if (id.Predicate() == store.Wildcard || id.Predicate() == c.Predicate()) &&
			(id.Object() == store.Wildcard || id.Object() == c.Object()) {
			return i
		}
	}
	return -1
}

// record is the row go-memdb stores per entity: which table it lives in
// and at which row, plus the entity's own attribute set (used for
// HasAttribute lookups when the entity itself is a predicate).
type record struct {
	Entity     store.Entity
	Table      *table
	Row        int
	Attributes map[store.Attribute]bool
}

const recordTable = "records"

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		recordTable: {
			Name: recordTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.UintFieldIndex{Field: "Entity"},
				},
			},
		},
	},
}

// Store is the reference store.Store implementation.
type Store struct {
	db     *memdb.MemDB
	tables []*table
	index  map[store.ComponentID][]store.IndexEntry
}

// New returns an empty Store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, index: make(map[store.ComponentID][]store.IndexEntry)}, nil
}

// AddTable registers a new table with the given type vector and returns
// it; callers add entities to it via Store.Insert.
func (s *Store) AddTable(typ ...store.ComponentID) *table {
	sorted := append([]store.ComponentID(nil), typ...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	tbl := &table{typ: sorted}
	s.tables = append(s.tables, tbl)
	for col, id := range sorted {
		s.index[id] = append(s.index[id], store.IndexEntry{Table: tbl, Column: col})
	}
	return tbl
}

// Insert adds entity e as a new row of tbl, with attrs recorded against
// it for later HasAttribute checks (used when e itself is a predicate).
func (s *Store) Insert(tbl *table, e store.Entity, attrs ...store.Attribute) error {
	tbl.entities = append(tbl.entities, e)
	row := len(tbl.entities) - 1
	set := make(map[store.Attribute]bool, len(attrs))
	for _, a := range attrs {
		set[a] = true
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(recordTable, &record{Entity: e, Table: tbl, Row: row, Attributes: set}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) lookupRecord(e store.Entity) *record {
	txn := s.db.Txn(false)
	raw, err := txn.First(recordTable, "id", uint64(e))
	if err != nil || raw == nil {
		return nil
	}
	return raw.(*record)
}

// Lookup implements store.IdIndex: every table registered under id. An id
// without a wildcard half is answered from its exact bucket; an id with a
// wildcard half is answered by scanning every table's type vector for
// components whose concrete halves match.
func (s *Store) Lookup(id store.ComponentID) []store.IndexEntry {
	if !id.WildcardID() {
		return s.index[id]
	}
	var out []store.IndexEntry
	for _, tbl := range s.tables {
		for col, c := range tbl.typ {
			if c.IsPair() != id.IsPair() {
				continue
			}
			if id.IsPair() {
				if (id.Predicate() == store.Wildcard || id.Predicate() == c.Predicate()) &&
					(id.Object() == store.Wildcard || id.Object() == c.Object()) {
					out = append(out, store.IndexEntry{Table: tbl, Column: col})
				}
			} else {
				out = append(out, store.IndexEntry{Table: tbl, Column: col})
			}
		}
	}
	return out
}

// Record implements store.Store.
func (s *Store) Record(e store.Entity) (store.EntityRecord, bool) {
	r := s.lookupRecord(e)
	if r == nil {
		return store.EntityRecord{}, false
	}
	return store.EntityRecord{Table: r.Table, Row: r.Row}, true
}

// IsAlive implements store.Store. memstore never recycles entity indices,
// so liveness reduces to presence.
func (s *Store) IsAlive(e store.Entity) bool { return s.lookupRecord(e) != nil }

// IsValid implements store.Store.
func (s *Store) IsValid(e store.Entity) bool { return e != store.Wildcard }

// HasAttribute implements store.Store.
func (s *Store) HasAttribute(p store.Entity, attr store.Attribute) bool {
	r := s.lookupRecord(p)
	if r == nil {
		return false
	}
	return r.Attributes[attr]
}

// PairMatch implements store.Store.
func (s *Store) PairMatch(candidate, pattern store.ComponentID) bool {
	if !pattern.IsPair() || !candidate.IsPair() {
		return candidate == pattern
	}
	return (pattern.Predicate() == store.Wildcard || pattern.Predicate() == candidate.Predicate()) &&
		(pattern.Object() == store.Wildcard || pattern.Object() == candidate.Object())
}
