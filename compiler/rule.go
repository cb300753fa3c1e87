package compiler

import (
	"github.com/kevinawalsh/ecsquery/program"
	"github.com/kevinawalsh/ecsquery/store"
	"github.com/kevinawalsh/ecsquery/term"
	"github.com/kevinawalsh/ecsquery/vartable"
)

// Rule is the compiled, immutable output of Compile (spec §3.5 Lifetimes):
// it owns its program, variable table, variable-name mirror and the source
// terms; it keeps no per-term subject-variable lookup. A Rule may be
// shared across iterators running on the same thread (spec §5).
type Rule struct {
	Program *program.Program
	Vars    *vartable.VarTable
	Store   store.Store
	Terms   []term.Term

	// names mirrors Vars for cheap O(1) lookup by id without re-walking
	// the variable table; rebuilt once after Phase 3 sorting.
	names []string
	kinds []vartable.Kind
}

// VarName implements program.VarNamer.
func (r *Rule) VarName(id uint8) string {
	if int(id) >= len(r.names) {
		return "?"
	}
	return r.names[id]
}

// VarIsTable implements program.VarNamer.
func (r *Rule) VarIsTable(id uint8) bool {
	if int(id) >= len(r.kinds) {
		return false
	}
	return r.kinds[id] == vartable.Table
}

// Dump renders the compiled program in the stable textual form (spec
// §6.4).
func (r *Rule) Dump() string {
	return program.Dump(r.Program, r)
}

func (r *Rule) buildMirror() {
	n := r.Vars.Len()
	r.names = make([]string, n)
	r.kinds = make([]vartable.Kind, n)
	for _, v := range r.Vars.All() {
		r.names[v.ID] = v.Name
		r.kinds[v.ID] = v.Kind
	}
}
