// Package compiler implements the rule compiler (spec §4.1): variable
// scanning, depth assignment, ordering, and instruction emission. It is
// grounded on the teacher's (kevinawalsh/datalog) Clause.Safe() safety
// check and Literal variant-tag bookkeeping, generalized from "is every
// head variable bound by the body" to "is every variable reachable from
// the root at a finite depth".
package compiler

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/kevinawalsh/ecsquery/program"
	"github.com/kevinawalsh/ecsquery/store"
	"github.com/kevinawalsh/ecsquery/term"
	"github.com/kevinawalsh/ecsquery/vartable"
)

// Compile turns a parsed term list into an immutable Rule, or a
// store.CompileError (spec §6.3).
func Compile(terms []term.Term, st store.Store, opts ...Option) (*Rule, error) {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	o = o.withDefaults()

	if len(terms) == 0 {
		return nil, store.NewCompileError(store.ErrNoTerms, "")
	}
	onlyNegated := true
	for _, t := range terms {
		if t.Modifier != term.Not {
			onlyNegated = false
			break
		}
	}
	if onlyNegated {
		return nil, store.NewCompileError(store.ErrOnlyNegatedTerms, "")
	}

	c := &compileState{
		terms:        terms,
		store:        st,
		vars:         vartable.New(),
		logger:       o.Logger.Named("compiler"),
		maxVars:      o.MaxVariables,
		subjectTerms: make(map[string][]int),
		written:      make(map[int]bool),
		b:            program.NewBuilder(),
		prev:         -1,
	}

	if err := c.phase1(); err != nil {
		return nil, err
	}
	if c.vars.Len() > c.maxVars {
		return nil, store.NewCompileError(store.ErrTooManyVariables, fmt.Sprintf("%d variables", c.vars.Len()))
	}
	if err := c.validateNotTerms(); err != nil {
		return nil, err
	}
	if err := c.phase2(); err != nil {
		return nil, err
	}
	c.vars.Sort() // Phase 3

	c.emitInput()
	if err := c.phase4(); err != nil {
		return nil, err
	}

	rule := &Rule{
		Program: c.b.Build(),
		Vars:    c.vars,
		Store:   st,
		Terms:   terms,
	}
	rule.buildMirror()
	return rule, nil
}

// compileState carries every piece of mutable state threaded through the
// four compile phases.
type compileState struct {
	terms  []term.Term
	store  store.Store
	vars   *vartable.VarTable
	logger hclog.Logger

	maxVars int

	// subjectTerms maps a variable name to the indices of terms where it
	// occurs as the subject; built during Phase 1, consumed by Phase 2's
	// depth walk.
	subjectTerms map[string][]int

	// written tracks, during Phase 4 emission, whether a variable id's
	// register currently holds a value.
	written map[int]bool

	b    *program.Builder
	prev int // index of the most recently emitted instruction in the default chain

	root *vartable.Variable

	anonCounter int
}

// phase1 discovers every variable referenced by terms, classifying
// subjects as Table-kind and predicate/object occurrences as Entity-kind
// (spec §4.1 Phase 1).
func (c *compileState) phase1() error {
	for i, t := range c.terms {
		if t.Subject.IsVar() {
			name := t.Subject.Name()
			v := c.vars.EnsureTable(name)
			v.Occurrences++
			c.subjectTerms[name] = append(c.subjectTerms[name], i)
		}
	}
	for _, t := range c.terms {
		if t.Predicate.IsVar() {
			v := c.vars.EnsureEntity(t.Predicate.Name())
			v.Occurrences++
		}
		if t.HasObject && t.Object.IsVar() {
			v := c.vars.EnsureEntity(t.Object.Name())
			v.Occurrences++
		}
	}
	return nil
}

// validateNotTerms enforces spec §4.1's Not-modifier safety rule: every
// variable a Not term uses in predicate or object position must be a
// matching, already-declared variable -- bound by some earlier non-Not
// term, not merely one occurring anywhere in the term list. Unlike the
// teacher's Clause.Safe() (order-independent: SLD resolution proves a
// clause's body in any order), this compiler emits instructions strictly
// in term order, and a Not instruction reads whatever its operand
// registers hold as of its own position in the program, so "declared"
// here means "at a strictly earlier term index."
func (c *compileState) validateNotTerms() error {
	positive := make(map[string]bool)
	var errs store.ErrorCollector
	for _, t := range c.terms {
		if t.Modifier == term.Not {
			if t.Predicate.IsVar() && !positive[t.Predicate.Name()] {
				errs.Add(store.NewCompileError(store.ErrMissingPredicateVarInNot, t.Predicate.Name()))
			}
			if t.HasObject && t.Object.IsVar() && !positive[t.Object.Name()] {
				errs.Add(store.NewCompileError(store.ErrMissingObjectVarInNot, t.Object.Name()))
			}
			continue
		}
		if t.Predicate.IsVar() {
			positive[t.Predicate.Name()] = true
		}
		if t.HasObject && t.Object.IsVar() {
			positive[t.Object.Name()] = true
		}
		if t.Subject.IsVar() {
			positive[t.Subject.Name()] = true
		}
	}
	return errs.Err()
}

// otherPositions returns a term's non-subject variable-bearing positions:
// predicate, and object if present.
func otherPositions(t term.Term) []term.Position {
	ps := []term.Position{t.Predicate}
	if t.HasObject {
		ps = append(ps, t.Object)
	}
	return ps
}

// phase2 assigns depths via a breadth-first walk from the root (and from
// the depth-0 literal-subject anchors), per spec §4.1 Phase 2.
func (c *compileState) phase2() error {
	root := c.vars.ElectRoot()
	c.root = root

	visited := make(map[*vartable.Variable]bool)
	var queue []*vartable.Variable

	relax := func(v *vartable.Variable, depth uint32) {
		if v.Depth != vartable.NoDepth && v.Depth <= depth {
			return
		}
		v.Depth = depth
		if !visited[v] {
			visited[v] = true
			queue = append(queue, v)
		}
		// keep the Table/Entity companion records for the same name in
		// sync so the DFS can continue through either one.
		other := vartable.Entity
		if v.Kind == vartable.Entity {
			other = vartable.Table
		}
		if comp, ok := c.vars.Lookup(v.Name, other); ok && (comp.Depth == vartable.NoDepth || comp.Depth > depth) {
			comp.Depth = depth
			if !visited[comp] {
				visited[comp] = true
				queue = append(queue, comp)
			}
		}
	}

	if root != nil {
		relax(root, 0)
	}

	// Depth-0 base case: (pred, obj) variables in terms with a literal
	// subject are anchored, independent of the root.
	for _, t := range c.terms {
		if t.Subject.IsVar() {
			continue
		}
		for _, pos := range otherPositions(t) {
			if !pos.IsVar() {
				continue
			}
			if v, ok := c.vars.Lookup(pos.Name(), vartable.Entity); ok {
				relax(v, 0)
			}
		}
	}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if v.Kind != vartable.Table {
			continue
		}
		for _, ti := range c.subjectTerms[v.Name] {
			t := c.terms[ti]
			for _, pos := range otherPositions(t) {
				if !pos.IsVar() {
					continue
				}
				if ov, ok := c.vars.Lookup(pos.Name(), vartable.Entity); ok {
					relax(ov, v.Depth+1)
				}
			}
		}
	}

	var errs store.ErrorCollector
	for _, v := range c.vars.All() {
		if v.Depth == vartable.NoDepth {
			errs.Add(store.NewCompileError(store.ErrUnconstrainedVariable, v.Name))
		}
	}
	return errs.Err()
}
