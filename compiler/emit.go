package compiler

import (
	"github.com/kevinawalsh/ecsquery/program"
	"github.com/kevinawalsh/ecsquery/store"
	"github.com/kevinawalsh/ecsquery/term"
	"github.com/kevinawalsh/ecsquery/vartable"
)

// emit appends ins to the default backtracking chain: its Fail is the
// previously emitted instruction (the "try the earlier alternative again"
// edge), and the previous instruction's Pass is patched to point at ins.
// Not and Optional terms keep these default edges: Not's redo-aware check
// lives in its evaluator, and the Optional fall-through is decided at run
// time by the dispatch loop from Instruction.Optional.
func (c *compileState) emit(ins program.Instruction) int {
	ins.Fail = c.prev
	ins.Frame = c.b.Len() // one row per instruction; SetJmp/Jump (unused by
	// this compiler's emission strategy) would instead inherit the
	// enclosing frame, per Instruction.IsControlFlow.
	idx := c.b.Emit(ins)
	if c.prev >= 0 {
		c.b.At(c.prev).Pass = idx
	}
	c.prev = idx
	return idx
}

func (c *compileState) emitInput() {
	c.emit(program.Instruction{Kind: program.Input, TermIndex: program.NoIndex})
}

// anonVar allocates a fresh internal Entity-kind register, used for the
// predicate-substitution and transitive-matrix temporaries that never
// appear in a term's own variable positions.
func (c *compileState) anonVar() *vartable.Variable {
	name := "$anon" + itoa(c.anonCounter)
	c.anonCounter++
	return c.vars.EnsureEntity(name)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// resolved is a position's compile-time-known operand plus the register
// bookkeeping emission needs to decide whether an instruction reads or
// writes it.
type resolved struct {
	op    program.Operand
	reg   uint8
	known bool // already resolvable: a literal, or a register already written
	varID int  // -1 if the position is a literal
}

func (c *compileState) resolve(pos term.Position, kind vartable.Kind) resolved {
	if !pos.IsVar() {
		return resolved{op: program.EntityOperand(pos.Entity()), reg: program.NoReg, known: true, varID: -1}
	}
	v, ok := c.vars.Lookup(pos.Name(), kind)
	if !ok {
		return resolved{op: program.EntityOperand(store.Wildcard), reg: program.NoReg, known: false, varID: -1}
	}
	reg := uint8(v.ID)
	return resolved{op: program.RegOperand(reg), reg: reg, known: c.written[v.ID], varID: v.ID}
}

// phase4 emits one instruction group per term, in term order, followed by
// the epilogue (spec §4.1 Phase 4).
func (c *compileState) phase4() error {
	for i, t := range c.terms {
		switch t.Modifier {
		case term.Not:
			c.emitNotTerm(i, t)
		default:
			idx := c.emitPositiveTerm(i, t)
			if t.Modifier == term.Optional && idx >= 0 {
				// Tag the principal instruction; the dispatch loop (not a
				// static Fail rewrite, which must still point at the real
				// predecessor so backtracking works once this term's own
				// alternatives are exhausted) decides at runtime whether a
				// given failure is the first one.
				c.b.At(idx).Optional = true
			}
		}
	}
	c.emitEpilogue()
	return nil
}

// emitPositiveTerm compiles one Normal or Optional term and returns the
// index of its principal (outermost) instruction.
func (c *compileState) emitPositiveTerm(ti int, t term.Term) int {
	pred := c.preparePredicate(t)

	subj := resolved{op: program.EntityOperand(store.Wildcard), reg: program.NoReg, known: true, varID: -1}
	hasSubjectVar := t.Subject.IsVar()
	if hasSubjectVar {
		subj = c.resolve(t.Subject, vartable.Table)
	}

	var obj resolved
	if t.HasObject {
		obj = c.resolve(t.Object, vartable.Entity)
	}

	if t.HasObject && pred.literalPredicate != store.Wildcard && pred.transitive {
		return c.emitTransitiveTerm(ti, t, pred, subj, hasSubjectVar, obj)
	}

	filter := program.Filter{Predicate: pred.operand, HasObject: t.HasObject}
	if t.HasObject {
		filter.Object = obj.op
	}

	// The filter's own Predicate/Object registers, when unresolved, get
	// reified by bindFilterOutputs as a side effect of whichever
	// instruction below applies this filter -- mark them written so a
	// later term's resolve() sees them as known and the epilogue doesn't
	// emit a redundant, clobbering Each for them.
	c.markFilterWrites(t)

	if !hasSubjectVar {
		return c.emit(program.Instruction{
			Kind: withOrSelect(pred.known),
			Filter: filter,
			HasSubject: true, Subject: t.Subject.Entity(),
			InReg: program.NoReg, OutReg: program.NoReg,
			TermIndex: ti,
		})
	}

	if subj.known {
		return c.emit(program.Instruction{
			Kind: program.With, Filter: filter,
			InReg: subj.reg, OutReg: program.NoReg,
			TermIndex: ti,
		})
	}

	idx := c.emit(program.Instruction{
		Kind: program.Select, Filter: filter,
		InReg: program.NoReg, OutReg: subj.reg,
		TermIndex: ti,
	})
	c.written[subj.varID] = true
	return idx
}

// markFilterWrites records that a term's own predicate/object variables (as
// opposed to its subject, tracked separately by each branch above) will be
// bound by the filter-matching instruction about to be emitted for it.
func (c *compileState) markFilterWrites(t term.Term) {
	if t.Predicate.IsVar() {
		if v, ok := c.vars.Lookup(t.Predicate.Name(), vartable.Entity); ok {
			c.written[v.ID] = true
		}
	}
	if t.HasObject && t.Object.IsVar() {
		if v, ok := c.vars.Lookup(t.Object.Name(), vartable.Entity); ok {
			c.written[v.ID] = true
		}
	}
}

// withOrSelect picks, for a literal-subject term, With when the filter's
// predicate is already resolved (a direct check against the subject's
// table suffices; a wildcard object half is still bound from that table)
// and Select when the predicate is unresolved and a search over IdIndex is
// used to discover it.
func withOrSelect(predKnown bool) program.Kind {
	if predKnown {
		return program.With
	}
	return program.Select
}

type preparedPredicate struct {
	operand          program.Operand
	known            bool
	literalPredicate store.Entity
	transitive       bool
}

// preparePredicate implements spec §4.1 predicate preparation: a literal,
// non-Final, non-Transitive predicate is replaced by a SubSet walk over
// the builtin IsA relation, so the term also matches any more specific
// predicate. A Transitive predicate skips substitution -- its own
// SubSet/SuperSet walk (emitTransitiveTerm) already subsumes "this
// predicate or a descendant of it" for the relation it names.
func (c *compileState) preparePredicate(t term.Term) preparedPredicate {
	if t.Predicate.IsVar() {
		r := c.resolve(t.Predicate, vartable.Entity)
		return preparedPredicate{operand: r.op, known: r.known, literalPredicate: store.Wildcard}
	}
	predEntity := t.Predicate.Entity()
	if c.store.HasAttribute(predEntity, store.Final) || c.store.HasAttribute(predEntity, store.Transitive) {
		return preparedPredicate{
			operand: program.EntityOperand(predEntity), known: true,
			literalPredicate: predEntity,
			transitive:       c.store.HasAttribute(predEntity, store.Transitive),
		}
	}
	anon := c.anonVar()
	c.emit(program.Instruction{
		Kind: program.SubSet,
		Filter: program.Filter{
			Predicate: program.EntityOperand(store.IsA),
			Object:    program.EntityOperand(predEntity),
			HasObject: true,
		},
		OutReg:    uint8(anon.ID),
		TermIndex: program.NoIndex,
	})
	c.written[anon.ID] = true
	return preparedPredicate{operand: program.RegOperand(uint8(anon.ID)), known: true, literalPredicate: predEntity}
}

// emitTransitiveTerm handles spec §4.1 rules 4-7: a Transitive predicate's
// own relation is closed over via SubSet (descend toward sub-members) or
// SuperSet (ascend toward super-members), chosen by which of
// subject/object is already known.
func (c *compileState) emitTransitiveTerm(ti int, t term.Term, pred preparedPredicate, subj resolved, hasSubjectVar bool, obj resolved) int {
	filterPred := pred.operand

	switch {
	case (hasSubjectVar && subj.known || !hasSubjectVar) && obj.known:
		// Rule 4: both known -- SuperSet confirms reachability without
		// writing a register.
		in := program.NoReg
		hasSubject := !hasSubjectVar
		if hasSubjectVar {
			in = subj.reg
		}
		return c.emit(program.Instruction{
			Kind: program.SuperSet,
			Filter: program.Filter{Predicate: filterPred, Object: obj.op, HasObject: true},
			HasSubject: hasSubject, Subject: t.Subject.Entity(),
			InReg: in, OutReg: program.NoReg,
			TermIndex: ti,
		})

	case (hasSubjectVar && subj.known || !hasSubjectVar) && !obj.known:
		// Rule 5: subject known, object unknown -- SuperSet enumerates
		// ancestors into the object's register.
		in := program.NoReg
		hasSubject := !hasSubjectVar
		if hasSubjectVar {
			in = subj.reg
		}
		idx := c.emit(program.Instruction{
			Kind: program.SuperSet,
			Filter: program.Filter{Predicate: filterPred, Object: program.EntityOperand(store.Wildcard), HasObject: true},
			HasSubject: hasSubject, Subject: t.Subject.Entity(),
			InReg: in, OutReg: obj.reg,
			TermIndex: ti,
		})
		c.written[obj.varID] = true
		return idx

	case hasSubjectVar && !subj.known && obj.known:
		// Rule 6: subject unknown, object known -- SubSet enumerates
		// descendants into the subject's register.
		idx := c.emit(program.Instruction{
			Kind: program.SubSet,
			Filter: program.Filter{Predicate: filterPred, Object: obj.op, HasObject: true},
			OutReg: subj.reg,
			TermIndex: ti,
		})
		c.written[subj.varID] = true
		return idx

	default:
		// Rule 7 (both unknown): neither endpoint anchors a walk
		// direction. Falls back to a non-transitive Select over the
		// predicate alone, leaving both sides to be discovered by a
		// plain table search.
		filter := program.Filter{Predicate: filterPred, Object: obj.op, HasObject: true}
		if !hasSubjectVar {
			idx := c.emit(program.Instruction{
				Kind: program.Select, Filter: filter,
				HasSubject: true, Subject: t.Subject.Entity(),
				OutReg: obj.reg, TermIndex: ti,
			})
			c.written[obj.varID] = true
			return idx
		}
		idx := c.emit(program.Instruction{
			Kind: program.Select, Filter: filter,
			OutReg: subj.reg, TermIndex: ti,
		})
		c.written[subj.varID] = true
		c.written[obj.varID] = true
		return idx
	}
}

// emitNotTerm compiles a negated term to a single Not instruction. All of
// its variable positions must already be written (validateNotTerms
// enforces this at compile time), so Not never allocates a register --
// its evaluator just checks the already-resolved (predicate, object)
// pair against the already-resolved subject and takes the Fail edge on a
// match, the Pass edge otherwise. A predicate/object variable whose
// Entity-kind record is not yet written but whose Table-kind record is (it
// was bound only as an earlier term's subject) is read from the Table-kind
// register.
func (c *compileState) emitNotTerm(ti int, t term.Term) {
	resolveBound := func(pos term.Position) resolved {
		r := c.resolve(pos, vartable.Entity)
		if !r.known && pos.IsVar() {
			if tr := c.resolve(pos, vartable.Table); tr.known {
				return tr
			}
		}
		return r
	}
	predR := resolveBound(t.Predicate)
	filter := program.Filter{Predicate: predR.op, HasObject: t.HasObject}
	in := program.NoReg
	hasSubject := !t.Subject.IsVar()
	if t.HasObject {
		objR := resolveBound(t.Object)
		filter.Object = objR.op
	}
	if t.Subject.IsVar() {
		subjR := c.resolve(t.Subject, vartable.Table)
		in = subjR.reg
	}
	c.emit(program.Instruction{
		Kind: program.Not, Filter: filter,
		HasSubject: hasSubject,
		Subject:    t.Subject.Entity(),
		InReg:      in, OutReg: program.NoReg,
		TermIndex: ti,
	})
}

// emitEpilogue emits an Each for every Entity-kind variable never written
// by a term (so a caller can still read *some* value off it, per spec
// §4.1), followed by the terminal Yield. When the variable's name also has
// a written Table-kind companion record (it is some term's subject, just
// never read in a position that writes its Entity-kind twin -- e.g. only
// referenced inside a Not term), Each binds InReg to that companion so it
// enumerates the companion's actual bound entity range instead of a bare
// wildcard.
func (c *compileState) emitEpilogue() {
	for _, v := range c.vars.All() {
		if v.Kind != vartable.Entity {
			continue
		}
		if c.written[v.ID] {
			continue
		}
		in := program.NoReg
		if tv, ok := c.vars.Lookup(v.Name, vartable.Table); ok && c.written[tv.ID] {
			in = uint8(tv.ID)
		}
		c.emit(program.Instruction{
			Kind: program.Each,
			Filter: program.Filter{Predicate: program.EntityOperand(store.Wildcard)},
			InReg:     in,
			OutReg:    uint8(v.ID),
			TermIndex: program.NoIndex,
		})
		c.written[v.ID] = true
	}
	c.emit(program.Instruction{Kind: program.Yield, TermIndex: program.NoIndex})
}
