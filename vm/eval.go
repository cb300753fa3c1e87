package vm

import (
	"github.com/kevinawalsh/ecsquery/program"
	"github.com/kevinawalsh/ecsquery/store"
)

// eval dispatches one instruction, returning true to take ins.Pass or
// false to take ins.Fail. This is the exhaustive switch spec §9 prefers
// over virtual dispatch on the instruction kind.
func (it *Iterator) eval(op int, ins *program.Instruction, redo bool) bool {
	if !redo {
		// A forward (non-redo) entry starts the instruction's enumeration
		// afresh under the current register bindings.
		*it.ctx.At(op) = program.OpContext{}
	}
	switch ins.Kind {
	case program.Input:
		return !redo
	case program.Select:
		return it.evalSelect(op, ins, redo)
	case program.With:
		return it.evalWith(op, ins, redo)
	case program.SubSet:
		return it.evalSubSet(op, ins, redo)
	case program.SuperSet:
		return it.evalSuperSet(op, ins, redo)
	case program.Store:
		return it.evalStore(op, ins, redo)
	case program.Each:
		return it.evalEach(op, ins, redo)
	case program.SetJmp:
		return it.evalSetJmp(op, ins, redo)
	case program.Jump:
		return it.evalJump(op, ins, redo)
	case program.Not:
		return it.evalNot(op, ins, redo)
	case program.Yield:
		return false // a redo-reentry into Yield always backtracks further
	default:
		return false
	}
}

// operandEntity resolves an Operand to a concrete entity as of frame,
// store.Wildcard if it names an unresolved register.
func (it *Iterator) operandEntity(op program.Operand, frame int) store.Entity {
	if !op.IsReg {
		return op.Entity
	}
	if e, ok := it.frames.Get(frame, int(op.Reg)).ResolvedEntity(); ok {
		return e
	}
	return store.Wildcard
}

func (it *Iterator) filterID(f program.Filter, frame int) store.ComponentID {
	pred := it.operandEntity(f.Predicate, frame)
	if !f.HasObject {
		return store.Single(pred)
	}
	obj := it.operandEntity(f.Object, frame)
	return store.Pair(pred, obj)
}

// bindFilterOutputs reifies any wildcard half of ins.Filter into its
// register, reading the concrete component id carried at tbl's column
// col -- valid because every entity sharing a table shares that table's
// exact component set.
func (it *Iterator) bindFilterOutputs(ins *program.Instruction, frame int, tbl store.Table, col int) {
	if col < 0 || col >= len(tbl.Type()) {
		return
	}
	id := tbl.Type()[col]
	if ins.Filter.HasObject {
		if ins.Filter.Predicate.IsReg {
			it.frames.Set(frame, int(ins.Filter.Predicate.Reg), program.EntitySlot(id.Predicate()))
		}
		if ins.Filter.Object.IsReg {
			it.frames.Set(frame, int(ins.Filter.Object.Reg), program.EntitySlot(id.Object()))
		}
	} else if ins.Filter.Predicate.IsReg {
		it.frames.Set(frame, int(ins.Filter.Predicate.Reg), program.EntitySlot(store.Entity(uint32(id))))
	}
}

// evalSelect searches the whole store for tables matching ins.Filter,
// enumerating one candidate subject entity at a time (spec §4.2 Select).
func (it *Iterator) evalSelect(op int, ins *program.Instruction, redo bool) bool {
	ctx := it.ctx.At(op)
	frame := ins.Frame
	if !ctx.initialized {
		ctx.Entries = it.rule.Store.Lookup(it.filterID(ins.Filter, frame))
		ctx.EntryCursor = 0
		ctx.Row = 0
		ctx.initialized = true
	}
	for ctx.EntryCursor < len(ctx.Entries) {
		e := ctx.Entries[ctx.EntryCursor]
		if ins.HasSubject {
			ctx.EntryCursor++
			rec, ok := it.rule.Store.Record(ins.Subject)
			if !ok || rec.Table != e.Table {
				continue
			}
			it.bindFilterOutputs(ins, frame, e.Table, e.Column)
			return true
		}
		ents := e.Table.Entities()
		if ctx.Row >= len(ents) {
			ctx.EntryCursor++
			ctx.Row = 0
			continue
		}
		subject := ents[ctx.Row]
		ctx.Row++
		if ins.OutReg != program.NoReg {
			it.frames.Set(frame, int(ins.OutReg), program.EntitySlot(subject))
		}
		it.bindFilterOutputs(ins, frame, e.Table, e.Column)
		it.frames.SetColumn(frame, op, e.Column)
		return true
	}
	return false
}

// evalWith applies ins.Filter to a single, already-known table -- either
// the table a literal subject lives in, or the table bound to InReg --
// instead of searching the whole store.
func (it *Iterator) evalWith(op int, ins *program.Instruction, redo bool) bool {
	ctx := it.ctx.At(op)
	frame := ins.Frame
	if !ctx.initialized {
		if ins.HasSubject {
			if rec, ok := it.rule.Store.Record(ins.Subject); ok {
				ctx.Table = rec.Table
			}
		} else if slot := it.frames.Get(frame, int(ins.InReg)); slot.Kind == program.SlotTable {
			ctx.Table = slot.Table
		} else if e, ok := slot.ResolvedEntity(); ok {
			if rec, ok := it.rule.Store.Record(e); ok {
				ctx.Table = rec.Table
			}
		}
		ctx.Column = -1
		if ctx.Table != nil {
			ctx.Column = ctx.Table.Column(it.filterID(ins.Filter, frame))
		}
		ctx.initialized = true
	}
	if ctx.Matched || ctx.Column < 0 {
		return false
	}
	ctx.Matched = true
	it.bindFilterOutputs(ins, frame, ctx.Table, ctx.Column)
	it.frames.SetColumn(frame, op, ctx.Column)
	return true
}

// evalNot checks ins.Filter (all positions already resolved by the
// compiler's validateNotTerms) for a match; a match fails the term, an
// absence passes it. A redo re-entry always fails -- there is nothing
// further to enumerate for a negation check.
func (it *Iterator) evalNot(op int, ins *program.Instruction, redo bool) bool {
	if redo {
		return false
	}
	frame := ins.Frame
	var tbl store.Table
	if ins.HasSubject {
		if rec, ok := it.rule.Store.Record(ins.Subject); ok {
			tbl = rec.Table
		}
	} else if ins.InReg != program.NoReg {
		if slot := it.frames.Get(frame, int(ins.InReg)); slot.Kind == program.SlotTable {
			tbl = slot.Table
		} else if e, ok := slot.ResolvedEntity(); ok {
			if rec, ok := it.rule.Store.Record(e); ok {
				tbl = rec.Table
			}
		}
	}
	if tbl == nil {
		return true // no home table at all: the fact cannot hold
	}
	col := tbl.Column(it.filterID(ins.Filter, frame))
	return col < 0
}

// evalStore writes InReg's current value into OutReg unconditionally.
// Not emitted by this package's compiler (the inclusive-closure
// SetJmp/Store/Set/Jump sequence spec §9 describes is instead folded
// directly into evalSubSet/evalSuperSet's reflexive-seed handling in
// closure.go);
// kept for completeness of the instruction set.
func (it *Iterator) evalStore(op int, ins *program.Instruction, redo bool) bool {
	if redo {
		return false
	}
	frame := ins.Frame
	it.frames.Set(frame, int(ins.OutReg), it.frames.Get(frame, int(ins.InReg)))
	return true
}

// evalEach is the epilogue's handling for an Entity-kind variable no term
// ever wrote. When InReg names a companion Table-kind variable (spec §4.1/
// §4.2), it enumerates that variable's already-bound entity range one
// entity per redo. With no companion at all -- an Entity-kind variable that
// is never any term's subject either -- there is nothing to enumerate
// (Store exposes no "every live entity" primitive), so it binds the
// wildcard sentinel once.
func (it *Iterator) evalEach(op int, ins *program.Instruction, redo bool) bool {
	ctx := it.ctx.At(op)
	if ins.InReg == program.NoReg {
		if ctx.Row > 0 {
			return false
		}
		ctx.Row++
		it.frames.Set(ins.Frame, int(ins.OutReg), program.EntitySlot(store.Wildcard))
		return true
	}
	if !ctx.initialized {
		slot := it.frames.Get(ins.Frame, int(ins.InReg))
		switch {
		case slot.Kind == program.SlotTable:
			ctx.Table, ctx.Offset, ctx.Count = slot.Table, slot.Offset, slot.Count
		default:
			if e, ok := slot.ResolvedEntity(); ok {
				if rec, ok := it.rule.Store.Record(e); ok {
					ctx.Table, ctx.Offset, ctx.Count = rec.Table, rec.Row, 1
				}
			}
		}
		ctx.Row = 0
		ctx.initialized = true
	}
	for ctx.Table != nil && ctx.Row < ctx.Count {
		entity := ctx.Table.Entities()[ctx.Offset+ctx.Row]
		ctx.Row++
		if entity == store.Wildcard || entity == store.This {
			continue
		}
		it.frames.Set(ins.Frame, int(ins.OutReg), program.EntitySlot(entity))
		return true
	}
	return false
}

// evalSetJmp and evalJump are unreachable from this package's emission
// strategy (Not and Optional are each compiled without them, see
// compiler/emit.go); implemented per spec §3.3/§4.2 for completeness.
func (it *Iterator) evalSetJmp(op int, ins *program.Instruction, redo bool) bool {
	ctx := it.ctx.At(op)
	if !redo {
		ctx.Label = ins.PassLabel
	} else {
		ctx.Label = ins.FailLabel
	}
	return !redo
}

func (it *Iterator) evalJump(op int, ins *program.Instruction, redo bool) bool {
	if redo {
		return false
	}
	return true
}
