package vm

import (
	"github.com/kevinawalsh/ecsquery/program"
	"github.com/kevinawalsh/ecsquery/store"
)

// closureLookup resolves every table carrying a direct (predicate, seed)
// pair component. The cache belongs to this Iterator (it is created in
// Iter), so it serves repeated queries of the same (predicate, seed) pair
// within one iterator's walks, e.g. a SubSet re-entered after
// backtracking; it is not shared across Iterators of the same Rule.
func (it *Iterator) closureLookup(pred, seed store.Entity) []store.IndexEntry {
	key := closureKey{predicate: pred, seed: seed}
	if v, ok := it.closureCache.Get(key); ok {
		return v
	}
	entries := it.rule.Store.Lookup(store.Pair(pred, seed))
	it.closureCache.Add(key, entries)
	return entries
}

// evalSubSet walks down from ins.Filter's object: entities X with a chain
// of (predicate) pair components leading to the seed (spec §4.3 "SubSet
// ... walks down emitting each member"). ctx.Label tracks whether the
// reflexive (TransitiveSelf) seed-as-its-own-member case has already been
// emitted, folding the spec's SetJmp/Store/Set/Jump "inclusive" sequence
// directly into this evaluator instead of compiling it as a separate
// instruction group. The walk stops pushing new stack levels once it hits
// it.maxOpStack (vm.WithMaxOpStack), so a cyclic or pathologically
// deep hierarchy cannot grow the DFS stack without bound; entries already
// on the stack still drain normally.
func (it *Iterator) evalSubSet(op int, ins *program.Instruction, redo bool) bool {
	ctx := it.ctx.At(op)
	frame := ins.Frame
	pred := it.operandEntity(ins.Filter.Predicate, frame)
	seed := it.operandEntity(ins.Filter.Object, frame)

	if !ctx.initialized {
		ctx.SubSetStack.Reset()
		ctx.Label = 0
		ctx.SubSetStack.Push(program.NewSubsetFrame(it.closureLookup(pred, seed)))
		ctx.initialized = true
	}

	if ctx.Label == 0 {
		ctx.Label = 1
		if it.rule.Store.HasAttribute(pred, store.TransitiveSelf) {
			if ins.OutReg != program.NoReg {
				it.frames.Set(frame, int(ins.OutReg), program.EntitySlot(seed))
			}
			return true
		}
	}

	for {
		top, ok := ctx.SubSetStack.Top()
		if !ok {
			return false
		}
		for top.EntryCursor < len(top.Entries) {
			e := top.Entries[top.EntryCursor]
			ents := e.Table.Entities()
			if top.Row >= len(ents) {
				top.EntryCursor++
				top.Row = 0
				continue
			}
			child := ents[top.Row]
			top.Row++
			if ins.OutReg != program.NoReg {
				it.frames.Set(frame, int(ins.OutReg), program.EntitySlot(child))
			}
			if ctx.SubSetStack.Len() < it.maxOpStack {
				ctx.SubSetStack.Push(program.NewSubsetFrame(it.closureLookup(pred, child)))
			}
			return true
		}
		ctx.SubSetStack.Pop()
	}
}

// evalSuperSet walks up from a known subject: its direct (predicate, X)
// pair components name its parents, and their own tables are walked the
// same way for grandparents (spec §4.3 "SuperSet ... walks up"). When
// ins.Filter.Object is already resolved, the walk instead confirms that
// specific entity is reachable, writing no register.
func (it *Iterator) evalSuperSet(op int, ins *program.Instruction, redo bool) bool {
	ctx := it.ctx.At(op)
	frame := ins.Frame

	start := ins.Subject
	if !ins.HasSubject {
		start = it.operandEntity(program.RegOperand(ins.InReg), frame)
	}
	pred := it.operandEntity(ins.Filter.Predicate, frame)
	target := store.Wildcard
	if ins.Filter.HasObject {
		target = it.operandEntity(ins.Filter.Object, frame)
	}

	if !ctx.initialized {
		ctx.SuperSetStack.Reset()
		ctx.Label = 0
		if rec, ok := it.rule.Store.Record(start); ok {
			ctx.SuperSetStack.Push(program.NewSupersetFrame(start, rec.Table))
		}
		ctx.initialized = true
	}

	if ctx.Label == 0 {
		ctx.Label = 1
		if it.rule.Store.HasAttribute(pred, store.TransitiveSelf) &&
			(target == store.Wildcard || target == start) {
			if ins.OutReg != program.NoReg {
				it.frames.Set(frame, int(ins.OutReg), program.EntitySlot(start))
			}
			return true
		}
	}

	for {
		top, ok := ctx.SuperSetStack.Top()
		if !ok {
			return false
		}
		typ := top.Table.Type()
		for top.Column < len(typ) {
			id := typ[top.Column]
			top.Column++
			if !id.IsPair() || id.Predicate() != pred {
				continue
			}
			parent := id.Object()
			if target != store.Wildcard && parent == target {
				return true
			}
			if rec, ok := it.rule.Store.Record(parent); ok && ctx.SuperSetStack.Len() < it.maxOpStack {
				ctx.SuperSetStack.Push(program.NewSupersetFrame(parent, rec.Table))
			}
			if target == store.Wildcard {
				if ins.OutReg != program.NoReg {
					it.frames.Set(frame, int(ins.OutReg), program.EntitySlot(parent))
				}
				return true
			}
		}
		ctx.SuperSetStack.Pop()
	}
}
