// Package vm implements the rule virtual machine (spec §4.2/§4.3): the
// register-frame dispatch loop and the closure walk evaluators for
// SubSet/SuperSet. Grounded on the teacher's (kevinawalsh/datalog)
// dlengine proof-search loop, generalized from SLD-resolution over
// clauses to dispatch over a flat, backtracking instruction array.
package vm

import (
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/k0kubun/pp/v3"

	"github.com/kevinawalsh/ecsquery/compiler"
	"github.com/kevinawalsh/ecsquery/program"
	"github.com/kevinawalsh/ecsquery/store"
	"github.com/kevinawalsh/ecsquery/vartable"
)

// closureKey indexes the bounded cache of repeated wildcard SubSet lookups
// (spec SUPPLEMENTED FEATURES: "an LRU cache of (predicate, entity) ->
// []table"). SuperSet ascents aren't cached -- they walk a single known
// entity's own table rather than re-querying the index -- so this key only
// ever addresses SubSet's (predicate, seed) pairs.
type closureKey struct {
	predicate store.Entity
	seed      store.Entity
}

// Iterator drives one compiled Rule to successive solutions, spec §5/§6.2.
// Not safe for concurrent use; a Rule may back many Iterators, each with
// its own frame/context state.
type Iterator struct {
	rule   *compiler.Rule
	frames *program.FrameSet
	ctx    *program.ContextSet

	op     int // next instruction to dispatch, or -1 when exhausted
	lastOp int // the instruction dispatched on the previous step, or -1

	started bool
	id      uuid.UUID
	logger  hclog.Logger
	trace   bool

	// maxOpStack bounds a single SubSet/SuperSet DFS walk's stack depth
	// (WithMaxOpStack), guarding against unbounded growth over a
	// cyclic or pathologically deep IsA hierarchy.
	maxOpStack int

	closureCache *lru.Cache[closureKey, []store.IndexEntry]
}

// Iter creates an Iterator over rule, positioned before its first
// solution.
func Iter(rule *compiler.Rule, opts ...Option) *Iterator {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	o = o.withDefaults()

	n := len(rule.Program.Instructions)
	cache, _ := lru.New[closureKey, []store.IndexEntry](256)
	it := &Iterator{
		rule:         rule,
		frames:       program.NewFrameSet(rule.Vars.Len(), n),
		ctx:          program.NewContextSet(n),
		op:           0,
		lastOp:       -1,
		id:           uuid.New(),
		logger:       o.Logger.Named("vm.iterator"),
		trace:        o.Trace,
		maxOpStack:   o.MaxOpStack,
		closureCache: cache,
	}
	it.logger.Trace("iterator created",
		"correlation_id", it.id, "vars", rule.Vars.Len(), "instructions", n)
	return it
}

// SetVar pre-binds varID to e before the first call to Next. Panics if
// called after iteration has started, matching the teacher's pattern of
// failing fast on misuse of a one-shot setup API rather than silently
// ignoring it.
func (it *Iterator) SetVar(varID int, e store.Entity) {
	if it.started {
		panic("vm: SetVar called after Next")
	}
	v := it.rule.Vars.Get(varID)
	if v.Kind == vartable.Table {
		if rec, ok := it.rule.Store.Record(e); ok {
			it.frames.Set(0, varID, program.TableSlot(rec.Table, rec.Row, 1))
			return
		}
	}
	it.frames.Set(0, varID, program.EntitySlot(e))
}

// GetVar reads varID's current binding as of the last instruction
// dispatched, or store.Wildcard if unresolved.
func (it *Iterator) GetVar(varID int) store.Entity {
	frame := 0
	if it.lastOp >= 0 {
		frame = it.rule.Program.Instructions[it.lastOp].Frame
	}
	slot := it.frames.Get(frame, varID)
	if e, ok := slot.ResolvedEntity(); ok {
		return e
	}
	return store.Wildcard
}

// Destroy releases the iterator's resources. The zero-value-safe Go GC
// makes this a no-op today, kept as an explicit lifecycle bookend
// matching the teacher's Close()-style API so callers don't need to
// change call sites if a future Store implementation needs cleanup.
func (it *Iterator) Destroy() {
	it.logger.Trace("iterator destroyed", "correlation_id", it.id)
}

// Next advances the iterator to the next solution, returning false once
// every alternative has been exhausted (spec §4.2/§6.2).
func (it *Iterator) Next() bool {
	it.started = true
	opIdx := it.op

	for opIdx >= 0 {
		ins := &it.rule.Program.Instructions[opIdx]
		redo := it.lastOp >= 0 && opIdx <= it.lastOp

		if !ins.IsControlFlow() && !redo && it.lastOp >= 0 {
			srcFrame := it.rule.Program.Instructions[it.lastOp].Frame
			if srcFrame != ins.Frame {
				it.frames.CopyFrame(ins.Frame, srcFrame)
			}
		}

		if ins.Kind == program.Yield && !redo {
			it.lastOp = opIdx
			it.op = opIdx
			return true
		}

		ok := it.eval(opIdx, ins, redo)
		it.traceStep(opIdx, ins, redo, ok)
		it.lastOp = opIdx
		switch {
		case ok && ins.Kind == program.Jump:
			opIdx = it.ctx.At(ins.SetJmpRef).Label
		case ok:
			opIdx = ins.Pass
		case ins.Optional && !redo:
			// The very first (non-redo) failure of an Optional term's
			// principal instruction falls through leaving its variables
			// unbound, instead of backtracking past it. A later redo
			// re-entry that also fails (this term's own alternatives,
			// if it had any, are exhausted) takes the real Fail edge
			// below like any other instruction, so the terms preceding
			// it remain reachable by backtracking.
			opIdx = opIdx + 1
		default:
			opIdx = ins.Fail
		}
	}
	it.op = -1
	return false
}

func (it *Iterator) traceStep(op int, ins *program.Instruction, redo, ok bool) {
	if !it.trace {
		return
	}
	pp.Println(map[string]any{
		"op": op, "kind": ins.Kind.String(), "redo": redo, "ok": ok,
		"correlation_id": it.id,
	})
}
