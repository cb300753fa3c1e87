package program

import "github.com/kevinawalsh/ecsquery/store"

// SlotKind discriminates a register Slot's binding type. The Table/Entity
// split is structural, driven by the owning variable's vartable.Kind, but
// is kept explicit on the slot too (spec §9: "a union works, but an
// explicit tagged representation is clearer").
type SlotKind int

const (
	SlotTable SlotKind = iota
	SlotEntity
)

// Slot is one variable's binding at one instruction/frame, spec §3.4:
//   - Table binding: {table, offset, count}; count == 0 means wildcard.
//   - Entity binding: {entity}; entity == store.Wildcard means wildcard.
type Slot struct {
	Kind   SlotKind
	Table  store.Table
	Offset int
	Count  int
	Entity store.Entity
}

// TableSlot returns a Table-kind slot over table[offset:offset+count].
func TableSlot(table store.Table, offset, count int) Slot {
	return Slot{Kind: SlotTable, Table: table, Offset: offset, Count: count}
}

// EntitySlot returns an Entity-kind slot.
func EntitySlot(e store.Entity) Slot {
	return Slot{Kind: SlotEntity, Entity: e}
}

// IsWildcard reports whether the slot is unbound: a zero-count table slot
// or a store.Wildcard entity slot.
func (s Slot) IsWildcard() bool {
	if s.Kind == SlotTable {
		return s.Count == 0
	}
	return s.Entity == store.Wildcard
}

// ResolvedEntity returns the single entity this slot denotes for reading
// purposes: the slot's entity if it's an Entity binding, or the lone
// entity of a single-row Table binding (count == 1). ok is false for a
// wildcard slot or a multi-row Table binding.
func (s Slot) ResolvedEntity() (e store.Entity, ok bool) {
	switch s.Kind {
	case SlotEntity:
		if s.Entity == store.Wildcard {
			return 0, false
		}
		return s.Entity, true
	case SlotTable:
		if s.Count != 1 {
			return 0, false
		}
		return s.Table.Entities()[s.Offset], true
	default:
		return 0, false
	}
}

// FrameSet is the rectangular register-frame array plus its parallel
// column-array, sized variable_count x operation_count (spec §3.4/§3.5).
// Row `op` holds the bindings as of instruction `op`'s execution; the VM
// backtracks by popping (re-reading) an earlier row rather than undoing
// writes in place.
type FrameSet struct {
	varCount int
	opCount  int
	regs     []Slot
	cols     []int
}

// NewFrameSet allocates a frame set sized for an iterator over a program
// with opCount instructions and a variable table of varCount entries.
func NewFrameSet(varCount, opCount int) *FrameSet {
	return &FrameSet{
		varCount: varCount,
		opCount:  opCount,
		regs:     make([]Slot, varCount*opCount),
		cols:     make([]int, opCount*opCount),
	}
}

func (f *FrameSet) regIndex(frame, varID int) int { return frame*f.varCount + varID }
func (f *FrameSet) colIndex(frame, op int) int    { return frame*f.opCount + op }

// Get returns the binding for varID as of frame.
func (f *FrameSet) Get(frame, varID int) Slot { return f.regs[f.regIndex(frame, varID)] }

// Set writes the binding for varID at frame.
func (f *FrameSet) Set(frame, varID int, s Slot) { f.regs[f.regIndex(frame, varID)] = s }

// Column returns the last-matched filter column recorded for op as of
// frame.
func (f *FrameSet) Column(frame, op int) int { return f.cols[f.colIndex(frame, op)] }

// SetColumn records the last-matched filter column for op at frame.
func (f *FrameSet) SetColumn(frame, op, col int) { f.cols[f.colIndex(frame, op)] = col }

// CopyFrame copies every variable binding and every recorded column from
// frame src into frame dst -- the save/restore step the VM dispatch loop
// performs before invoking an instruction whose frame index has advanced
// (spec §4.2 step 2).
func (f *FrameSet) CopyFrame(dst, src int) {
	copy(f.regs[dst*f.varCount:(dst+1)*f.varCount], f.regs[src*f.varCount:(src+1)*f.varCount])
	copy(f.cols[dst*f.opCount:(dst+1)*f.opCount], f.cols[src*f.opCount:(src+1)*f.opCount])
}
