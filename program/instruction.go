// Package program defines the compiled instruction set (spec §3.3), the
// register frame array (§3.4), the per-instruction operation context
// (§3.5), and the stable textual dump (§6.4).
package program

import "github.com/kevinawalsh/ecsquery/store"

// Kind is one of the 11 instruction kinds. Modeled as a closed sum type
// with an exhaustive switch at the VM dispatcher rather than virtual
// dispatch (spec §9 "Dynamic dispatch on instructions").
type Kind int

const (
	Input Kind = iota
	Select
	With
	SubSet
	SuperSet
	Store
	Each
	SetJmp
	Jump
	Not
	Yield
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "Input"
	case Select:
		return "Select"
	case With:
		return "With"
	case SubSet:
		return "SubSet"
	case SuperSet:
		return "SuperSet"
	case Store:
		return "Store"
	case Each:
		return "Each"
	case SetJmp:
		return "SetJmp"
	case Jump:
		return "Jump"
	case Not:
		return "Not"
	case Yield:
		return "Yield"
	default:
		return "???"
	}
}

// NoReg marks the absence of a register operand (UINT8_MAX sentinel, spec
// §3.3).
const NoReg uint8 = 0xFF

// NoIndex marks a term index for bookkeeping instructions that do not
// originate from a source term.
const NoIndex = -1

// Operand is one half of a Filter: either a register reference or a
// literal entity, with the register/entity discriminator tracked
// explicitly rather than overloading a zero value (spec §9 "an explicit
// tagged representation is clearer").
type Operand struct {
	IsReg  bool
	Reg    uint8
	Entity store.Entity
}

// RegOperand returns an Operand reading register reg.
func RegOperand(reg uint8) Operand { return Operand{IsReg: true, Reg: reg} }

// EntityOperand returns an Operand holding a literal entity (which may be
// store.Wildcard).
func EntityOperand(e store.Entity) Operand { return Operand{Entity: e} }

// Filter is the (predicate, object) pair an instruction matches against
// IdIndex or a bound table, per spec §3.3. HasObject distinguishes a pair
// filter from a single-component filter (object unused).
type Filter struct {
	Predicate Operand
	Object    Operand
	HasObject bool
}

// Instruction is one compiled step. Every field from spec §3.3 is present:
// kind; filter pair; an optional constant subject entity; pass/fail
// targets; a register-frame index; input/output register ids; and a
// source-term index (NoIndex for bookkeeping instructions).
type Instruction struct {
	Kind Kind

	Filter Filter

	HasSubject bool
	Subject    store.Entity

	Pass int
	Fail int

	Frame int

	TermIndex int

	InReg  uint8
	OutReg uint8

	// Optional marks a term's principal instruction as compiled from an
	// Optional modifier (spec §3.1): the dispatch loop takes the forward
	// idx+1 edge instead of Fail only on this instruction's very first
	// (non-redo) failure, leaving its variables unbound rather than
	// failing the rule. Every later failure of the same instruction (a
	// redo re-entry that finds no further alternative) takes the real
	// Fail edge like any other instruction, so backtracking into the
	// terms preceding it still works once this term's own alternatives
	// (if any) are exhausted.
	Optional bool

	// SetJmpRef names, for a Jump instruction, the index of the SetJmp
	// instruction whose context holds the dynamic redo target. Unused by
	// other kinds.
	SetJmpRef int

	// PassLabel/FailLabel are the two labels a SetJmp instruction stashes
	// into its own context -- PassLabel on first (non-redo) evaluation,
	// FailLabel on redo -- for a later Jump to read via SetJmpRef. Unused
	// by other kinds.
	PassLabel int
	FailLabel int
}

// IsControlFlow reports whether the instruction is SetJmp or Jump, which
// the VM dispatch loop excludes from frame save/restore (spec §4.2 step 2).
func (i *Instruction) IsControlFlow() bool {
	return i.Kind == SetJmp || i.Kind == Jump
}
