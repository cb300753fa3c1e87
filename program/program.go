package program

// Program is the compiled instruction array (spec §3.3).
type Program struct {
	Instructions []Instruction
}

// Builder grows a Program's instruction vector by doubling, per spec §5
// memory discipline, avoiding the compiler's emission phase repeatedly
// reallocating one instruction at a time.
type Builder struct {
	ins []Instruction
}

// NewBuilder returns a Builder with a small initial capacity.
func NewBuilder() *Builder {
	return &Builder{ins: make([]Instruction, 0, 16)}
}

// Emit appends ins and returns its index in the final program.
func (b *Builder) Emit(ins Instruction) int {
	if len(b.ins) == cap(b.ins) {
		grown := make([]Instruction, len(b.ins), cap(b.ins)*2)
		copy(grown, b.ins)
		b.ins = grown
	}
	b.ins = append(b.ins, ins)
	return len(b.ins) - 1
}

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int { return len(b.ins) }

// At returns a pointer to the instruction at idx, for patching pass/fail
// targets after later instructions have been emitted.
func (b *Builder) At(idx int) *Instruction { return &b.ins[idx] }

// Build finalizes the builder into a Program.
func (b *Builder) Build() *Program {
	return &Program{Instructions: b.ins}
}
