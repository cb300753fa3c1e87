package program

import (
	"fmt"
	"strings"
)

// VarNamer resolves a register id to a display name; vm/compiler supply
// this from the compiled variable table so the dump can print "X" instead
// of "reg 3".
type VarNamer interface {
	VarName(id uint8) string
	VarIsTable(id uint8) bool
}

func regName(namer VarNamer, reg uint8, prefix string) string {
	if reg == NoReg {
		return ""
	}
	name := fmt.Sprintf("%d", reg)
	if namer != nil {
		name = namer.VarName(reg)
		if namer.VarIsTable(reg) {
			name = "t" + name
		}
	}
	return prefix + name
}

func operandString(op Operand) string {
	if op.IsReg {
		return fmt.Sprintf("r%d", op.Reg)
	}
	return fmt.Sprintf("0x%x", uint64(op.Entity))
}

func filterString(f Filter) string {
	if !f.HasObject {
		return fmt.Sprintf("(%s)", operandString(f.Predicate))
	}
	return fmt.Sprintf("(%s, %s)", operandString(f.Predicate), operandString(f.Object))
}

// Dump renders the program in the stable, line-per-instruction textual
// form of spec §6.4: index, frame, pass/fail targets, an 8-character
// opcode name, I:/O: register names (table-kind names prefixed with "t"),
// and the filter expression. Formatting is hand-rolled rather than via a
// generic struct printer because the column layout must stay fixed for a
// given program across runs (a requirement a reflection-based dumper
// cannot guarantee).
func Dump(p *Program, namer VarNamer) string {
	var b strings.Builder
	for i, ins := range p.Instructions {
		in := regName(namer, ins.InReg, "I:")
		out := regName(namer, ins.OutReg, "O:")
		fmt.Fprintf(&b, "%4d  f%-3d  p%-4d f%-4d  %-8s %-8s %-8s %s\n",
			i, ins.Frame, ins.Pass, ins.Fail, ins.Kind.String(), in, out, filterString(ins.Filter))
	}
	return b.String()
}
