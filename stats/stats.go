// Package stats reports opcode frequency counts and a disassembly
// listing over a decoded program, grounded in the pack's xsv/hint-style
// reporting tools that sort aggregate counts with golang.org/x/exp/slices
// before printing them.
package stats

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/ktstephano-labs/lama-gvm/bytecode"
)

// OpCount pairs an opcode with how many times it appears in a program.
type OpCount struct {
	Op    bytecode.Op
	Count int
}

// Frequency tallies each instruction's opcode across prog, returned
// sorted by descending count (ties broken by opcode name) so the most
// common instructions sort first.
func Frequency(prog *bytecode.Program) []OpCount {
	counts := make(map[bytecode.Op]int)
	for _, instr := range prog.Instructions {
		counts[instr.Op]++
	}

	out := make([]OpCount, 0, len(counts))
	for op, n := range counts {
		out = append(out, OpCount{Op: op, Count: n})
	}
	slices.SortFunc(out, func(a, b OpCount) bool {
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Op.String() < b.Op.String()
	})
	return out
}

// Disassemble renders one line per instruction: its index, opcode, and
// the operands meaningful to that opcode (spec §4.2 family table).
func Disassemble(prog *bytecode.Program) string {
	var b strings.Builder
	for i, instr := range prog.Instructions {
		fmt.Fprintf(&b, "%6d  %s\n", i, describe(instr))
	}
	return b.String()
}

func describe(instr bytecode.Instruction) string {
	switch instr.Op {
	case bytecode.OpConst:
		return fmt.Sprintf("%s %d", instr.Op, instr.Int)
	case bytecode.OpBinop:
		return fmt.Sprintf("%s %s", instr.Op, instr.BinOp)
	case bytecode.OpString:
		return fmt.Sprintf("%s strptr=%d", instr.Op, instr.Str)
	case bytecode.OpSexp, bytecode.OpTag:
		return fmt.Sprintf("%s strptr=%d arity=%d", instr.Op, instr.Str, instr.A)
	case bytecode.OpLd, bytecode.OpLda, bytecode.OpSt:
		return fmt.Sprintf("%s %s", instr.Op, instr.Loc)
	case bytecode.OpJmp:
		return fmt.Sprintf("%s %d", instr.Op, instr.A)
	case bytecode.OpCjmp:
		return fmt.Sprintf("%s %v %d", instr.Op, instr.Cond, instr.A)
	case bytecode.OpBegin, bytecode.OpCbegin:
		return fmt.Sprintf("%s nargs=%d nlocals=%d", instr.Op, instr.A, instr.B)
	case bytecode.OpCall:
		return fmt.Sprintf("%s target=%d nargs=%d", instr.Op, instr.A, instr.B)
	case bytecode.OpClosure:
		return fmt.Sprintf("%s target=%d captures=%d", instr.Op, instr.A, instr.B)
	case bytecode.OpCallc:
		return fmt.Sprintf("%s nargs=%d", instr.Op, instr.A)
	case bytecode.OpArray:
		return fmt.Sprintf("%s arity=%d", instr.Op, instr.A)
	case bytecode.OpFail:
		return fmt.Sprintf("%s line=%d leave=%d", instr.Op, instr.A, instr.B)
	case bytecode.OpLine:
		return fmt.Sprintf("%s %d", instr.Op, instr.A)
	case bytecode.OpPatt:
		return fmt.Sprintf("%s %s", instr.Op, instr.Pattern)
	case bytecode.OpBuiltin:
		return fmt.Sprintf("%s %s", instr.Op, instr.Builtin)
	default:
		return instr.Op.String()
	}
}
