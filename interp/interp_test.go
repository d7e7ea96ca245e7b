package interp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ktstephano-labs/lama-gvm/bytecode"
	"github.com/ktstephano-labs/lama-gvm/env"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func newMachine(instrs []bytecode.Instruction, globals uint32) (*Machine, *bytes.Buffer) {
	prog := &bytecode.Program{
		Instructions:   instrs,
		GlobalAreaSize: globals,
	}
	var out bytes.Buffer
	host := env.NewPure(strings.NewReader(""), &out)
	return New(prog, host, 0), &out
}

func TestConstantWrite(t *testing.T) {
	m, out := newMachine([]bytecode.Instruction{
		{Op: bytecode.OpConst, Int: 5},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}, 0)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "5\n", "expected %q, got %q", "5\n", out.String())
}

func TestArithmetic(t *testing.T) {
	m, out := newMachine([]bytecode.Instruction{
		{Op: bytecode.OpConst, Int: 3},
		{Op: bytecode.OpConst, Int: 4},
		{Op: bytecode.OpBinop, BinOp: bytecode.BinPlus},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}, 0)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "7\n", "expected %q, got %q", "7\n", out.String())
}

func TestBranch(t *testing.T) {
	// CONST 0; CJMP(Zero, 3); FAIL (skipped); CONST 99; WRITE
	m, out := newMachine([]bytecode.Instruction{
		{Op: bytecode.OpConst, Int: 0},
		{Op: bytecode.OpCjmp, Cond: bytecode.JumpZero, A: 3},
		{Op: bytecode.OpFail, A: 1},
		{Op: bytecode.OpConst, Int: 99},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}, 0)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "99\n", "expected branch to skip FAIL, got %q", out.String())
}

func TestCallAndReturn(t *testing.T) {
	// Top level: CONST 21; CALL(target=4, nargs=1); WRITE; JMP(end)
	// Function (doubles its arg): BEGIN(1,0); LD Arg0; LD Arg0; BINOP Plus; END
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpConst, Int: 21},
		{Op: bytecode.OpCall, A: 4, B: 1},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
		{Op: bytecode.OpJmp, A: 9},
		{Op: bytecode.OpBegin, A: 1, B: 0},
		{Op: bytecode.OpLd, Loc: bytecode.Location{Class: bytecode.ClassArg, Index: 0}},
		{Op: bytecode.OpLd, Loc: bytecode.Location{Class: bytecode.ClassArg, Index: 0}},
		{Op: bytecode.OpBinop, BinOp: bytecode.BinPlus},
		{Op: bytecode.OpEnd},
	}
	m, out := newMachine(instrs, 0)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "42\n", "expected %q, got %q", "42\n", out.String())
}

func TestArrayAndElem(t *testing.T) {
	// Build [10,20,30] then index 1, write the result.
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpConst, Int: 10},
		{Op: bytecode.OpConst, Int: 20},
		{Op: bytecode.OpConst, Int: 30},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinArray, A: 3},
		{Op: bytecode.OpConst, Int: 1},
		{Op: bytecode.OpElem},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}
	m, out := newMachine(instrs, 0)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "20\n", "expected %q, got %q", "20\n", out.String())
}

func TestSexpTagMatch(t *testing.T) {
	// SEXP{tag=0,size=1} over CONST 7, then TAG{tag=0,size=1} should yield 1.
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpConst, Int: 7},
		{Op: bytecode.OpSexp, Str: 0, A: 1},
		{Op: bytecode.OpTag, Str: 0, A: 1},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}
	prog := &bytecode.Program{
		Instructions: instrs,
		StringPool:   []byte("Cons\x00"),
	}
	var out bytes.Buffer
	host := env.NewPure(strings.NewReader(""), &out)
	m := New(prog, host, 0)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "1\n", "expected tag match to yield 1, got %q", out.String())
}

func TestStLeavesValueOnStack(t *testing.T) {
	// ST does not consume its operand: after storing into global[0], the
	// value remains on top of the stack for DUP-free chaining.
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpConst, Int: 13},
		{Op: bytecode.OpSt, Loc: bytecode.Location{Class: bytecode.ClassGlobal, Index: 0}},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
		{Op: bytecode.OpLd, Loc: bytecode.Location{Class: bytecode.ClassGlobal, Index: 0}},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}
	m, out := newMachine(instrs, 1)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "13\n13\n", "ST should leave its operand on the stack, got %q", out.String())
}

func TestLdaStiAssignsThroughReference(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpLda, Loc: bytecode.Location{Class: bytecode.ClassGlobal, Index: 0}},
		{Op: bytecode.OpConst, Int: 77},
		{Op: bytecode.OpSti},
		{Op: bytecode.OpDrop},
		{Op: bytecode.OpLd, Loc: bytecode.Location{Class: bytecode.ClassGlobal, Index: 0}},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}
	m, out := newMachine(instrs, 1)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "77\n", "STI should assign through the reference, got %q", out.String())
}

func TestPattBoxedUnboxedAndStrCmp(t *testing.T) {
	instrs := []bytecode.Instruction{
		{Op: bytecode.OpConst, Int: 1},
		{Op: bytecode.OpPatt, Pattern: bytecode.PattUnBoxed},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
		{Op: bytecode.OpString, Str: 0},
		{Op: bytecode.OpString, Str: 0},
		{Op: bytecode.OpPatt, Pattern: bytecode.PattStrCmp},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}
	prog := &bytecode.Program{Instructions: instrs, StringPool: []byte("hi\x00")}
	var out bytes.Buffer
	host := env.NewPure(strings.NewReader(""), &out)
	m := New(prog, host, 0)
	err := m.Run(nil)
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "1\n1\n", "expected UnBoxed and StrCmp to both yield 1, got %q", out.String())
}

func TestUnsupportedInstruction(t *testing.T) {
	m, _ := newMachine([]bytecode.Instruction{{Op: bytecode.OpClosure}}, 0)
	err := m.Run(nil)
	assert(t, err != nil, "reserved closure family should be unsupported")
}

func TestInvalidInstructionPtrOnRunaway(t *testing.T) {
	// JMP straight past the end of the sequence without landing on the
	// sentinel index is a branch to a non-existent instruction.
	m, _ := newMachine([]bytecode.Instruction{
		{Op: bytecode.OpJmp, A: 5},
	}, 0)
	err := m.Run(nil)
	assert(t, err != nil, "branching past the sequence length (not to it) should fail")
}

func TestStartupPushesArgsArray(t *testing.T) {
	// ARRAY(size) test against the startup-pushed args array: with two
	// program args the top-of-stack array should report arity 2.
	m, out := newMachine([]bytecode.Instruction{
		{Op: bytecode.OpDrop}, // drop return-address sentinel
		{Op: bytecode.OpDrop}, // drop argc
		{Op: bytecode.OpArray, A: 2},
		{Op: bytecode.OpBuiltin, Builtin: bytecode.BuiltinWrite},
	}, 0)
	err := m.Run([]string{"a", "b"})
	assert(t, err == nil, "run should succeed: %v", err)
	assert(t, out.String() == "1\n", "expected args array to report arity 2, got %q", out.String())
}

func TestFailureContextTracksLastLineAndInstruction(t *testing.T) {
	// A LINE marker followed by a bad BINOP operand should leave
	// FailureContext reporting the marker's line and the failing
	// instruction's opcode, for -trace diagnostics (SPEC_FULL.md §6).
	m, _ := newMachine([]bytecode.Instruction{
		{Op: bytecode.OpLine, A: 42},
		{Op: bytecode.OpString, Str: 0},
		{Op: bytecode.OpConst, Int: 1},
		{Op: bytecode.OpBinop, BinOp: bytecode.BinPlus},
	}, 0)
	m.Program.StringPool = []byte("x\x00")
	err := m.Run(nil)
	assert(t, err != nil, "BINOP over a string operand should fail")
	ip, op, line := m.FailureContext()
	assert(t, op == bytecode.OpBinop, "expected failing op BINOP, got %s", op)
	assert(t, line == 42, "expected last LINE to be 42, got %d", line)
	assert(t, ip == 3, "expected failing ip 3, got %d", ip)
}
