// Package interp implements the fetch/decode/dispatch interpreter core
// (spec §4.6): the instruction-pointer loop that drives the operand
// stack, call stack and global scope against a decoded program, calling
// out to a host environment for BUILTIN instructions.
package interp

import (
	"fmt"

	"github.com/ktstephano-labs/lama-gvm/bytecode"
	"github.com/ktstephano-labs/lama-gvm/env"
	"github.com/ktstephano-labs/lama-gvm/frame"
	"github.com/ktstephano-labs/lama-gvm/global"
	"github.com/ktstephano-labs/lama-gvm/stack"
	"github.com/ktstephano-labs/lama-gvm/value"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// Tracer receives the instruction pointer and decoded instruction before
// each instruction executes. It is nil by default; the CLI wires one up when
// -trace is given, the same way the teacher's run loop prints every
// step only when a debug flag is set.
type Tracer func(ip bytecode.InstrPtr, instr bytecode.Instruction)

// Machine is one interpreter run: the decoded program it executes, its
// runtime state, and the host environment it calls out to.
type Machine struct {
	Program *bytecode.Program
	Env     env.Environment

	ip      bytecode.InstrPtr
	ops     *stack.Stack
	calls   *frame.CallStack
	globals *global.Scope

	lastLine  int
	lastInstr bytecode.Instruction

	Trace Tracer
}

// New constructs a machine ready to run prog with the given host
// environment and operand-stack capacity (0 selects stack.DefaultCapacity).
func New(prog *bytecode.Program, environment env.Environment, stackCapacity int) *Machine {
	return &Machine{
		Program: prog,
		Env:     environment,
		ops:     stack.New(stackCapacity),
		calls:   frame.NewCallStack(),
		globals: global.New(prog.GlobalAreaSize),
	}
}

// Run executes the program to completion against the given argument
// list (spec §4.6 Startup): it pushes an array of args, the arg count,
// and the past-the-end return-address sentinel, then dispatches from
// instruction 0 until the instruction pointer reaches the end of the
// sequence.
func (m *Machine) Run(args []string) error {
	argValues := make([]value.Value, len(args))
	for i, a := range args {
		argValues[i] = value.String(a)
	}
	if err := m.ops.Push(value.Array(argValues)); err != nil {
		return err
	}
	if err := m.ops.Push(value.Int(int32(len(args)))); err != nil {
		return err
	}
	if err := m.ops.Push(value.RetAddr(m.Program.End())); err != nil {
		return err
	}

	m.ip = 0
	end := m.Program.End()
	for m.ip != end {
		if uint32(m.ip) >= uint32(len(m.Program.Instructions)) {
			return vmerr.ErrInvalidInstructionPtr
		}
		instr := m.Program.Instructions[m.ip]
		m.lastInstr = instr
		if m.Trace != nil {
			m.Trace(m.ip, instr)
		}
		next, err := m.step(instr)
		if err != nil {
			return err
		}
		m.ip = next
	}
	return nil
}

// step executes one instruction and returns the instruction pointer to
// resume at: ip+1 for straight-line instructions, an assigned target for
// jumps/calls/returns.
func (m *Machine) step(instr bytecode.Instruction) (bytecode.InstrPtr, error) {
	switch instr.Op {
	case bytecode.OpConst:
		return m.next(), m.ops.Push(value.Int(instr.Int))

	case bytecode.OpBinop:
		return m.next(), m.binop(instr.BinOp)

	case bytecode.OpLd:
		v, err := m.load(instr.Loc)
		if err != nil {
			return 0, err
		}
		return m.next(), m.ops.Push(v)

	case bytecode.OpSt:
		v, err := m.ops.Peek()
		if err != nil {
			return 0, err
		}
		if err := m.store(instr.Loc, v); err != nil {
			return 0, err
		}
		return m.next(), nil

	case bytecode.OpLda:
		return m.next(), m.ops.Push(value.Ref(instr.Loc))

	case bytecode.OpSti:
		return m.next(), m.sti()

	case bytecode.OpString:
		text, err := m.Program.ResolveString(instr.Str)
		if err != nil {
			return 0, err
		}
		return m.next(), m.ops.Push(value.String(text))

	case bytecode.OpSexp:
		return m.next(), m.sexp(instr.Str, instr.A)

	case bytecode.OpElem:
		return m.next(), m.elem()

	case bytecode.OpSta:
		return 0, vmerr.ErrUnsupportedInstruction

	case bytecode.OpJmp:
		return bytecode.InstrPtr(instr.A), nil

	case bytecode.OpCjmp:
		return m.cjmp(instr)

	case bytecode.OpBegin:
		if err := m.begin(instr.A, instr.B); err != nil {
			return 0, err
		}
		return m.next(), nil

	case bytecode.OpEnd:
		return m.end()

	case bytecode.OpRet:
		// Unused by the core (spec §4.6): RET carries no call-stack
		// semantics here, unlike END.
		return m.next(), nil

	case bytecode.OpCall:
		return m.call(instr)

	case bytecode.OpDrop:
		return m.next(), m.ops.Drop()

	case bytecode.OpDup:
		return m.next(), m.ops.Dup()

	case bytecode.OpSwap:
		return m.next(), m.ops.Swap()

	case bytecode.OpTag:
		return m.next(), m.tag(instr.Str, instr.A)

	case bytecode.OpArray:
		return m.next(), m.arrayTest(instr.A)

	case bytecode.OpPatt:
		return m.next(), m.patt(instr.Pattern)

	case bytecode.OpFail:
		return 0, m.fail(instr.A)

	case bytecode.OpLine:
		m.lastLine = int(instr.A)
		return m.next(), nil

	case bytecode.OpBuiltin:
		return m.next(), m.builtin(instr.Builtin, instr.A)

	case bytecode.OpCbegin, bytecode.OpClosure, bytecode.OpCallc:
		return 0, vmerr.ErrUnsupportedInstruction

	default:
		return 0, vmerr.ErrInvalidOpcode
	}
}

func (m *Machine) next() bytecode.InstrPtr { return m.ip + 1 }

func (m *Machine) load(loc bytecode.Location) (value.Value, error) {
	if loc.Class == bytecode.ClassGlobal {
		return m.globals.Lookup(loc.Index)
	}
	rec, err := m.calls.Top()
	if err != nil {
		return value.Value{}, err
	}
	return rec.Lookup(loc)
}

func (m *Machine) store(loc bytecode.Location, v value.Value) error {
	if loc.Class == bytecode.ClassGlobal {
		return m.globals.Set(loc.Index, v)
	}
	rec, err := m.calls.Top()
	if err != nil {
		return err
	}
	return rec.Set(loc, v)
}

func (m *Machine) sti() error {
	v, err := m.ops.Pop()
	if err != nil {
		return err
	}
	ref, err := m.ops.Pop()
	if err != nil {
		return err
	}
	if ref.Kind() != value.KindRef {
		return &vmerr.UnexpectedValueError{Expected: "ref", Found: ref.Kind().String()}
	}
	if err := m.store(ref.Ref(), v); err != nil {
		return err
	}
	return m.ops.Push(v)
}

func (m *Machine) binop(op bytecode.BinOp) error {
	right, err := m.ops.Pop()
	if err != nil {
		return err
	}
	left, err := m.ops.Pop()
	if err != nil {
		return err
	}
	if !left.IsInt() || !right.IsInt() {
		found := left.Kind().String()
		if left.IsInt() {
			found = right.Kind().String()
		}
		return &vmerr.UnexpectedValueError{Expected: "int", Found: found}
	}
	l, r := left.Int(), right.Int()
	var result int32
	switch op {
	case bytecode.BinPlus:
		result = l + r
	case bytecode.BinMinus:
		result = l - r
	case bytecode.BinMul:
		result = l * r
	case bytecode.BinDiv:
		if r == 0 {
			return &vmerr.FailureError{Text: "division by zero"}
		}
		result = l / r
	case bytecode.BinMod:
		if r == 0 {
			return &vmerr.FailureError{Text: "division by zero"}
		}
		result = l % r
	case bytecode.BinLt:
		result = boolInt(l < r)
	case bytecode.BinLtEq:
		result = boolInt(l <= r)
	case bytecode.BinGt:
		result = boolInt(l > r)
	case bytecode.BinGtEq:
		result = boolInt(l >= r)
	case bytecode.BinEq:
		result = boolInt(l == r)
	case bytecode.BinNeq:
		result = boolInt(l != r)
	case bytecode.BinAnd:
		result = boolInt((l & r) != 0)
	case bytecode.BinOr:
		result = boolInt((l | r) != 0)
	default:
		return vmerr.ErrInvalidOpcode
	}
	return m.ops.Push(value.Int(result))
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) sexp(tag bytecode.StrPtr, size uint32) error {
	taken, err := m.ops.Take(int(size))
	if err != nil {
		return err
	}
	elems := reverse(taken)
	text, err := m.Program.ResolveString(tag)
	if err != nil {
		return err
	}
	return m.ops.Push(value.Sexp(tag, text, elems))
}

func reverse(vs []value.Value) []value.Value {
	out := make([]value.Value, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v
	}
	return out
}

func (m *Machine) elem() error {
	idx, err := m.ops.Pop()
	if err != nil {
		return err
	}
	container, err := m.ops.Pop()
	if err != nil {
		return err
	}
	if !idx.IsInt() {
		return &vmerr.UnexpectedValueError{Expected: "int", Found: idx.Kind().String()}
	}
	var elems []value.Value
	switch container.Kind() {
	case value.KindArray, value.KindSexp:
		elems = container.Elems()
	default:
		return &vmerr.UnexpectedValueError{Expected: "array or sexp", Found: container.Kind().String()}
	}
	i := int(idx.Int())
	if i < 0 || i >= len(elems) {
		return vmerr.ErrIndexOutOfRange
	}
	return m.ops.Push(elems[i])
}

func (m *Machine) cjmp(instr bytecode.Instruction) (bytecode.InstrPtr, error) {
	v, err := m.ops.Pop()
	if err != nil {
		return 0, err
	}
	if !v.IsInt() {
		return 0, &vmerr.UnexpectedValueError{Expected: "int", Found: v.Kind().String()}
	}
	zero := v.Int() == 0
	take := (instr.Cond == bytecode.JumpZero && zero) || (instr.Cond == bytecode.JumpNotZero && !zero)
	if take {
		return bytecode.InstrPtr(instr.A), nil
	}
	return m.next(), nil
}

func (m *Machine) begin(nargs, nlocals uint32) error {
	retVal, err := m.ops.Pop()
	if err != nil {
		return err
	}
	if retVal.Kind() != value.KindRetAddr {
		return &vmerr.UnexpectedValueError{Expected: "retaddr", Found: retVal.Kind().String()}
	}
	taken, err := m.ops.Take(int(nargs))
	if err != nil {
		return err
	}
	args := reverse(taken)
	m.calls.Begin(frame.NewRecord(args, nlocals, retVal.RetAddr()))
	return nil
}

func (m *Machine) end() (bytecode.InstrPtr, error) {
	addr, err := m.calls.End()
	if err != nil {
		return 0, err
	}
	return addr, nil
}

func (m *Machine) call(instr bytecode.Instruction) (bytecode.InstrPtr, error) {
	if err := m.ops.Push(value.RetAddr(m.next())); err != nil {
		return 0, err
	}
	return bytecode.InstrPtr(instr.A), nil
}

func (m *Machine) tag(tag bytecode.StrPtr, size uint32) error {
	v, err := m.ops.Pop()
	if err != nil {
		return err
	}
	match := v.Kind() == value.KindSexp && v.Tag() == tag && uint32(len(v.Elems())) == size
	return m.ops.Push(value.Int(boolInt(match)))
}

func (m *Machine) arrayTest(size uint32) error {
	v, err := m.ops.Pop()
	if err != nil {
		return err
	}
	match := v.Kind() == value.KindArray && uint32(len(v.Elems())) == size
	return m.ops.Push(value.Int(boolInt(match)))
}

func (m *Machine) patt(kind bytecode.PatternKind) error {
	v, err := m.ops.Pop()
	if err != nil {
		return err
	}
	switch kind {
	case bytecode.PattStrCmp:
		other, err := m.ops.Pop()
		if err != nil {
			return err
		}
		match := v.Kind() == value.KindString && other.Kind() == value.KindString && v.Str() == other.Str()
		return m.ops.Push(value.Int(boolInt(match)))
	case bytecode.PattString:
		return m.ops.Push(value.Int(boolInt(v.Kind() == value.KindString)))
	case bytecode.PattArray:
		return m.ops.Push(value.Int(boolInt(v.Kind() == value.KindArray)))
	case bytecode.PattSexp:
		return m.ops.Push(value.Int(boolInt(v.Kind() == value.KindSexp)))
	case bytecode.PattBoxed:
		return m.ops.Push(value.Int(boolInt(v.IsBoxed())))
	case bytecode.PattUnBoxed:
		return m.ops.Push(value.Int(boolInt(v.IsInt())))
	case bytecode.PattClosure:
		return vmerr.ErrUnsupportedInstruction
	default:
		return vmerr.ErrInvalidOpcode
	}
}

func (m *Machine) fail(line uint32) error {
	v, err := m.ops.Pop()
	if err != nil {
		return err
	}
	return &vmerr.FailureError{Line: int(line), Text: v.Text()}
}

func (m *Machine) builtin(kind bytecode.BuiltinKind, arity uint32) error {
	v, err := m.Env.BuiltIn(kind, arity, m.ops)
	if err != nil {
		return err
	}
	return m.ops.Push(v)
}

// String renders the machine's current instruction pointer and stack
// depth, logged by the CLI on a failed run when trace_on_error is set.
func (m *Machine) String() string {
	return fmt.Sprintf("ip=%d stack=%d calls=%d", m.ip, m.ops.Len(), m.calls.Depth())
}

// FailureContext reports the instruction pointer, opcode and most
// recently seen LINE number (0 if none has executed yet) for the
// instruction that was executing when Run returned an error. The CLI's
// -trace flag surfaces this alongside the one-line error message
// (SPEC_FULL.md §6).
func (m *Machine) FailureContext() (ip bytecode.InstrPtr, op bytecode.Op, line int) {
	return m.ip, m.lastInstr.Op, m.lastLine
}
