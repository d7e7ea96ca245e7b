// Package bytecode defines the tagged-variant vocabulary of the Lama
// bytecode format and the loader/decoder that turns a raw image into an
// immutable decoded program (spec §3, §4.1, §4.2).
package bytecode

import "fmt"

// StrPtr is a non-negative byte offset into a decoded program's string
// pool. Resolving one yields the UTF-8 text from the offset to the next
// zero byte, or the end of the pool.
type StrPtr uint32

// InstrPtr is a non-negative index into a decoded program's instruction
// sequence. The sentinel value equal to the sequence length marks
// "one past the final instruction" — the address the top-level routine
// returns to.
type InstrPtr uint32

// LocationClass selects the storage class a Location addresses.
type LocationClass byte

const (
	ClassGlobal  LocationClass = 0
	ClassLocal   LocationClass = 1
	ClassArg     LocationClass = 2
	ClassClosure LocationClass = 3
)

func (c LocationClass) String() string {
	switch c {
	case ClassGlobal:
		return "global"
	case ClassLocal:
		return "local"
	case ClassArg:
		return "arg"
	case ClassClosure:
		return "closure"
	default:
		return fmt.Sprintf("location-class(%d)", byte(c))
	}
}

// Location is a tagged citation of a storage cell: an argument slot of the
// active frame, a local slot of the active frame, a global cell, or a
// closure slot (recognized but unsupported at execution time).
type Location struct {
	Class LocationClass
	Index uint32
}

func (l Location) String() string {
	return fmt.Sprintf("%s[%d]", l.Class, l.Index)
}

// BinOp is the family of binary operators BINOP carries. Values match the
// low nibble the decoder reads directly off the wire.
type BinOp byte

const (
	BinPlus  BinOp = 1
	BinMinus BinOp = 2
	BinMul   BinOp = 3
	BinDiv   BinOp = 4
	BinMod   BinOp = 5
	BinLt    BinOp = 6
	BinLtEq  BinOp = 7
	BinGt    BinOp = 8
	BinGtEq  BinOp = 9
	BinEq    BinOp = 10
	BinNeq   BinOp = 11
	BinAnd   BinOp = 12
	BinOr    BinOp = 13
)

var binOpNames = map[BinOp]string{
	BinPlus: "+", BinMinus: "-", BinMul: "*", BinDiv: "/", BinMod: "%",
	BinLt: "<", BinLtEq: "<=", BinGt: ">", BinGtEq: ">=", BinEq: "==",
	BinNeq: "!=", BinAnd: "&&", BinOr: "!!",
}

func (b BinOp) String() string {
	if s, ok := binOpNames[b]; ok {
		return s
	}
	return fmt.Sprintf("binop(%d)", byte(b))
}

// JumpCond selects the polarity of a conditional jump.
type JumpCond byte

const (
	JumpZero    JumpCond = 0
	JumpNotZero JumpCond = 1
)

// PatternKind is the family of pattern-match primitives PATT tests.
type PatternKind byte

const (
	PattStrCmp  PatternKind = 0
	PattString  PatternKind = 1
	PattArray   PatternKind = 2
	PattSexp    PatternKind = 3
	PattBoxed   PatternKind = 4
	PattUnBoxed PatternKind = 5
	PattClosure PatternKind = 6
)

var patternNames = map[PatternKind]string{
	PattStrCmp: "StrCmp", PattString: "String", PattArray: "Array",
	PattSexp: "Sexp", PattBoxed: "Boxed", PattUnBoxed: "UnBoxed", PattClosure: "Closure",
}

func (p PatternKind) String() string {
	if s, ok := patternNames[p]; ok {
		return s
	}
	return fmt.Sprintf("pattern(%d)", byte(p))
}

// BuiltinKind is the family of built-in invocations BUILTIN carries.
type BuiltinKind byte

const (
	BuiltinRead   BuiltinKind = 0
	BuiltinWrite  BuiltinKind = 1
	BuiltinLength BuiltinKind = 2
	BuiltinString BuiltinKind = 3
	BuiltinArray  BuiltinKind = 4
)

var builtinNames = map[BuiltinKind]string{
	BuiltinRead: "Read", BuiltinWrite: "Write", BuiltinLength: "Length",
	BuiltinString: "String", BuiltinArray: "Array",
}

func (b BuiltinKind) String() string {
	if s, ok := builtinNames[b]; ok {
		return s
	}
	return fmt.Sprintf("builtin(%d)", byte(b))
}

// Op is the decoded instruction kind, one per row of the spec's opcode
// variant (spec §3 Opcode, §4.2 family table).
type Op byte

const (
	OpBinop Op = iota
	OpConst
	OpString
	OpSexp
	OpSti
	OpSta
	OpJmp
	OpEnd
	OpRet
	OpDrop
	OpDup
	OpSwap
	OpElem
	OpLd
	OpLda
	OpSt
	OpCjmp
	OpBegin
	OpCbegin
	OpClosure
	OpCallc
	OpCall
	OpTag
	OpArray
	OpFail
	OpLine
	OpPatt
	OpBuiltin
)

var opNames = map[Op]string{
	OpBinop: "BINOP", OpConst: "CONST", OpString: "STRING", OpSexp: "SEXP",
	OpSti: "STI", OpSta: "STA", OpJmp: "JMP", OpEnd: "END", OpRet: "RET",
	OpDrop: "DROP", OpDup: "DUP", OpSwap: "SWAP", OpElem: "ELEM",
	OpLd: "LD", OpLda: "LDA", OpSt: "ST", OpCjmp: "CJMP", OpBegin: "BEGIN",
	OpCbegin: "CBEGIN", OpClosure: "CLOSURE", OpCallc: "CALLC", OpCall: "CALL",
	OpTag: "TAG", OpArray: "ARRAY", OpFail: "FAIL", OpLine: "LINE",
	OpPatt: "PATT", OpBuiltin: "BUILTIN",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", byte(o))
}

// ClosureCapture is one (class, index) pair carried by a reserved CLOSURE
// instruction — decoded like any other operand (only the CLOSURE's target
// is rewritten, not its captures), but never consumed by the interpreter (closures are unsupported at execution
// time, spec §9).
type ClosureCapture struct {
	Class LocationClass
	Index uint32
}

// Instruction is a decoded instruction with its inline operands. Not every
// field is meaningful for every Op; see the per-field comments below and
// the family table in spec §4.2 for which fields a given Op populates.
type Instruction struct {
	Op Op

	BinOp   BinOp       // OpBinop
	Loc     Location    // OpLd, OpLda, OpSt
	Cond    JumpCond    // OpCjmp
	Pattern PatternKind // OpPatt
	Builtin BuiltinKind // OpBuiltin

	Str StrPtr // OpString; tag pointer for OpSexp, OpTag
	Int int32  // OpConst

	// Generic operand slots, meaning depends on Op:
	//   OpSexp:    A = arity
	//   OpJmp:     A = target instruction index (byte offset pre-rewrite)
	//   OpCjmp:    A = target instruction index (byte offset pre-rewrite)
	//   OpBegin:   A = nargs,  B = nlocals
	//   OpCbegin:  A = nargs,  B = nlocals
	//   OpClosure: A = target instruction index (byte offset pre-rewrite), B = capture count
	//   OpCallc:   A = nargs
	//   OpCall:    A = target instruction index (byte offset pre-rewrite), B = nargs
	//   OpTag:     A = arity
	//   OpArray:   A = arity
	//   OpFail:    A = line, B = leave-value flag (0/1)
	//   OpLine:    A = line number
	//   OpBuiltin: A = arity (only meaningful for BuiltinArray)
	A, B uint32

	Captures []ClosureCapture // OpClosure
}
