package bytecode

import (
	"encoding/binary"

	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// decoder walks the code region one byte at a time, decoding opcodes and
// their inline little-endian operands (spec §4.2).
type decoder struct {
	code []byte
	pos  int
}

func (d *decoder) u8() (byte, error) {
	if d.pos >= len(d.code) {
		return 0, vmerr.ErrUnexpectedEof
	}
	b := d.code[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.code) {
		return 0, vmerr.ErrUnexpectedEof
	}
	v := binary.LittleEndian.Uint32(d.code[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

func (d *decoder) i32() (int32, error) {
	v, err := d.u32()
	return int32(v), err
}

func (d *decoder) location(low byte) (Location, error) {
	class := LocationClass(low)
	if class > ClassClosure {
		return Location{}, vmerr.ErrInvalidLoc
	}
	idx, err := d.u32()
	if err != nil {
		return Location{}, err
	}
	return Location{Class: class, Index: idx}, nil
}

// decodeOne decodes a single instruction starting at the opcode byte. The
// caller is responsible for recognizing the end-of-stream sentinel before
// calling this.
func (d *decoder) decodeOne() (Instruction, error) {
	b, err := d.u8()
	if err != nil {
		return Instruction{}, err
	}
	hi, lo := b>>4, b&0x0F

	switch hi {
	case 0x0: // BINOP
		if lo < 1 || lo > 13 {
			return Instruction{}, vmerr.ErrInvalidOpcode
		}
		return Instruction{Op: OpBinop, BinOp: BinOp(lo)}, nil

	case 0x1: // stack / control
		switch lo {
		case 0: // CONST(i32)
			v, err := d.i32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpConst, Int: v}, nil
		case 1: // STRING(strptr)
			v, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpString, Str: StrPtr(v)}, nil
		case 2: // SEXP(strptr, u32)
			tag, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			size, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpSexp, Str: StrPtr(tag), A: size}, nil
		case 3:
			return Instruction{Op: OpSti}, nil
		case 4:
			return Instruction{Op: OpSta}, nil
		case 5: // JMP(u32)
			target, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpJmp, A: target}, nil
		case 6:
			return Instruction{Op: OpEnd}, nil
		case 7:
			return Instruction{Op: OpRet}, nil
		case 8:
			return Instruction{Op: OpDrop}, nil
		case 9:
			return Instruction{Op: OpDup}, nil
		case 10:
			return Instruction{Op: OpSwap}, nil
		case 11:
			return Instruction{Op: OpElem}, nil
		default:
			return Instruction{}, vmerr.ErrInvalidOpcode
		}

	case 0x2: // LD(location)
		loc, err := d.location(lo)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpLd, Loc: loc}, nil

	case 0x3: // LDA(location)
		loc, err := d.location(lo)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpLda, Loc: loc}, nil

	case 0x4: // ST(location)
		loc, err := d.location(lo)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpSt, Loc: loc}, nil

	case 0x5: // compound control
		switch lo {
		case 0: // CJMP(Zero, u32)
			target, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpCjmp, Cond: JumpZero, A: target}, nil
		case 1: // CJMP(NotZero, u32)
			target, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpCjmp, Cond: JumpNotZero, A: target}, nil
		case 2: // BEGIN(u32, u32)
			nargs, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			nlocals, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpBegin, A: nargs, B: nlocals}, nil
		case 3: // CBEGIN(u32, u32)
			nargs, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			nlocals, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpCbegin, A: nargs, B: nlocals}, nil
		case 4: // CLOSURE(u32 target, size, [(u8 class, u32 idx)...])
			target, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			size, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			captures := make([]ClosureCapture, size)
			for i := range captures {
				classByte, err := d.u8()
				if err != nil {
					return Instruction{}, err
				}
				idx, err := d.u32()
				if err != nil {
					return Instruction{}, err
				}
				captures[i] = ClosureCapture{Class: LocationClass(classByte), Index: idx}
			}
			return Instruction{Op: OpClosure, A: target, B: size, Captures: captures}, nil
		case 5: // CALLC(u32)
			nargs, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpCallc, A: nargs}, nil
		case 6: // CALL(u32 target, u32 nargs)
			target, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			nargs, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpCall, A: target, B: nargs}, nil
		case 7: // TAG(strptr, u32)
			tag, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			size, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpTag, Str: StrPtr(tag), A: size}, nil
		case 8: // ARRAY(u32)
			size, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpArray, A: size}, nil
		case 9: // FAIL(u32 line, u32 leave)
			line, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			leave, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpFail, A: line, B: leave}, nil
		case 10: // LINE(u32)
			line, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpLine, A: line}, nil
		default:
			return Instruction{}, vmerr.ErrInvalidOpcode
		}

	case 0x6: // PATT(pattern)
		if lo > 6 {
			return Instruction{}, vmerr.ErrInvalidOpcode
		}
		return Instruction{Op: OpPatt, Pattern: PatternKind(lo)}, nil

	case 0x7: // BUILTIN
		switch lo {
		case 0:
			return Instruction{Op: OpBuiltin, Builtin: BuiltinRead}, nil
		case 1:
			return Instruction{Op: OpBuiltin, Builtin: BuiltinWrite}, nil
		case 2:
			return Instruction{Op: OpBuiltin, Builtin: BuiltinLength}, nil
		case 3:
			return Instruction{Op: OpBuiltin, Builtin: BuiltinString}, nil
		case 4: // Array(u32)
			size, err := d.u32()
			if err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpBuiltin, Builtin: BuiltinArray, A: size}, nil
		default:
			return Instruction{}, vmerr.ErrUnknownBuiltin
		}

	default:
		return Instruction{}, vmerr.ErrInvalidOpcode
	}
}

// decodeAll consumes the full code region, returning the decoded
// instruction sequence, a map from the byte offset at which each
// instruction started (plus the end-of-stream sentinel offset) to the
// instruction index it was assigned, the inverse of that map (instruction
// index -> its original byte offset, one extra trailing entry for the
// sentinel), and the literal sentinel byte encountered. offsetToIndex is
// the state the byte-offset -> instruction-index rewrite pass (spec §4.2)
// needs; indexToOffset and sentinelByte are its inverse, retained so a
// decoded program can be re-encoded back to its original byte sequence
// (spec §8 invariant 5).
func decodeAll(code []byte) ([]Instruction, map[uint32]InstrPtr, []uint32, byte, error) {
	d := &decoder{code: code}
	instrs := make([]Instruction, 0, len(code)/4)
	offsetToIndex := make(map[uint32]InstrPtr, len(code)/4)
	indexToOffset := make([]uint32, 0, len(code)/4+1)

	for {
		if d.pos >= len(d.code) {
			return nil, nil, nil, 0, vmerr.ErrUnexpectedEof
		}
		if d.code[d.pos]>>4 == 0xF {
			sentinelByte := d.code[d.pos]
			offsetToIndex[uint32(d.pos)] = InstrPtr(len(instrs))
			indexToOffset = append(indexToOffset, uint32(d.pos))
			d.pos++
			return instrs, offsetToIndex, indexToOffset, sentinelByte, nil
		}

		startOffset := uint32(d.pos)
		instr, err := d.decodeOne()
		if err != nil {
			return nil, nil, nil, 0, err
		}
		offsetToIndex[startOffset] = InstrPtr(len(instrs))
		indexToOffset = append(indexToOffset, startOffset)
		instrs = append(instrs, instr)
	}
}

// rewriteTargets walks the decoded sequence once, replacing every branch,
// call and closure target from the raw byte offset it held during
// decoding to the instruction index assigned to that offset. A target
// with no corresponding entry is an invalid function address — the
// single correctness-critical check that lets the interpreter index the
// instruction vector directly at runtime (spec §4.2).
func rewriteTargets(instrs []Instruction, offsetToIndex map[uint32]InstrPtr) error {
	rewrite := func(raw uint32) (uint32, error) {
		idx, ok := offsetToIndex[raw]
		if !ok {
			return 0, vmerr.ErrInvalidFunctionAddress
		}
		return uint32(idx), nil
	}

	for i := range instrs {
		switch instrs[i].Op {
		case OpJmp, OpCjmp, OpCall, OpClosure:
			idx, err := rewrite(instrs[i].A)
			if err != nil {
				return err
			}
			instrs[i].A = idx
		}
	}
	return nil
}
