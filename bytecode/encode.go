package bytecode

import (
	"encoding/binary"

	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// encoder appends opcodes and their inline little-endian operands to a
// growing byte buffer — the exact inverse of decoder (spec §4.2).
type encoder struct {
	buf []byte
}

func (e *encoder) putU8(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encoder) putU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) putI32(v int32) {
	e.putU32(uint32(v))
}

func (e *encoder) putLocation(loc Location) {
	e.putU32(loc.Index)
}

// encodeAll re-encodes a decoded instruction sequence back into its raw
// code-region bytes. indexToOffset is the inverse of the byte-offset ->
// instruction-index map built at decode time (one trailing entry for the
// past-the-end sentinel); it lets every JMP/CJMP/CALL/CLOSURE target,
// which by this point holds a rewritten instruction index, be written
// back out as the original byte offset. sentinelByte is the literal
// terminating byte the decoder consumed.
//
// This is the re-encoding half of the decode/rewrite round trip (spec §8
// invariant 5): decoding a code region, then encodeAll-ing the result
// with the retained inverse map, reproduces the original bytes exactly.
func encodeAll(instrs []Instruction, indexToOffset []uint32, sentinelByte byte) ([]byte, error) {
	e := &encoder{buf: make([]byte, 0, len(instrs)*4)}

	target := func(idx uint32) (uint32, error) {
		if int(idx) >= len(indexToOffset) {
			return 0, vmerr.ErrInvalidFunctionAddress
		}
		return indexToOffset[idx], nil
	}

	for _, instr := range instrs {
		switch instr.Op {
		case OpBinop:
			e.putU8(byte(instr.BinOp))

		case OpConst:
			e.putU8(0x10)
			e.putI32(instr.Int)
		case OpString:
			e.putU8(0x11)
			e.putU32(uint32(instr.Str))
		case OpSexp:
			e.putU8(0x12)
			e.putU32(uint32(instr.Str))
			e.putU32(instr.A)
		case OpSti:
			e.putU8(0x13)
		case OpSta:
			e.putU8(0x14)
		case OpJmp:
			e.putU8(0x15)
			off, err := target(instr.A)
			if err != nil {
				return nil, err
			}
			e.putU32(off)
		case OpEnd:
			e.putU8(0x16)
		case OpRet:
			e.putU8(0x17)
		case OpDrop:
			e.putU8(0x18)
		case OpDup:
			e.putU8(0x19)
		case OpSwap:
			e.putU8(0x1A)
		case OpElem:
			e.putU8(0x1B)

		case OpLd:
			e.putU8(0x20 | byte(instr.Loc.Class))
			e.putLocation(instr.Loc)
		case OpLda:
			e.putU8(0x30 | byte(instr.Loc.Class))
			e.putLocation(instr.Loc)
		case OpSt:
			e.putU8(0x40 | byte(instr.Loc.Class))
			e.putLocation(instr.Loc)

		case OpCjmp:
			var lo byte
			if instr.Cond == JumpNotZero {
				lo = 1
			}
			e.putU8(0x50 | lo)
			off, err := target(instr.A)
			if err != nil {
				return nil, err
			}
			e.putU32(off)
		case OpBegin:
			e.putU8(0x52)
			e.putU32(instr.A)
			e.putU32(instr.B)
		case OpCbegin:
			e.putU8(0x53)
			e.putU32(instr.A)
			e.putU32(instr.B)
		case OpClosure:
			e.putU8(0x54)
			off, err := target(instr.A)
			if err != nil {
				return nil, err
			}
			e.putU32(off)
			e.putU32(instr.B)
			for _, c := range instr.Captures {
				e.putU8(byte(c.Class))
				e.putU32(c.Index)
			}
		case OpCallc:
			e.putU8(0x55)
			e.putU32(instr.A)
		case OpCall:
			e.putU8(0x56)
			off, err := target(instr.A)
			if err != nil {
				return nil, err
			}
			e.putU32(off)
			e.putU32(instr.B)
		case OpTag:
			e.putU8(0x57)
			e.putU32(uint32(instr.Str))
			e.putU32(instr.A)
		case OpArray:
			e.putU8(0x58)
			e.putU32(instr.A)
		case OpFail:
			e.putU8(0x59)
			e.putU32(instr.A)
			e.putU32(instr.B)
		case OpLine:
			e.putU8(0x5A)
			e.putU32(instr.A)

		case OpPatt:
			e.putU8(0x60 | byte(instr.Pattern))

		case OpBuiltin:
			switch instr.Builtin {
			case BuiltinRead:
				e.putU8(0x70)
			case BuiltinWrite:
				e.putU8(0x71)
			case BuiltinLength:
				e.putU8(0x72)
			case BuiltinString:
				e.putU8(0x73)
			case BuiltinArray:
				e.putU8(0x74)
				e.putU32(instr.A)
			default:
				return nil, vmerr.ErrUnknownBuiltin
			}

		default:
			return nil, vmerr.ErrInvalidOpcode
		}
	}

	e.putU8(sentinelByte)
	return e.buf, nil
}
