package bytecode

import (
	"bytes"
	"fmt"

	"github.com/dchest/siphash"
	"github.com/klauspost/compress/zstd"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// fingerprintKey is a fixed key for the siphash content fingerprint. It is
// not a secret — the fingerprint is a cache/log-correlation key, not a
// MAC — so a hard-coded key is appropriate (see SPEC_FULL.md §4.1).
const fingerprintKey0, fingerprintKey1 = 0x6c616d61, 0x67766d30

// zstdMagic is the 4-byte magic number at the start of a zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Program is an immutable decoded bytecode program: the string pool, the
// public-symbols region (retained verbatim, never interpreted), the
// declared global-area size, and the fully decoded, offset-rewritten
// instruction sequence (spec §3 Decoded program).
type Program struct {
	StringPool     []byte
	PublicSymbols  []byte
	GlobalAreaSize uint32
	Instructions   []Instruction
	Fingerprint    uint64

	// indexToOffset and sentinelByte are the inverse of the byte-offset ->
	// instruction-index map built at decode time, retained so Reencode can
	// rebuild the original code region exactly (spec §8 invariant 5).
	indexToOffset []uint32
	sentinelByte  byte
}

// ResolveString resolves a string pointer to the UTF-8 text running from
// its byte offset to the next zero byte or the end of the pool.
func (p *Program) ResolveString(ptr StrPtr) (string, error) {
	offset := uint32(ptr)
	if offset > uint32(len(p.StringPool)) {
		return "", vmerr.ErrInvalidString
	}
	rest := p.StringPool[offset:]
	if end := bytes.IndexByte(rest, 0); end >= 0 {
		return string(rest[:end]), nil
	}
	return string(rest), nil
}

// End is the sentinel instruction pointer "one past the last
// instruction" — the address the top-level routine returns to.
func (p *Program) End() InstrPtr {
	return InstrPtr(len(p.Instructions))
}

// Reencode rebuilds the raw code-region bytes this program was decoded
// from, rewriting each branch/call/closure target's instruction index
// back to the byte offset it started at. Decoding a code region and then
// calling Reencode on the result reproduces the original bytes exactly,
// opcode for opcode (spec §8 invariant 5).
func (p *Program) Reencode() ([]byte, error) {
	return encodeAll(p.Instructions, p.indexToOffset, p.sentinelByte)
}

// LoadImage parses a raw bytecode image buffer into a decoded Program
// (spec §4.1). Images may optionally be zstd-compressed; the magic bytes
// are sniffed before header parsing so callers never need to know which
// form they have on disk (SPEC_FULL.md §4.1).
func LoadImage(buf []byte) (*Program, error) {
	buf, err := maybeDecompress(buf)
	if err != nil {
		return nil, err
	}

	parts, err := splitImage(buf)
	if err != nil {
		return nil, err
	}

	instrs, offsetToIndex, indexToOffset, sentinelByte, err := decodeAll(parts.code)
	if err != nil {
		return nil, err
	}
	if err := rewriteTargets(instrs, offsetToIndex); err != nil {
		return nil, err
	}

	return &Program{
		StringPool:     parts.stringPool,
		PublicSymbols:  parts.publicSymbols,
		GlobalAreaSize: parts.header.GlobalAreaSize,
		Instructions:   instrs,
		Fingerprint:    fingerprint(parts.code),
		indexToOffset:  indexToOffset,
		sentinelByte:   sentinelByte,
	}, nil
}

func maybeDecompress(buf []byte) ([]byte, error) {
	if len(buf) < 4 || !bytes.Equal(buf[:4], zstdMagic) {
		return buf, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decoder: %v", vmerr.ErrMalformedFile, err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(buf, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decode: %v", vmerr.ErrMalformedFile, err)
	}
	return out, nil
}

func fingerprint(code []byte) uint64 {
	return siphash.Hash(fingerprintKey0, fingerprintKey1, code)
}
