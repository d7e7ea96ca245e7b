package bytecode

import (
	"encoding/binary"

	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// headerBytes is the fixed size of the three little-endian uint32 header
// words (spec §4.1, §6).
const headerBytes = 12

// publicSymbolWords is the number of 32-bit words reserved per declared
// public symbol; content is opaque to the core (spec §4.1).
const publicSymbolWords = 2

// Header is the three little-endian uint32 words at the start of every
// bytecode image.
type Header struct {
	StringTableSize    uint32
	GlobalAreaSize     uint32
	PublicSymbolsCount uint32
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < headerBytes {
		return Header{}, vmerr.ErrInvalidHeader
	}
	return Header{
		StringTableSize:    binary.LittleEndian.Uint32(buf[0:4]),
		GlobalAreaSize:     binary.LittleEndian.Uint32(buf[4:8]),
		PublicSymbolsCount: binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// regions is the result of carving a validated image into its three
// byte ranges (spec §4.1).
type regions struct {
	header        Header
	publicSymbols []byte
	stringPool    []byte
	code          []byte
}

func splitImage(buf []byte) (regions, error) {
	header, err := parseHeader(buf)
	if err != nil {
		return regions{}, err
	}

	rest := buf[headerBytes:]
	publicSymbolsLen := uint64(header.PublicSymbolsCount) * publicSymbolWords * 4
	stringPoolLen := uint64(header.StringTableSize)

	if uint64(len(rest)) < publicSymbolsLen+stringPoolLen {
		return regions{}, vmerr.ErrMalformedFile
	}

	publicSymbols := rest[:publicSymbolsLen]
	rest = rest[publicSymbolsLen:]
	stringPool := rest[:stringPoolLen]
	code := rest[stringPoolLen:]

	return regions{
		header:        header,
		publicSymbols: publicSymbols,
		stringPool:    stringPool,
		code:          code,
	}, nil
}
