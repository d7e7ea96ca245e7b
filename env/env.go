// Package env defines the host environment contract (spec §4.5): the
// pluggable capability set the interpreter calls out to for built-ins and
// named library calls. Two variants ship, Pure and Native, mirroring the
// teacher's HardwareDevice interface with interchangeable implementations
// selected at construction time (vm/devices.go).
package env

import (
	"github.com/ktstephano-labs/lama-gvm/bytecode"
	"github.com/ktstephano-labs/lama-gvm/stack"
	"github.com/ktstephano-labs/lama-gvm/value"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// Environment is the capability set the interpreter calls for BUILTIN
// instructions. Library is a separate entry point for named routines; the
// interpreter itself never calls it, since CALL always targets decoded
// program code. arity carries
// BuiltinArray's decoded element count (inline in the instruction, not
// on the operand stack); every other builtin ignores it.
type Environment interface {
	// BuiltIn executes kind, popping any arguments it needs from ops and
	// returning the result value.
	BuiltIn(kind bytecode.BuiltinKind, arity uint32, ops *stack.Stack) (value.Value, error)

	// Library invokes a named external routine by the same contract as
	// BuiltIn. Unknown names fail with ErrUnknownFunction.
	Library(name string, nargs int, ops *stack.Stack) (value.Value, error)
}

// libraryBuiltin maps the library-call names the core recognizes onto the
// builtin they're equivalent to (spec §4.5).
func libraryBuiltin(name string) (bytecode.BuiltinKind, bool) {
	switch name {
	case "Lread":
		return bytecode.BuiltinRead, true
	case "Lwrite":
		return bytecode.BuiltinWrite, true
	case "Llength":
		return bytecode.BuiltinLength, true
	default:
		return 0, false
	}
}

// length implements BuiltinLength / Llength: string, array and S-expression
// values report their element/byte count; anything else is an unexpected
// value.
func length(ops *stack.Stack) (value.Value, error) {
	v, err := ops.Pop()
	if err != nil {
		return value.Value{}, err
	}
	switch v.Kind() {
	case value.KindString:
		return value.Int(int32(len(v.Str()))), nil
	case value.KindArray, value.KindSexp:
		return value.Int(int32(len(v.Elems()))), nil
	default:
		return value.Value{}, &vmerr.UnexpectedValueError{Expected: "string, array or sexp", Found: v.Kind().String()}
	}
}

// packArray implements BUILTIN(Array(size)): pops size values (in pop
// order, i.e. top-of-stack first) and reverses them to source order
// before packing them into a fresh array value (spec §8 S5).
func packArray(size uint32, ops *stack.Stack) (value.Value, error) {
	taken, err := ops.Take(int(size))
	if err != nil {
		return value.Value{}, err
	}
	elems := make([]value.Value, len(taken))
	for i, v := range taken {
		elems[len(taken)-1-i] = v
	}
	return value.Array(elems), nil
}

// unsupportedString is the open-question BUILTIN(String) conversion
// (spec §9): no conforming semantics have been specified, so it signals
// failure rather than guessing at one.
func unsupportedString() (value.Value, error) {
	return value.Value{}, &vmerr.FailureError{Text: "string conversion is not yet specified"}
}
