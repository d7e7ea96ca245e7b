// Package value defines the runtime Value the interpreter pushes and pops
// (spec §3 Value). Values are semantically immutable once constructed;
// composite values (arrays, S-expressions) share their backing slice
// rather than copying it, the same way the teacher VM shares byte
// sub-slices of its stack instead of copying them.
package value

import (
	"fmt"
	"strings"

	"github.com/ktstephano-labs/lama-gvm/bytecode"
)

// Kind discriminates the Value variants.
type Kind byte

const (
	KindInt Kind = iota
	KindString
	KindArray
	KindSexp
	KindRef
	KindRetAddr
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindSexp:
		return "sexp"
	case KindRef:
		return "ref"
	case KindRetAddr:
		return "retaddr"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Value is the tagged variant the operand stack, activation records and
// the global scope all store.
type Value struct {
	kind Kind

	i       int32
	str     string
	elems   []Value
	tag     bytecode.StrPtr
	tagText string
	ref     bytecode.Location
	ret     bytecode.InstrPtr
}

// Int constructs an integer value.
func Int(i int32) Value { return Value{kind: KindInt, i: i} }

// String constructs a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array constructs an array value from an already source-ordered slice.
// The slice is shared, not copied.
func Array(elems []Value) Value { return Value{kind: KindArray, elems: elems} }

// Sexp constructs an S-expression value carrying the tag's string
// pointer, its resolved text (cached so the interpreter never re-resolves
// it for TAG tests), and its source-ordered operand list.
func Sexp(tag bytecode.StrPtr, tagText string, elems []Value) Value {
	return Value{kind: KindSexp, tag: tag, tagText: tagText, elems: elems}
}

// Ref constructs a first-class reference-to-location value, as produced
// by LDA.
func Ref(loc bytecode.Location) Value { return Value{kind: KindRef, ref: loc} }

// RetAddr constructs a return-address value: a decoded-instruction index
// pushed by CALL and consumed by the callee's BEGIN.
func RetAddr(addr bytecode.InstrPtr) Value { return Value{kind: KindRetAddr, ret: addr} }

// Kind reports which variant a Value holds.
func (v Value) Kind() Kind { return v.kind }

// IsInt is the `UnBoxed` predicate of the pattern-match primitives: true
// iff this value is the integer variant (spec §3 Invariants, §8 #3).
func (v Value) IsInt() bool { return v.kind == KindInt }

// IsBoxed is the negation of IsInt — every non-integer variant is boxed.
func (v Value) IsBoxed() bool { return !v.IsInt() }

// Int returns the integer payload; callers must check Kind first.
func (v Value) Int() int32 { return v.i }

// Str returns the string payload; callers must check Kind first.
func (v Value) Str() string { return v.str }

// Elems returns the shared element slice of an array or S-expression;
// callers must check Kind first.
func (v Value) Elems() []Value { return v.elems }

// Tag returns the S-expression's tag string pointer.
func (v Value) Tag() bytecode.StrPtr { return v.tag }

// TagText returns the S-expression's cached, resolved tag text.
func (v Value) TagText() string { return v.tagText }

// Ref returns the cited location of a reference value.
func (v Value) Ref() bytecode.Location { return v.ref }

// RetAddr returns the instruction index a return-address value holds.
func (v Value) RetAddr() bytecode.InstrPtr { return v.ret }

// Text renders a value's display form, as used by BUILTIN(Write)/Lwrite
// and by FAIL's error message. This matches the reference interpreter's
// Display impl byte for byte (original_source/lama-interpreter/src/value.rs):
// strings are quoted, arrays are always bracketed, S-expressions always
// carry parens (even at zero arity), and references/return-addresses use
// the reference's ref(...)/return(...) wrapper forms.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindString:
		return fmt.Sprintf("\"%s\"", v.str)
	case KindArray:
		parts := make([]string, len(v.elems))
		for i, e := range v.elems {
			parts[i] = e.Text()
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
	case KindSexp:
		parts := make([]string, len(v.elems))
		for i, e := range v.elems {
			parts[i] = e.Text()
		}
		return fmt.Sprintf("%s(%s)", v.tagText, strings.Join(parts, ", "))
	case KindRef:
		return fmt.Sprintf("ref(%s)", locationDebug(v.ref))
	case KindRetAddr:
		return fmt.Sprintf("return(%d)", v.ret)
	default:
		return "<?>"
	}
}

// locationDebug renders a Location the way the reference interpreter's
// derived Rust Debug impl does for its Location enum: the variant name
// matching its storage class, applied as a tuple constructor around the
// index (e.g. "Arg(3)", "Global(0)").
func locationDebug(loc bytecode.Location) string {
	switch loc.Class {
	case bytecode.ClassGlobal:
		return fmt.Sprintf("Global(%d)", loc.Index)
	case bytecode.ClassLocal:
		return fmt.Sprintf("Local(%d)", loc.Index)
	case bytecode.ClassArg:
		return fmt.Sprintf("Arg(%d)", loc.Index)
	case bytecode.ClassClosure:
		return fmt.Sprintf("Closure(%d)", loc.Index)
	default:
		return fmt.Sprintf("Location(%d, %d)", loc.Class, loc.Index)
	}
}
