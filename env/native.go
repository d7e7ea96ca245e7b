package env

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/ktstephano-labs/lama-gvm/bytecode"
	"github.com/ktstephano-labs/lama-gvm/stack"
	"github.com/ktstephano-labs/lama-gvm/value"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// Allocator is the seam Native forwards Read/Write through, standing in
// for an external runtime the way the teacher's HardwareDevice
// implementations stand in for physical peripherals (vm/devices.go).
type Allocator interface {
	ReadLine() (string, error)
	Write(text string) error
}

// Native is a host environment whose I/O builtins are delegated to an
// Allocator rather than talking to stdio directly. Value-only builtins
// (Length, Array) are identical to Pure's and need no forwarding.
type Native struct {
	alloc Allocator
}

// NewNative builds a Native environment backed by alloc.
func NewNative(alloc Allocator) *Native {
	return &Native{alloc: alloc}
}

func (n *Native) BuiltIn(kind bytecode.BuiltinKind, arity uint32, ops *stack.Stack) (value.Value, error) {
	switch kind {
	case bytecode.BuiltinRead:
		return n.read()
	case bytecode.BuiltinWrite:
		return n.write(ops)
	case bytecode.BuiltinLength:
		return length(ops)
	case bytecode.BuiltinString:
		return unsupportedString()
	case bytecode.BuiltinArray:
		return packArray(arity, ops)
	default:
		return value.Value{}, vmerr.ErrUnknownBuiltin
	}
}

func (n *Native) Library(name string, nargs int, ops *stack.Stack) (value.Value, error) {
	kind, ok := libraryBuiltin(name)
	if !ok {
		return value.Value{}, vmerr.ErrUnknownFunction
	}
	return n.BuiltIn(kind, uint32(nargs), ops)
}

func (n *Native) read() (value.Value, error) {
	if err := n.alloc.Write("> "); err != nil {
		return value.Value{}, err
	}
	line, err := n.alloc.ReadLine()
	if err != nil && line == "" {
		return value.Value{}, &vmerr.FailureError{Text: "failed to read integer from input"}
	}
	v, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return value.Value{}, &vmerr.FailureError{Text: fmt.Sprintf("invalid integer input: %q", line)}
	}
	return value.Int(int32(v)), nil
}

func (n *Native) write(ops *stack.Stack) (value.Value, error) {
	v, err := ops.Pop()
	if err != nil {
		return value.Value{}, err
	}
	if err := n.alloc.Write(v.Text() + "\n"); err != nil {
		return value.Value{}, err
	}
	return value.Int(0), nil
}

// StdioAllocator is the default Allocator, used when there is no actual
// external runtime to forward to: it reads/writes the same buffered
// stdio Pure does, so Native degrades to Pure's observable behavior.
type StdioAllocator struct {
	in  *bufio.Reader
	out *bufio.Writer
}

// NewStdioAllocator builds an allocator over a buffered reader/writer
// pair. Callers typically share the same bufio instances used elsewhere.
func NewStdioAllocator(in *bufio.Reader, out *bufio.Writer) *StdioAllocator {
	return &StdioAllocator{in: in, out: out}
}

func (a *StdioAllocator) ReadLine() (string, error) {
	return a.in.ReadString('\n')
}

func (a *StdioAllocator) Write(text string) error {
	if _, err := a.out.WriteString(text); err != nil {
		return err
	}
	return a.out.Flush()
}
