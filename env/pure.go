package env

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ktstephano-labs/lama-gvm/bytecode"
	"github.com/ktstephano-labs/lama-gvm/stack"
	"github.com/ktstephano-labs/lama-gvm/value"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// Pure is the canonical in-process environment: Read/Write talk directly
// to buffered stdin/stdout, flushing stdout after every write the same
// way the teacher's run loop flushes after each printed line.
type Pure struct {
	in  *bufio.Reader
	out *bufio.Writer
}

// NewPure wraps r/w in buffered I/O. Both must be non-nil; the CLI passes
// os.Stdin/os.Stdout.
func NewPure(r io.Reader, w io.Writer) *Pure {
	return &Pure{in: bufio.NewReader(r), out: bufio.NewWriter(w)}
}

func (p *Pure) BuiltIn(kind bytecode.BuiltinKind, arity uint32, ops *stack.Stack) (value.Value, error) {
	switch kind {
	case bytecode.BuiltinRead:
		return p.read()
	case bytecode.BuiltinWrite:
		return p.write(ops)
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

func (p *Pure) Library(name string, nargs int, ops *stack.Stack) (value.Value, error) {
	kind, ok := libraryBuiltin(name)
	if !ok {
		return value.Value{}, vmerr.ErrUnknownFunction
	}
	return p.BuiltIn(kind, uint32(nargs), ops)
}

func (p *Pure) read() (value.Value, error) {
	if _, err := fmt.Fprint(p.out, "> "); err != nil {
		return value.Value{}, err
	}
	if err := p.out.Flush(); err != nil {
		return value.Value{}, err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return value.Value{}, &vmerr.FailureError{Text: "failed to read integer from input"}
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return value.Value{}, &vmerr.FailureError{Text: fmt.Sprintf("invalid integer input: %q", line)}
	}
	return value.Int(int32(n)), nil
}

func (p *Pure) write(ops *stack.Stack) (value.Value, error) {
	v, err := ops.Pop()
	if err != nil {
		return value.Value{}, err
	}
	if _, err := fmt.Fprintln(p.out, v.Text()); err != nil {
		return value.Value{}, err
	}
	if err := p.out.Flush(); err != nil {
		return value.Value{}, err
	}
	return value.Int(0), nil
}
