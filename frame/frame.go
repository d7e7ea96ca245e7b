// Package frame implements activation records and the call stack (spec
// §4.4): per-call scope for arguments and locals, and the return-address
// chain threaded through BEGIN/END.
package frame

import (
	"github.com/ktstephano-labs/lama-gvm/bytecode"
	"github.com/ktstephano-labs/lama-gvm/value"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// Record is a single activation: the callee's argument scope (sized by
// its declared argument count, initialized from the operand stack), its
// local scope (sized by its declared local count, zero-initialized), and
// the address to resume at on END.
type Record struct {
	args       []value.Value
	locals     []value.Value
	returnAddr bytecode.InstrPtr
}

// NewRecord builds a record for BEGIN(nargs, nlocals): args must already
// be exactly nargs long (popped from the operand stack in reverse order
// by the caller), and locals are allocated zero-initialized.
func NewRecord(args []value.Value, nlocals uint32, returnAddr bytecode.InstrPtr) *Record {
	locals := make([]value.Value, nlocals)
	for i := range locals {
		locals[i] = value.Int(0)
	}
	return &Record{args: args, locals: locals, returnAddr: returnAddr}
}

// Lookup resolves a Location against this record's argument or local
// scope. Any other class (global is handled by the caller; closure is
// reserved) fails with ErrUnexpectedLocation.
func (r *Record) Lookup(loc bytecode.Location) (value.Value, error) {
	switch loc.Class {
	case bytecode.ClassArg:
		if int(loc.Index) >= len(r.args) {
			return value.Value{}, vmerr.ErrIndexOutOfRange
		}
		return r.args[loc.Index], nil
	case bytecode.ClassLocal:
		if int(loc.Index) >= len(r.locals) {
			return value.Value{}, vmerr.ErrIndexOutOfRange
		}
		return r.locals[loc.Index], nil
	default:
		return value.Value{}, vmerr.ErrUnexpectedLocation
	}
}

// Set assigns v into the argument or local cell a Location cites.
func (r *Record) Set(loc bytecode.Location, v value.Value) error {
	switch loc.Class {
	case bytecode.ClassArg:
		if int(loc.Index) >= len(r.args) {
			return vmerr.ErrIndexOutOfRange
		}
		r.args[loc.Index] = v
		return nil
	case bytecode.ClassLocal:
		if int(loc.Index) >= len(r.locals) {
			return vmerr.ErrIndexOutOfRange
		}
		r.locals[loc.Index] = v
		return nil
	default:
		return vmerr.ErrUnexpectedLocation
	}
}

// NumArgs reports the declared argument count.
func (r *Record) NumArgs() int { return len(r.args) }

// NumLocals reports the declared local count.
func (r *Record) NumLocals() int { return len(r.locals) }

// CallStack is a LIFO of activation records.
type CallStack struct {
	records []*Record
}

// NewCallStack returns an empty call stack.
func NewCallStack() *CallStack {
	return &CallStack{}
}

// Begin pushes a new activation record.
func (c *CallStack) Begin(r *Record) {
	c.records = append(c.records, r)
}

// End pops the top activation record and returns the address it should
// resume at. Failing on an empty stack reports ErrCallStackUnderflow.
func (c *CallStack) End() (bytecode.InstrPtr, error) {
	n := len(c.records)
	if n == 0 {
		return 0, vmerr.ErrCallStackUnderflow
	}
	r := c.records[n-1]
	c.records = c.records[:n-1]
	return r.returnAddr, nil
}

// Top returns the active record without popping it.
func (c *CallStack) Top() (*Record, error) {
	n := len(c.records)
	if n == 0 {
		return nil, vmerr.ErrCallStackUnderflow
	}
	return c.records[n-1], nil
}

// Depth reports the number of active frames.
func (c *CallStack) Depth() int { return len(c.records) }
