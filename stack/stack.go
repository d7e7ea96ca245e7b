// Package stack implements the interpreter's bounded operand stack (spec
// §4.3): a fixed-capacity LIFO of value.Value with take/drop/dup/swap,
// reporting overflow and underflow as errors rather than panicking.
package stack

import (
	"github.com/ktstephano-labs/lama-gvm/value"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// DefaultCapacity is the reference capacity from spec §3.
const DefaultCapacity = 100

// Stack is a fixed-capacity LIFO of value.Value.
type Stack struct {
	values   []value.Value
	capacity int
}

// New returns an empty stack with the given capacity.
func New(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{values: make([]value.Value, 0, capacity), capacity: capacity}
}

// Len reports the current depth.
func (s *Stack) Len() int { return len(s.values) }

// Push pushes v, failing with ErrValueStackOverflow at capacity.
func (s *Stack) Push(v value.Value) error {
	if len(s.values) >= s.capacity {
		return vmerr.ErrValueStackOverflow
	}
	s.values = append(s.values, v)
	return nil
}

// Pop pops and returns the top value, failing with ErrValueStackUnderflow
// on an empty stack.
func (s *Stack) Pop() (value.Value, error) {
	n := len(s.values)
	if n == 0 {
		return value.Value{}, vmerr.ErrValueStackUnderflow
	}
	v := s.values[n-1]
	s.values = s.values[:n-1]
	return v, nil
}

// Peek returns the top value without popping it.
func (s *Stack) Peek() (value.Value, error) {
	n := len(s.values)
	if n == 0 {
		return value.Value{}, vmerr.ErrValueStackUnderflow
	}
	return s.values[n-1], nil
}

// Take pops n values, returning them in pop order (top-of-stack first).
// Callers that need source order (ARRAY, SEXP) reverse the result
// themselves (spec §4.3).
func (s *Stack) Take(n int) ([]value.Value, error) {
	if n < 0 || n > len(s.values) {
		return nil, vmerr.ErrValueStackUnderflow
	}
	start := len(s.values) - n
	taken := make([]value.Value, n)
	copy(taken, s.values[start:])
	s.values = s.values[:start]
	return taken, nil
}

// Drop discards the top value.
func (s *Stack) Drop() error {
	_, err := s.Pop()
	return err
}

// Dup duplicates the top value.
func (s *Stack) Dup() error {
	v, err := s.Peek()
	if err != nil {
		return err
	}
	return s.Push(v)
}

// Swap exchanges the top two values.
func (s *Stack) Swap() error {
	n := len(s.values)
	if n < 2 {
		return vmerr.ErrValueStackUnderflow
	}
	s.values[n-1], s.values[n-2] = s.values[n-2], s.values[n-1]
	return nil
}
