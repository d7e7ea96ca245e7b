// Package global implements the fixed-size, index-addressed global scope
// (spec §3 Global scope): one cell per declared global, zero-initialized.
package global

import (
	"github.com/ktstephano-labs/lama-gvm/value"
	"github.com/ktstephano-labs/lama-gvm/vmerr"
)

// Scope is a fixed-size sequence of global cells.
type Scope struct {
	cells []value.Value
}

// New allocates a scope sized to n cells, each initialized to integer 0.
func New(n uint32) *Scope {
	cells := make([]value.Value, n)
	for i := range cells {
		cells[i] = value.Int(0)
	}
	return &Scope{cells: cells}
}

// Len reports the declared global-area size.
func (s *Scope) Len() int { return len(s.cells) }

// Lookup returns the cell at index.
func (s *Scope) Lookup(index uint32) (value.Value, error) {
	if int(index) >= len(s.cells) {
		return value.Value{}, vmerr.ErrIndexOutOfRange
	}
	return s.cells[index], nil
}

// Set assigns v into the cell at index.
func (s *Scope) Set(index uint32, v value.Value) error {
	if int(index) >= len(s.cells) {
		return vmerr.ErrIndexOutOfRange
	}
	s.cells[index] = v
	return nil
}
