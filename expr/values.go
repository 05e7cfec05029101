/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package expr

import "unsafe"

// NumericType describes the in-memory representation of a bound variable.
// Whatever the representation, generated code converts to float64 on load.
type NumericType uint8

const (
	F64 NumericType = iota
	F32
	I16
	I32
	I64
)

// Constant is a float64 owned by the evaluator. Its address is embedded into
// generated code, so a Constant must stay reachable from the evaluator for as
// long as the callable that references it exists. The Go heap does not move
// objects, which makes the embedded address stable.
type Constant struct {
	name  string // textual form for literals, symbolic name for builtins
	value float64
}

func (c *Constant) Value() float64 { return c.value }

func (c *Constant) addr() unsafe.Pointer { return unsafe.Pointer(&c.value) }

// Variable references host-owned storage by raw address and type tag. The
// host guarantees the address stays valid while the variable is bound; the
// evaluator only tracks whether the current expression mentions it.
type Variable struct {
	name       string
	addr       unsafe.Pointer
	typ        NumericType
	referenced bool
}

func (v *Variable) Name() string      { return v.name }
func (v *Variable) Type() NumericType { return v.typ }

// loadValue reads a variable the way generated code does, used by the
// portable backend and by diagnostics.
func loadValue(addr unsafe.Pointer, typ NumericType) float64 {
	switch typ {
	case F64:
		return *(*float64)(addr)
	case F32:
		return float64(*(*float32)(addr))
	case I16:
		return float64(*(*int16)(addr))
	case I32:
		return float64(*(*int32)(addr))
	case I64:
		return float64(*(*int64)(addr))
	}
	return 0
}
