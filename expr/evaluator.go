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

import (
	"math"
	"unsafe"
)

// Evaluator compiles one expression at a time against a set of host-bound
// variables and keeps exactly one live callable between calls. Not safe for
// concurrent mutation; concurrent Evaluate calls are fine as long as nobody
// is mutating.
type Evaluator struct {
	constants     map[string]*Constant // named builtins: pi, e
	variables     map[string]*Variable
	literals      map[string]*Constant // current expression's literal pool
	intermediates []*Constant          // folded by the optimizer
	expression    string
	call          *callable
	retCell       *float64 // st(0) -> xmm0 marshalling slot (amd64)
	cwCell        *uint16  // saved FPU control word of the caller (amd64)
}

// NewEvaluator constructs an evaluator whose callable is the trivial
// expression 0.
func NewEvaluator() *Evaluator {
	ev := &Evaluator{
		constants: make(map[string]*Constant),
		variables: make(map[string]*Variable),
		retCell:   new(float64),
		cwCell:    new(uint16),
	}
	ev.constants["pi"] = &Constant{name: "pi", value: math.Pi}
	ev.constants["e"] = &Constant{name: "e", value: math.E}
	if err := ev.AssignExpression("0"); err != nil {
		panic(err) // only possible when the OS refuses an executable page
	}
	return ev
}

// Close releases the executable page. The evaluator must not be used
// afterwards.
func (ev *Evaluator) Close() {
	if ev.call != nil {
		ev.call.release()
		ev.call = nil
	}
}

// Evaluate runs the compiled callable. It never fails; NaN and infinities
// are normal values.
func (ev *Evaluator) Evaluate() float64 { return ev.call.invoke() }

// Expression returns the currently compiled source text.
func (ev *Evaluator) Expression() string { return ev.expression }

// CodeSize reports the size of the executable region backing the current
// callable (0 on the portable backend).
func (ev *Evaluator) CodeSize() int { return ev.call.codeSize() }

// Bind attaches host-owned storage to a name. ref must be a pointer to one
// of int16, int32, int64, float32 or float64. Binding fails when the name is
// taken by a variable, a named constant or a catalog operation.
func (ev *Evaluator) Bind(ref any, name string) bool {
	if name == "" {
		return false
	}
	if _, ok := ev.variables[name]; ok {
		return false
	}
	if _, ok := ev.constants[name]; ok {
		return false
	}
	if lookupFunction(name) != nil {
		return false
	}
	var addr unsafe.Pointer
	var typ NumericType
	switch p := ref.(type) {
	case *float64:
		addr, typ = unsafe.Pointer(p), F64
	case *float32:
		addr, typ = unsafe.Pointer(p), F32
	case *int16:
		addr, typ = unsafe.Pointer(p), I16
	case *int32:
		addr, typ = unsafe.Pointer(p), I32
	case *int64:
		addr, typ = unsafe.Pointer(p), I64
	default:
		return false
	}
	ev.variables[name] = &Variable{name: name, addr: addr, typ: typ}
	return true
}

// Unbind removes a variable binding. If the live expression references it,
// the expression is reset to 0 first so no compiled code keeps reading the
// host's memory.
func (ev *Evaluator) Unbind(name string) bool {
	v, ok := ev.variables[name]
	if !ok {
		return false
	}
	if v.referenced {
		if err := ev.AssignExpression("0"); err != nil {
			return false
		}
	}
	delete(ev.variables, name)
	return true
}

// AssignExpression compiles text and installs the resulting callable. It
// either succeeds completely or leaves every observable part of the
// evaluator untouched. An empty (or all-whitespace) text resets to the
// trivial expression 0.
func (ev *Evaluator) AssignExpression(text string) error {
	c := newCompilation()
	call, err := ev.compileText(text, c)
	if err != nil {
		if err.Kind == EmptyExpression && text != "0" {
			return ev.AssignExpression("0")
		}
		return err
	}

	old := ev.call
	ev.call = call
	if old != nil {
		old.release()
	}
	ev.literals = c.literals
	ev.intermediates = c.intermediates
	ev.expression = text
	for _, v := range ev.variables {
		v.referenced = false
	}
	for v := range c.used {
		v.referenced = true
	}
	return nil
}

func (ev *Evaluator) compileText(text string, c *compilation) (*callable, *Error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errorf(EmptyExpression, 0, "expression has no tokens")
	}
	p, err := parse(ev, text, toks, c)
	if err != nil {
		return nil, err
	}
	link(p)
	if Settings.Optimize {
		if err := optimize(ev, c, p); err != nil {
			return nil, err
		}
	}
	return compileProgram(ev, p)
}
