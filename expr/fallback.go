//go:build !amd64

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

// The portable backend composes Go closures instead of emitting machine
// code. Same pipeline, same numeric contract through Declaration.Fn, no
// executable pages.

type execBuf struct{ n int }

func (e *execBuf) free() {}

func assemble(ev *Evaluator, p *program) (*callable, *Error) {
	var stack []func() float64
	pop := func() func() float64 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return f
	}
	for _, h := range p.stream {
		n := &p.nodes[h]
		switch n.kind {
		case nodeConst:
			c := n.cons
			stack = append(stack, func() float64 { return c.value })
		case nodeVar:
			v := n.vari
			stack = append(stack, func() float64 { return loadValue(v.addr, v.typ) })
		case nodeOp:
			switch {
			case n.direct != nil:
				d := n.direct
				arg := pop()
				load := func() float64 { return d.cons.value }
				if d.vari != nil {
					v := d.vari
					load = func() float64 { return loadValue(v.addr, v.typ) }
				}
				fn := d.op.Fn
				if d.reversed {
					stack = append(stack, func() float64 { return fn(load(), arg()) })
				} else {
					stack = append(stack, func() float64 { return fn(arg(), load()) })
				}
			case n.powChain:
				arg := pop()
				e := n.powExp
				stack = append(stack, func() float64 { return powInt(arg(), e) })
			default:
				fn := n.decl.Fn
				switch n.decl.arity() {
				case 1:
					a := pop()
					stack = append(stack, func() float64 { return fn(a()) })
				case 2:
					b := pop()
					a := pop()
					stack = append(stack, func() float64 { return fn(a(), b()) })
				}
			}
		}
	}
	if len(stack) != 1 {
		panic("expr: closure stack does not converge to one value")
	}
	return &callable{fn: stack[0]}, nil
}
