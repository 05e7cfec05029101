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

// callable is one compiled expression: a nullary function returning float64.
// On amd64 it is backed by an executable page; the portable backend composes
// Go closures instead and leaves buf nil.
type callable struct {
	fn  func() float64
	buf *execBuf
}

func (c *callable) invoke() float64 { return c.fn() }

func (c *callable) codeSize() int {
	if c.buf == nil {
		return 0
	}
	return c.buf.n
}

func (c *callable) release() {
	if c.buf != nil {
		c.buf.free()
		c.buf = nil
	}
	c.fn = nil
}

// fpuStackLimit is the architectural size of the x87 register stack. The
// portable backend enforces the same limit so the depth guard behaves
// identically everywhere.
const fpuStackLimit = 8

// simulateDepth replays the evaluation stack over the postfix stream and
// rejects any program that would hold more than eight values live at once.
func simulateDepth(p *program) *Error {
	depth := 0
	for _, h := range p.stream {
		n := &p.nodes[h]
		if n.kind != nodeOp {
			depth++
			if depth > fpuStackLimit {
				return errorf(StackOverflow, 0,
					"expression needs more than %d FPU stack slots", fpuStackLimit)
			}
			continue
		}
		ar := n.arity()
		if depth < ar {
			panic("expr: evaluation stack underflow during emission")
		}
		if depth+n.stackReq() > fpuStackLimit {
			return errorf(StackOverflow, 0,
				"expression needs more than %d FPU stack slots", fpuStackLimit)
		}
		depth -= ar - 1
	}
	if depth != 1 {
		panic("expr: evaluation stack does not converge to one value")
	}
	return nil
}

// compileProgram turns an optimized postfix stream into a callable.
func compileProgram(ev *Evaluator, p *program) (*callable, *Error) {
	if err := simulateDepth(p); err != nil {
		return nil, err
	}
	return assemble(ev, p)
}
