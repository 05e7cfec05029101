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

import "math"

// Two passes over the linked IR. Pass A runs the per-operation peephole
// hooks from the catalog: folding one memory operand into the arithmetic
// instruction (dropping the live FPU depth by one) and expanding constant
// integer exponents of pow into multiplication chains. Pass B folds every
// operation whose remaining inputs are all constants by partially compiling
// the subtree, running it once and splicing the result back in as a folded
// intermediate constant. Both passes rebuild the stream vector instead of
// mutating it in place.

func optimize(ev *Evaluator, c *compilation, p *program) *Error {
	for idx, h := range p.stream {
		n := &p.nodes[h]
		if n.kind == nodeOp && n.decl.Optimize != nil {
			n.decl.Optimize(p, idx)
		}
	}
	rebuildStream(p)
	return foldConstants(ev, c, p)
}

func rebuildStream(p *program) {
	ns := make([]int, 0, len(p.stream))
	for _, h := range p.stream {
		if !p.nodes[h].elided {
			ns = append(ns, h)
		}
	}
	p.stream = ns
}

func (n *node) isValue() bool { return n.kind == nodeConst || n.kind == nodeVar }

// asmdOptimizer folds one Value operand of add/sub/mul/div into the
// operation itself. The right operand is preferred, like the original; when
// the left one is folded instead, the reversed instruction form is used.
// 64-bit integer variables are skipped: there is no memory-operand FPU
// instruction for them.
func asmdOptimizer(p *program, idx int) {
	h := p.stream[idx]
	n := &p.nodes[h]
	for i := len(n.args) - 1; i >= 0; i-- {
		a := &p.nodes[n.args[i]]
		if !a.isValue() {
			continue
		}
		if a.kind == nodeVar && a.vari.typ == I64 {
			continue
		}
		d := &directOperand{op: n.decl, reversed: i == 0}
		if a.kind == nodeConst {
			d.cons = a.cons
		} else {
			d.vari = a.vari
			n.varRef = true
		}
		a.elided = true
		n.direct = d
		n.args = []int{n.args[1-i]}
		return
	}
}

// powOptimizer replaces pow with a hard-coded multiplication chain when the
// exponent is a constant integer from the supported set, adding a reciprocal
// for negative exponents. The exponent constant leaves the stream.
func powOptimizer(p *program, idx int) {
	h := p.stream[idx]
	n := &p.nodes[h]
	e := &p.nodes[n.args[1]]
	if e.kind != nodeConst {
		return
	}
	v := e.cons.value
	r := math.Round(v)
	if r != v {
		return
	}
	switch math.Abs(v) {
	case 0, 1, 2, 3, 4, 5, 6, 7, 8, 16, 32:
	default:
		return
	}
	e.elided = true
	n.powChain = true
	n.powExp = int(r)
	n.args = []int{n.args[0]}
}

// foldConstants walks the postfix stream left to right. Whenever an
// operation's operands are all constants (and its specialization did not pull
// in a variable reference), the subtree is partially compiled, executed once
// and replaced by a folded intermediate constant owned by the evaluator.
func foldConstants(ev *Evaluator, c *compilation, p *program) *Error {
	i := 0
	for i < len(p.stream) {
		n := &p.nodes[p.stream[i]]
		if n.kind != nodeOp || n.varRef || !n.decl.Foldable {
			i++
			continue
		}
		ar := n.arity()
		if i < ar {
			i++
			continue
		}
		constArgs := true
		for _, h := range p.stream[i-ar : i] {
			if p.nodes[h].kind != nodeConst {
				constArgs = false
				break
			}
		}
		if !constArgs {
			i++
			continue
		}
		sub := &program{nodes: p.nodes, stream: p.stream[i-ar : i+1]}
		call, err := compileProgram(ev, sub)
		if err != nil {
			return err
		}
		v := call.invoke()
		call.release()
		fc := &Constant{value: v}
		c.intermediates = append(c.intermediates, fc)
		fh := p.addNode(node{kind: nodeConst, cons: fc})

		ns := make([]int, 0, len(p.stream)-ar)
		ns = append(ns, p.stream[:i-ar]...)
		ns = append(ns, fh)
		ns = append(ns, p.stream[i+1:]...)
		p.stream = ns
		i = i - ar + 1
	}
	return nil
}
