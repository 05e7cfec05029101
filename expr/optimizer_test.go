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

import "testing"

// optimizedProgram runs the front end and the optimizer on one expression.
func optimizedProgram(t *testing.T, ev *Evaluator, src string) *program {
	t.Helper()
	c := newCompilation()
	toks, terr := tokenize(src)
	if terr != nil {
		t.Fatal(terr)
	}
	p, perr := parse(ev, src, toks, c)
	if perr != nil {
		t.Fatal(perr)
	}
	link(p)
	if err := optimize(ev, c, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestOperandFolding(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	x := 3.0
	ev.Bind(&x, "x")

	// x+2: the literal folds into the add, leaving load + fused op.
	p := optimizedProgram(t, ev, "x+2")
	if len(p.stream) != 2 {
		t.Fatalf("x+2 stream length %d, want 2", len(p.stream))
	}
	op := &p.nodes[p.stream[1]]
	if op.direct == nil || op.direct.cons == nil || op.direct.cons.value != 2 {
		t.Fatalf("x+2 not operand-folded: %+v", op)
	}
	if op.direct.reversed {
		t.Fatal("right operand fold should not be reversed")
	}

	// 2-x: the right operand is preferred, so the variable is fused.
	p = optimizedProgram(t, ev, "2-x")
	op = &p.nodes[p.stream[1]]
	if op.direct == nil || op.direct.vari == nil || op.direct.reversed {
		t.Fatalf("2-x should fold the right operand: %+v", op)
	}

	// 2-sin(x): only the left constant is foldable, which needs the
	// reversed instruction form.
	p = optimizedProgram(t, ev, "2-sin(x)")
	op = &p.nodes[p.stream[len(p.stream)-1]]
	if op.direct == nil || op.direct.cons == nil || !op.direct.reversed {
		t.Fatalf("2-sin(x) should fold the left operand reversed: %+v", op)
	}

	// x/2 keeps operand order.
	ev2 := NewEvaluator()
	defer ev2.Close()
	y := 10.0
	ev2.Bind(&y, "y")
	if err := ev2.AssignExpression("y/2"); err != nil {
		t.Fatal(err)
	}
	if got := ev2.Evaluate(); got != 5 {
		t.Fatalf("y/2 = %v", got)
	}
	if err := ev2.AssignExpression("2/y"); err != nil {
		t.Fatal(err)
	}
	if got := ev2.Evaluate(); got != 0.2 {
		t.Fatalf("2/y = %v", got)
	}
	if err := ev2.AssignExpression("2-y"); err != nil {
		t.Fatal(err)
	}
	if got := ev2.Evaluate(); got != -8 {
		t.Fatalf("2-y = %v", got)
	}
}

func TestPowExpansion(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	x := 2.0
	ev.Bind(&x, "x")

	p := optimizedProgram(t, ev, "x^4")
	if len(p.stream) != 2 {
		t.Fatalf("x^4 stream length %d, want 2", len(p.stream))
	}
	op := &p.nodes[p.stream[1]]
	if !op.powChain || op.powExp != 4 {
		t.Fatalf("x^4 not expanded: %+v", op)
	}

	// every supported exponent evaluates exactly
	for _, c := range []struct {
		src  string
		want float64
	}{
		{"x^0", 1}, {"x^1", 2}, {"x^2", 4}, {"x^3", 8}, {"x^4", 16},
		{"x^5", 32}, {"x^6", 64}, {"x^7", 128}, {"x^8", 256},
		{"x^16", 65536}, {"x^32", 4294967296},
		{"x^-1", 0.5}, {"x^-2", 0.25}, {"x^-8", 1.0 / 256},
	} {
		if err := ev.AssignExpression(c.src); err != nil {
			t.Fatalf("assign %q: %v", c.src, err)
		}
		if got := ev.Evaluate(); got != c.want {
			t.Errorf("%q = %v, want exactly %v", c.src, got, c.want)
		}
	}

	// unsupported exponents stay on the generic path but still work
	if err := ev.AssignExpression("x^9"); err != nil {
		t.Fatal(err)
	}
	if got := ev.Evaluate(); got != 512 {
		t.Fatalf("x^9 = %v, want 512", got)
	}
}

func TestConstantFolding(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	x := 1.0
	ev.Bind(&x, "x")

	// the constant subtree (2+3)*4 collapses into one folded intermediate;
	// the variable is fused into the outer add
	p := optimizedProgram(t, ev, "x + (2+3)*4")
	if len(p.stream) != 2 {
		t.Fatalf("stream length %d, want 2 (folded load + fused add): %v", len(p.stream), p.stream)
	}
	folded := &p.nodes[p.stream[0]]
	if folded.kind != nodeConst || folded.cons.value != 20 {
		t.Fatalf("constant subtree not folded to 20: %+v", folded)
	}
	op := &p.nodes[p.stream[1]]
	if op.direct == nil || op.direct.vari == nil {
		t.Fatalf("variable not fused into the outer add: %+v", op)
	}

	// a fully constant expression folds to a single constant
	p = optimizedProgram(t, ev, "(2+3)*4 - 6/2")
	if len(p.stream) != 1 {
		t.Fatalf("stream length %d, want 1", len(p.stream))
	}
	root := &p.nodes[p.stream[0]]
	if root.kind != nodeConst || root.cons.value != 17 {
		t.Fatalf("expected folded constant 17, got %+v", root)
	}
}

func TestFoldingDoesNotTouchVariables(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	x := 7.0
	ev.Bind(&x, "x")
	if err := ev.AssignExpression("x*3"); err != nil {
		t.Fatal(err)
	}
	if got := ev.Evaluate(); got != 21 {
		t.Fatalf("x*3 = %v", got)
	}
	x = 9
	if got := ev.Evaluate(); got != 27 {
		t.Fatalf("x*3 after change = %v (variable was folded away?)", got)
	}
}

// P8: without pass A the nested sum exceeds the 8-slot FPU stack; with it,
// the same expression compiles and evaluates.
func TestStackDepthGuard(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	x := 1.5
	ev.Bind(&x, "x")
	deep := "x+(x+(x+(x+(x+(x+(x+(x+x)))))))" // nine loads live at once

	old := Settings.Optimize
	defer func() { Settings.Optimize = old }()

	Settings.Optimize = false
	err := ev.AssignExpression(deep)
	e, ok := err.(*Error)
	if !ok || e.Kind != StackOverflow {
		t.Fatalf("unoptimized deep expression: got %v, want StackOverflow", err)
	}

	Settings.Optimize = true
	if err := ev.AssignExpression(deep); err != nil {
		t.Fatalf("optimized deep expression: %v", err)
	}
	if got := ev.Evaluate(); got != 9*1.5 {
		t.Fatalf("deep sum = %v, want %v", got, 9*1.5)
	}
}

func TestOptimizerDisabledStillCorrect(t *testing.T) {
	old := Settings.Optimize
	defer func() { Settings.Optimize = old }()
	Settings.Optimize = false

	if got := evalConst(t, "2^3"); got != 8 {
		t.Fatalf("2^3 unoptimized = %v", got)
	}
	if got := evalConst(t, "1.5*4+2"); got != 8 {
		t.Fatalf("1.5*4+2 unoptimized = %v", got)
	}
}
