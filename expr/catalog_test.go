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
	"fmt"
	"math"
	"strings"
	"testing"
)

// P7: every documented operation is declared with the right arity.
func TestCatalogTotality(t *testing.T) {
	expected := map[string]int{
		"sin": 1, "cos": 1, "tan": 1, "abs": 1, "sqrt": 1, "pow": 2,
		"exp": 1, "ln": 1, "log": 1, "log2": 1, "log10": 1, "ylog2": 2,
		"logb": 2, "min": 2, "max": 2, "floor": 1, "ceil": 1, "round": 1,
		"int": 1, "mod": 2, "less_than": 2, "sign": 1, "signp": 1,
		"bnd": 2, "bias": 2, "gain": 2, "expn": 1, "sfc": 1, "neg": 1,
		"add": 2, "sub": 2, "mul": 2, "div": 2,
	}
	for name, arity := range expected {
		def := lookupFunction(name)
		if def == nil {
			t.Errorf("%s: not declared", name)
			continue
		}
		if def.arity() != arity {
			t.Errorf("%s: arity %d, want %d", name, def.arity(), arity)
		}
		if def.Fn == nil {
			t.Errorf("%s: no portable semantics", name)
		}
	}
}

// closeEnough allows a tiny relative error for the transcendental paths.
func closeEnough(got, want float64) bool {
	if math.IsNaN(want) {
		return math.IsNaN(got)
	}
	if got == want {
		return true
	}
	return math.Abs(got-want) <= 1e-9*math.Max(1, math.Abs(want))
}

// P7 continued: compiled operations agree with the documented contract on
// sample inputs.
func TestCatalogContracts(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	x := 0.0
	ev.Bind(&x, "x") // referencing x defeats whole-expression folding

	// run each operation twice, once constant-folded and once through the
	// live variable path
	check := func(src string, arg float64, want float64) {
		t.Helper()
		lit := strings.Replace(src, "ARG", fmt.Sprintf("(%v)", arg), 1)
		if err := ev.AssignExpression(lit); err != nil {
			t.Errorf("assign %q: %v", lit, err)
			return
		}
		if got := ev.Evaluate(); !closeEnough(got, want) {
			t.Errorf("%q = %v, want %v", lit, got, want)
		}
		viaVar := strings.Replace(src, "ARG", "x", 1)
		x = arg
		if err := ev.AssignExpression(viaVar); err != nil {
			t.Errorf("assign %q: %v", viaVar, err)
			return
		}
		if got := ev.Evaluate(); !closeEnough(got, want) {
			t.Errorf("%q with x=%v = %v, want %v", viaVar, arg, got, want)
		}
	}

	check("sin(ARG)", 0.5, math.Sin(0.5))
	check("cos(ARG)", 0.5, math.Cos(0.5))
	check("tan(ARG)", 0.5, math.Tan(0.5))
	check("abs(ARG)", -3.25, 3.25)
	check("sqrt(ARG)", 9, 3)
	check("exp(ARG)", 1.25, math.Exp(1.25))
	check("ln(ARG)", 5, math.Log(5))
	check("log(ARG)", 5, math.Log(5))
	check("log2(ARG)", 8, 3)
	check("log10(ARG)", 100, 2)
	check("floor(ARG)", 2.7, 2)
	check("floor(ARG)", -2.3, -3)
	check("ceil(ARG)", 2.3, 3)
	check("ceil(ARG)", -2.7, -2)
	check("round(ARG)", 2.5, 2) // ties to even
	check("round(ARG)", 3.5, 4)
	check("int(ARG)", 2.9, 2)
	check("int(ARG)", -2.9, -2) // truncation, not floor
	check("sign(ARG)", -0.5, -1)
	check("signp(ARG)", -0.5, 0)
	check("signp(ARG)", 0.5, 1)
	check("signp(ARG)", 0, 0)
	check("expn(ARG)", 6, 2)
	check("sfc(ARG)", 6, 1.5)
	check("neg(ARG)", 1.5, -1.5)

	check("pow(ARG, 2.5)", 2, math.Pow(2, 2.5))
	check("pow(2, ARG)", 10, 1024)
	check("ylog2(3, ARG)", 8, 9)
	check("logb(2, ARG)", 32, 5)
	check("mod(ARG, 4)", 7, 3)
	check("mod(ARG, 4)", -7, -3) // sign of the dividend
	check("min(ARG, 2)", 5, 2)
	check("max(ARG, 2)", 5, 5)
	check("less_than(ARG, 2)", 1, 1)
	check("less_than(ARG, 2)", 3, 0)
	check("bnd(ARG, 3)", 7.5, 1.5)
	check("bnd(ARG, 3)", -1, 2)
	check("add(ARG, 2)", 1, 3)
	check("sub(ARG, 2)", 1, -1)
	check("mul(ARG, 2)", 3, 6)
	check("div(ARG, 2)", 3, 1.5)

	// Schlick shaping functions per the documented formulas
	bias := func(x, a float64) float64 { return x / ((1/a-2)*(1-x) + 1) }
	gain := func(x, a float64) float64 {
		k := (2*a - 1) / a * (2*x - 1)
		if 2*x < 1 {
			return x / (k + 1)
		}
		return (x - k) / (1 - k)
	}
	check("bias(ARG, 0.3)", 0.25, bias(0.25, 0.3))
	check("bias(ARG, 0.7)", 0.75, bias(0.75, 0.7))
	check("gain(ARG, 0.3)", 0.25, gain(0.25, 0.3))
	check("gain(ARG, 0.3)", 0.75, gain(0.75, 0.3))
	check("gain(ARG, 0.8)", 0.5, gain(0.5, 0.8))
}

func TestHighAccuracyTrig(t *testing.T) {
	old := Settings.HighAccuracyTrig
	defer func() { Settings.HighAccuracyTrig = old }()
	Settings.HighAccuracyTrig = true

	ev := NewEvaluator()
	defer ev.Close()
	x := 0.0
	ev.Bind(&x, "x")
	if err := ev.AssignExpression("sin(x)"); err != nil {
		t.Fatal(err)
	}
	x = 0.5
	if got := ev.Evaluate(); !closeEnough(got, math.Sin(0.5)) {
		t.Fatalf("sin(0.5) high accuracy = %v, want %v", got, math.Sin(0.5))
	}
	x = 1e8 // far outside the naive fsin comfort zone
	if got := ev.Evaluate(); math.Abs(got-math.Sin(1e8)) > 1e-6 {
		t.Fatalf("sin(1e8) high accuracy = %v, want %v", got, math.Sin(1e8))
	}
	if err := ev.AssignExpression("cos(x)"); err != nil {
		t.Fatal(err)
	}
	x = 0.5
	if got := ev.Evaluate(); !closeEnough(got, math.Cos(0.5)) {
		t.Fatalf("cos(0.5) high accuracy = %v, want %v", got, math.Cos(0.5))
	}
}

func TestDeclarationLookupIsCaseSensitive(t *testing.T) {
	if lookupFunction("Sin") != nil {
		t.Fatal("Sin should not resolve")
	}
	if lookupFunction("sin") == nil {
		t.Fatal("sin should resolve")
	}
}
