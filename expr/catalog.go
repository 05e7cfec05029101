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
)

// Declaration describes one named operation of the catalog: its identity and
// documentation, its arity, how many FPU slots it needs beyond its operands,
// its portable semantics and an optional peephole rewrite for the optimizer.
// The catalog is built once at init time and never mutated afterwards.
type Declaration struct {
	Name         string
	Desc         string
	MinParameter int
	MaxParameter int
	Params       []DeclarationParameter
	Returns      string
	StackReq     int                        // FPU slots needed beyond the operands
	Fn           func(a ...float64) float64 // portable semantics
	Optimize     func(p *program, idx int)  // peephole hook for pass A
	Foldable     bool                       // safe to constant-fold when all args are constant
}

type DeclarationParameter struct {
	Name string
	Type string
	Desc string
}

func (d *Declaration) arity() int { return d.MaxParameter }

var declarationTitles []string
var declarations map[string]*Declaration = make(map[string]*Declaration)

func DeclareTitle(title string) {
	declarationTitles = append(declarationTitles, "#"+title)
}

func Declare(def *Declaration) {
	if def.MaxParameter > Settings.MaxFunctionArgs {
		panic("declare " + def.Name + ": arity exceeds MaxFunctionArgs")
	}
	if _, ok := declarations[def.Name]; ok {
		panic("declare " + def.Name + ": duplicate name")
	}
	declarationTitles = append(declarationTitles, def.Name)
	declarations[def.Name] = def
}

func lookupFunction(name string) *Declaration {
	return declarations[name]
}

// operatorDeclaration maps infix/unary operator spellings to catalog entries.
func operatorDeclaration(op byte, unary bool) *Declaration {
	if unary {
		if op == '-' {
			return declarations["neg"]
		}
		return nil // unary + is elided
	}
	switch op {
	case '+':
		return declarations["add"]
	case '-':
		return declarations["sub"]
	case '*':
		return declarations["mul"]
	case '/':
		return declarations["div"]
	case '^':
		return declarations["pow"]
	case '<':
		return declarations["less_than"]
	}
	return nil
}

// powInt raises b to an integer power by repeated multiplication, with a
// reciprocal for negative exponents. Exponent 0 yields 1 unconditionally,
// including on a zero base.
func powInt(b float64, e int) float64 {
	if e == 0 {
		return 1
	}
	n := e
	if n < 0 {
		n = -n
	}
	r := b
	for i := 1; i < n; i++ {
		r *= b
	}
	if e < 0 {
		return 1 / r
	}
	return r
}

// powContract implements the pow numeric contract: exact repeated
// multiplication for integer exponents up to |e|<=32, otherwise
// 2^(e*log2|b|) with the sign taken from the base sign and the parity of the
// rounded exponent. pow(0,e) is 0 for positive e.
func powContract(b, e float64) float64 {
	if r := math.Round(e); r == e && math.Abs(e) <= 32 && !math.IsInf(e, 0) {
		return powInt(b, int(r))
	}
	if b == 0 {
		if e > 0 {
			return 0
		}
		return math.Inf(1)
	}
	m := math.Exp2(e * math.Log2(math.Abs(b)))
	if b < 0 && math.Mod(math.Round(e), 2) != 0 {
		return -m
	}
	return m
}

func init() {
	DeclareTitle("Arithmetic")
	Declare(&Declaration{
		"add", "IEEE-754 double addition",
		2, 2,
		[]DeclarationParameter{
			{"a", "number", "left operand"},
			{"b", "number", "right operand"},
		}, "number", 0,
		func(a ...float64) float64 { return a[0] + a[1] },
		asmdOptimizer, true,
	})
	Declare(&Declaration{
		"sub", "IEEE-754 double subtraction",
		2, 2,
		[]DeclarationParameter{
			{"a", "number", "minuend"},
			{"b", "number", "subtrahend"},
		}, "number", 0,
		func(a ...float64) float64 { return a[0] - a[1] },
		asmdOptimizer, true,
	})
	Declare(&Declaration{
		"mul", "IEEE-754 double multiplication",
		2, 2,
		[]DeclarationParameter{
			{"a", "number", "left factor"},
			{"b", "number", "right factor"},
		}, "number", 0,
		func(a ...float64) float64 { return a[0] * a[1] },
		asmdOptimizer, true,
	})
	Declare(&Declaration{
		"div", "IEEE-754 double division",
		2, 2,
		[]DeclarationParameter{
			{"a", "number", "dividend"},
			{"b", "number", "divisor"},
		}, "number", 0,
		func(a ...float64) float64 { return a[0] / a[1] },
		asmdOptimizer, true,
	})
	Declare(&Declaration{
		"neg", "sign flip, preserves NaN payloads",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value to negate"},
		}, "number", 0,
		func(a ...float64) float64 { return -a[0] },
		nil, true,
	})
	Declare(&Declaration{
		"abs", "magnitude",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 0,
		func(a ...float64) float64 { return math.Abs(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"mod", "remainder with the sign of the dividend",
		2, 2,
		[]DeclarationParameter{
			{"a", "number", "dividend"},
			{"b", "number", "divisor"},
		}, "number", 0,
		func(a ...float64) float64 { return math.Mod(a[0], a[1]) },
		nil, true,
	})
	Declare(&Declaration{
		"min", "smaller of two values",
		2, 2,
		[]DeclarationParameter{
			{"a", "number", "first value"},
			{"b", "number", "second value"},
		}, "number", 0,
		func(a ...float64) float64 { return math.Min(a[0], a[1]) },
		nil, true,
	})
	Declare(&Declaration{
		"max", "larger of two values",
		2, 2,
		[]DeclarationParameter{
			{"a", "number", "first value"},
			{"b", "number", "second value"},
		}, "number", 0,
		func(a ...float64) float64 { return math.Max(a[0], a[1]) },
		nil, true,
	})

	DeclareTitle("Powers and Logarithms")
	Declare(&Declaration{
		"pow", "b raised to e; exact repeated multiplication for integer exponents up to 32",
		2, 2,
		[]DeclarationParameter{
			{"b", "number", "base"},
			{"e", "number", "exponent"},
		}, "number", 1,
		func(a ...float64) float64 { return powContract(a[0], a[1]) },
		powOptimizer, true,
	})
	Declare(&Declaration{
		"sqrt", "square root",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 0,
		func(a ...float64) float64 { return math.Sqrt(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"exp", "e raised to x, computed as 2^(x*log2 e)",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "exponent"},
		}, "number", 2,
		func(a ...float64) float64 { return math.Exp(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"ln", "natural logarithm",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 1,
		func(a ...float64) float64 { return math.Log(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"log", "alias of ln, kept for math.h habits",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 1,
		func(a ...float64) float64 { return math.Log(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"log2", "base-2 logarithm",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 1,
		func(a ...float64) float64 { return math.Log2(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"log10", "base-10 logarithm",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 1,
		func(a ...float64) float64 { return math.Log10(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"ylog2", "y times the base-2 logarithm of x",
		2, 2,
		[]DeclarationParameter{
			{"y", "number", "factor"},
			{"x", "number", "value"},
		}, "number", 0,
		func(a ...float64) float64 { return a[0] * math.Log2(a[1]) },
		nil, true,
	})
	Declare(&Declaration{
		"logb", "logarithm of v to base b",
		2, 2,
		[]DeclarationParameter{
			{"b", "number", "base"},
			{"v", "number", "value"},
		}, "number", 1,
		func(a ...float64) float64 { return math.Log2(a[1]) / math.Log2(a[0]) },
		nil, true,
	})

	DeclareTitle("Trigonometry")
	Declare(&Declaration{
		"sin", "sine",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "angle in radians"},
		}, "number", 1,
		func(a ...float64) float64 { return math.Sin(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"cos", "cosine",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "angle in radians"},
		}, "number", 1,
		func(a ...float64) float64 { return math.Cos(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"tan", "tangent",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "angle in radians"},
		}, "number", 1,
		func(a ...float64) float64 { return math.Tan(a[0]) },
		nil, true,
	})

	DeclareTitle("Rounding")
	Declare(&Declaration{
		"floor", "round toward negative infinity",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 0,
		func(a ...float64) float64 { return math.Floor(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"ceil", "round toward positive infinity",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 0,
		func(a ...float64) float64 { return math.Ceil(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"round", "round to nearest, ties to even",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 0,
		func(a ...float64) float64 { return math.RoundToEven(a[0]) },
		nil, true,
	})
	Declare(&Declaration{
		"int", "truncate toward zero",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 0,
		func(a ...float64) float64 { return math.Trunc(a[0]) },
		nil, true,
	})

	DeclareTitle("Comparison")
	Declare(&Declaration{
		"less_than", "1.0 if a is strictly smaller than b, else 0.0",
		2, 2,
		[]DeclarationParameter{
			{"a", "number", "left operand"},
			{"b", "number", "right operand"},
		}, "number", 0,
		func(a ...float64) float64 {
			if a[0] < a[1] {
				return 1
			}
			return 0
		},
		nil, true,
	})
	Declare(&Declaration{
		"sign", "-1.0 for negative values, +1.0 otherwise (including zero and NaN)",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 1,
		func(a ...float64) float64 {
			if a[0] < 0 {
				return -1
			}
			return 1
		},
		nil, true,
	})
	Declare(&Declaration{
		"signp", "1.0 for strictly positive values, else 0.0",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 2,
		func(a ...float64) float64 {
			if a[0] > 0 {
				return 1
			}
			return 0
		},
		nil, true,
	})

	DeclareTitle("Shaping")
	Declare(&Declaration{
		"bnd", "wrap x into [0,p): remainder plus p when the remainder is negative",
		2, 2,
		[]DeclarationParameter{
			{"x", "number", "value"},
			{"p", "number", "period, must be positive"},
		}, "number", 2,
		func(a ...float64) float64 {
			r := math.Mod(a[0], a[1])
			if r < 0 {
				r += a[1]
			}
			return r
		},
		nil, true,
	})
	Declare(&Declaration{
		"bias", "Schlick bias curve for x, a in [0,1]",
		2, 2,
		[]DeclarationParameter{
			{"x", "number", "value in [0,1]"},
			{"a", "number", "bias amount in [0,1]"},
		}, "number", 1,
		func(a ...float64) float64 {
			return a[0] / ((1/a[1]-2)*(1-a[0]) + 1)
		},
		nil, true,
	})
	Declare(&Declaration{
		"gain", "Schlick gain curve for x, a in [0,1]",
		2, 2,
		[]DeclarationParameter{
			{"x", "number", "value in [0,1]"},
			{"a", "number", "gain amount in [0,1]"},
		}, "number", 2,
		func(a ...float64) float64 {
			x, g := a[0], a[1]
			k := (2*g - 1) / g * (2*x - 1)
			if 2*x < 1 {
				return x / (k + 1)
			}
			return (x - k) / (1 - k)
		},
		nil, true,
	})
	Declare(&Declaration{
		"expn", "unbiased binary exponent of x as a double",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 1,
		func(a ...float64) float64 {
			x := a[0]
			if x == 0 {
				return math.Inf(-1)
			}
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return x
			}
			_, e := math.Frexp(x)
			return float64(e - 1)
		},
		nil, true,
	})
	Declare(&Declaration{
		"sfc", "significand of x as a double in [1,2), sign preserved",
		1, 1,
		[]DeclarationParameter{
			{"x", "number", "value"},
		}, "number", 1,
		func(a ...float64) float64 {
			x := a[0]
			if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
				return x
			}
			m, _ := math.Frexp(x)
			return m * 2
		},
		nil, true,
	})
}

// Help prints the catalog, or the documentation of a single operation.
func Help(topic string) {
	if topic == "" {
		for _, t := range declarationTitles {
			if len(t) > 0 && t[0] == '#' {
				fmt.Println("\n" + t[1:])
				continue
			}
			if def, ok := declarations[t]; ok {
				fmt.Printf("  %-10s %s\n", def.Name, def.Desc)
			}
		}
		fmt.Println("\nType help <name> for details on one operation.")
		return
	}
	def, ok := declarations[topic]
	if !ok {
		fmt.Println("unknown operation: " + topic)
		return
	}
	fmt.Printf("%s (%d args) -> %s\n%s\n", def.Name, def.arity(), def.Returns, def.Desc)
	for _, p := range def.Params {
		fmt.Printf("  %-8s %-8s %s\n", p.Name, p.Type, p.Desc)
	}
}
