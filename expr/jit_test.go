//go:build amd64

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
	"testing"

	"golang.org/x/sys/unix"
)

func TestExecBufLifecycle(t *testing.T) {
	buf, err := allocExec(64)
	if err != nil {
		t.Fatalf("allocExec: %v", err)
	}
	if buf.n%unix.Getpagesize() != 0 {
		t.Fatalf("size %d is not page-rounded", buf.n)
	}
	for _, b := range buf.mem {
		if b != 0 {
			t.Fatal("page is not zero-initialized")
		}
	}
	buf.mem[0] = 0xc3 // ret
	if err := buf.makeRX(); err != nil {
		t.Fatalf("makeRX: %v", err)
	}
	buf.free()
}

func TestCompiledCodeIsPageBacked(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	if err := ev.AssignExpression("1+2"); err != nil {
		t.Fatal(err)
	}
	if ev.CodeSize() <= 0 {
		t.Fatalf("code size %d, want > 0", ev.CodeSize())
	}
	if ev.CodeSize()%unix.Getpagesize() != 0 {
		t.Fatalf("code size %d is not page-rounded", ev.CodeSize())
	}
}

// A reassign must install the new page before the result is observable and
// must not leak the old one (observable only as: the evaluator still works).
func TestReassignSwapsCallable(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	for i := 0; i < 100; i++ {
		if err := ev.AssignExpression("2*3"); err != nil {
			t.Fatal(err)
		}
		if got := ev.Evaluate(); got != 6 {
			t.Fatalf("iteration %d: %v", i, got)
		}
		if err := ev.AssignExpression("10/4"); err != nil {
			t.Fatal(err)
		}
		if got := ev.Evaluate(); got != 2.5 {
			t.Fatalf("iteration %d: %v", i, got)
		}
	}
}

// The generated code must not disturb the caller's floating point state.
func TestCallerFPStateSurvives(t *testing.T) {
	ev := NewEvaluator()
	defer ev.Close()
	x := 2.0
	ev.Bind(&x, "x")
	if err := ev.AssignExpression("floor(x/3) + sin(x)"); err != nil {
		t.Fatal(err)
	}
	a, b := 1.1, 2.2
	want := a + b
	ev.Evaluate()
	if a+b != want {
		t.Fatal("caller arithmetic disturbed")
	}
	first := ev.Evaluate()
	for i := 0; i < 10; i++ {
		if got := ev.Evaluate(); got != first {
			t.Fatalf("repeated evaluation drifted: %v vs %v", got, first)
		}
	}
}
