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

func TestTokenize_Basic(t *testing.T) {
	toks, err := tokenize("sin(2.33 + x) / 98")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []struct {
		kind tokenKind
		pos  int
		text string
	}{
		{tokIdent, 0, "sin"},
		{tokLParen, 3, "("},
		{tokNumber, 4, "2.33"},
		{tokOperator, 9, "+"},
		{tokIdent, 11, "x"},
		{tokRParen, 12, ")"},
		{tokOperator, 14, "/"},
		{tokNumber, 16, "98"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].kind != w.kind || toks[i].pos != w.pos || toks[i].text != w.text {
			t.Errorf("token %d: got %+v, want %+v", i, toks[i], w)
		}
	}
}

func TestTokenize_ScientificNotation(t *testing.T) {
	for _, src := range []string{"1e3", "2.5e-2", "1E+10", ".5e2", "7."} {
		toks, err := tokenize(src)
		if err != nil {
			t.Fatalf("tokenize(%q): %v", src, err)
		}
		if len(toks) != 1 || toks[0].kind != tokNumber || toks[0].text != src {
			t.Errorf("tokenize(%q): got %+v", src, toks)
		}
	}
}

func TestTokenize_Errors(t *testing.T) {
	cases := []struct {
		src  string
		kind ErrorKind
		pos  int
	}{
		{"1 $ 2", UnexpectedChar, 2},
		{"1.2.3", UnexpectedChar, 3},
		{"1e", UnexpectedEnd, 2},
		{"1e+", UnexpectedEnd, 3},
		{"1e+x", UnexpectedChar, 3},
		{"2x", UnexpectedChar, 1},
	}
	for _, c := range cases {
		_, err := tokenize(c.src)
		if err == nil {
			t.Errorf("tokenize(%q): expected error", c.src)
			continue
		}
		if err.Kind != c.kind || err.Position != c.pos {
			t.Errorf("tokenize(%q): got %s@%d, want %s@%d",
				c.src, err.Kind, err.Position, c.kind, c.pos)
		}
	}
}

func TestTokenize_WhitespaceOnly(t *testing.T) {
	toks, err := tokenize(" \t\n ")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(toks) != 0 {
		t.Fatalf("expected no tokens, got %v", toks)
	}
}
