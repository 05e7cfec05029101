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

type tokenKind uint8

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOperator // one of + - * / ^ <
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	pos  int // starting character offset in the source text
	text string
}

func isOperator(c byte) bool {
	return c == '+' || c == '-' || c == '*' || c == '/' || c == '^' || c == '<'
}

func isAlphabetic(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_'
}

func isNumeric(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// tokenize splits the expression text into tokens, recording the starting
// offset of each. Numeric literals allow a single dot and a scientific
// exponent with optional sign. Anything outside the expression alphabet is an
// UnexpectedChar error at its offset.
func tokenize(src string) ([]token, *Error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case isSpace(c):
			i++
		case isOperator(c):
			tokens = append(tokens, token{tokOperator, i, src[i : i+1]})
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, i, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, i, ")"})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, i, ","})
			i++
		case isNumeric(c) || c == '.':
			start := i
			seenDot := c == '.'
			seenDigit := isNumeric(c)
			i++
			for i < len(src) {
				c = src[i]
				if isNumeric(c) {
					seenDigit = true
					i++
					continue
				}
				if c == '.' {
					if seenDot {
						return nil, errorf(UnexpectedChar, i, "unexpected \".\" in numeric literal")
					}
					seenDot = true
					i++
					continue
				}
				break
			}
			if !seenDigit {
				return nil, errorf(UnexpectedChar, start, "expected digits in numeric literal")
			}
			// optional exponent part
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j >= len(src) {
					return nil, errorf(UnexpectedEnd, len(src), "exponent has no digits")
				}
				if !isNumeric(src[j]) {
					return nil, errorf(UnexpectedChar, j, "exponent has no digits")
				}
				for j < len(src) && isNumeric(src[j]) {
					j++
				}
				i = j
			}
			if i < len(src) && (isAlphabetic(src[i]) || src[i] == '.') {
				return nil, errorf(UnexpectedChar, i, "\"%c\" not expected in numeric literal", src[i])
			}
			tokens = append(tokens, token{tokNumber, start, src[start:i]})
		case isAlphabetic(c):
			start := i
			for i < len(src) && (isAlphabetic(src[i]) || isNumeric(src[i])) {
				i++
			}
			tokens = append(tokens, token{tokIdent, start, src[start:i]})
		default:
			return nil, errorf(UnexpectedChar, i, "\"%c\" not expected", c)
		}
	}
	return tokens, nil
}
