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

import "github.com/xyproto/env/v2"

type SettingsT struct {
	HighAccuracyTrig bool // range-reduce sin/cos arguments before fsin/fcos
	MaxFunctionArgs  int  // upper bound on catalog function arity
	Optimize         bool // run operand folding and constant folding
}

var Settings SettingsT = loadSettings()

// loadSettings reads the environment during package variable initialization,
// so the values are in place before the catalog's init() declares operations.
func loadSettings() SettingsT {
	s := SettingsT{false, 2, true}
	s.HighAccuracyTrig = env.Bool("EXPRJIT_HIGH_ACCURACY_TRIG")
	s.MaxFunctionArgs = env.Int("EXPRJIT_MAX_FUNCTION_ARGS", 2)
	if env.Bool("EXPRJIT_NO_OPTIMIZE") {
		s.Optimize = false
	}
	return s
}
