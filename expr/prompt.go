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
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

const newprompt = "\033[32m>\033[0m "
const resultprompt = "\033[31m=\033[0m "

var ReplInstance *readline.Instance

// Repl runs the interactive shell: expressions are compiled and evaluated,
// `name = value` binds or updates a float64 variable, `help` walks the
// catalog.
func Repl(ev *Evaluator) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newprompt,
		HistoryFile:       ".exprjit-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()
	ReplInstance = l

	cells := make(map[string]*float64)
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if line == "help" || strings.HasPrefix(line, "help ") {
			Help(strings.TrimSpace(strings.TrimPrefix(line, "help")))
			continue
		}
		if name, value, ok := strings.Cut(line, "="); ok {
			replAssign(ev, cells, strings.TrimSpace(name), strings.TrimSpace(value))
			continue
		}

		// anti-panic func
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("panic:", r, string(debug.Stack()))
				}
			}()
			if err := ev.AssignExpression(line); err != nil {
				fmt.Println(err)
				return
			}
			fmt.Println(resultprompt, ev.Evaluate())
		}()
	}
}

func replAssign(ev *Evaluator, cells map[string]*float64, name, value string) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		fmt.Println("not a number:", value)
		return
	}
	if cell, ok := cells[name]; ok {
		*cell = v
		fmt.Printf("%s = %v\n", name, v)
		return
	}
	cell := new(float64)
	*cell = v
	if !ev.Bind(cell, name) {
		fmt.Println("cannot bind", name, "(name already taken)")
		return
	}
	cells[name] = cell
	fmt.Printf("%s = %v (bound)\n", name, v)
}
