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
package main

import "os"
import "fmt"
import "time"
import "bufio"
import "strings"
import "github.com/docker/go-units"
import "github.com/fsnotify/fsnotify"
import "github.com/google/uuid"
import "github.com/launix-de/exprjit/expr"

// loadExpressions reads a newline-delimited expressions file. Lines starting
// with # are comments; blank lines are ignored.
func loadExpressions(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var expressions []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		expressions = append(expressions, line)
	}
	return expressions, scanner.Err()
}

func runBenchmark(path string, iterations int) error {
	expressions, err := loadExpressions(path)
	if err != nil {
		return err
	}
	if len(expressions) == 0 {
		fmt.Println("No expressions found in " + path)
		return nil
	}

	ev := expr.NewEvaluator()
	defer ev.Close()
	names := []string{"a", "b", "c", "x", "y", "z", "w"}
	cells := make([]float64, len(names))
	for i := range names {
		cells[i] = 1.1 * float64(i+1)
		if !ev.Bind(&cells[i], names[i]) {
			return fmt.Errorf("cannot bind %s", names[i])
		}
	}

	fmt.Printf("benchmark run %s: %d expressions, %d iterations each\n\n",
		uuid.New(), len(expressions), iterations)

	var totalDur time.Duration
	var totalCode int64
	successful := 0
	for _, e := range expressions {
		if err := ev.AssignExpression(e); err != nil {
			fmt.Printf("%-48s COMPILE ERROR: %v\n", clip(e, 48), err)
			continue
		}
		var last float64
		start := time.Now()
		for i := 0; i < iterations; i++ {
			last = ev.Evaluate()
		}
		d := time.Since(start)
		fmt.Printf("%-48s %10v/op  value=%-22v code=%s\n",
			clip(e, 48), d/time.Duration(iterations), last,
			units.BytesSize(float64(ev.CodeSize())))
		totalDur += d
		totalCode += int64(ev.CodeSize())
		successful++
	}

	fmt.Printf("\n%d/%d expressions compiled, %v total, %s of code pages\n",
		successful, len(expressions), totalDur, units.BytesSize(float64(totalCode)))
	return nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// watchBenchmark runs the benchmark once and re-runs it whenever the
// expressions file changes on disk.
func watchBenchmark(path string, iterations int) {
	rerun := func() {
		defer func() {
			if err := recover(); err != nil {
				// error happens during reload: log to console
				fmt.Println(err)
			}
		}()
		if err := runBenchmark(path, iterations); err != nil {
			fmt.Println(err)
		}
	}
	rerun()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		panic(err)
	}
	if err := watcher.Add(path); err != nil {
		panic(err)
	}
	for {
		<-watcher.Events
		// flush all other events
		for {
			time.Sleep(10 * time.Millisecond) // delay a bit, so we don't read half-written files
			select {
			case <-watcher.Events:
				// ignore
			default:
				goto to_rerun
			}
		}
	to_rerun:
		rerun()
		watcher.Add(path) // text editors rename, so we have to rewatch
	}
}
