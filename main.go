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
/*
	exprjit runtime compiler for scalar math expressions
*/
package main

import "os"
import "fmt"
import "flag"
import "syscall"
import "os/signal"
import "crypto/rand"
import "runtime/pprof"
import "github.com/dc0d/onexit"
import "github.com/google/uuid"
import "github.com/launix-de/exprjit/expr"

// workaround for flags package to allow multiple values
type arrayFlags []string

func (i *arrayFlags) String() string {
	return "dummy"
}

func (i *arrayFlags) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func main() {
	fmt.Print(`exprjit Copyright (C) 2025, 2026   Carl-Philip Hänsch
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;

`)

	// init random generator for UUIDs
	uuid.SetRand(rand.Reader)

	// parse command line options
	var commands arrayFlags
	flag.Var(&commands, "c", "Compile and evaluate an expression")

	benchFile := ""
	flag.StringVar(&benchFile, "bench", "", "Benchmark a file of expressions (# comments, blank lines ignored)")

	iterations := 0
	flag.IntVar(&iterations, "n", 1000, "Evaluations per expression in benchmark mode")

	watch := false
	flag.BoolVar(&watch, "watch", false, "Re-run the benchmark whenever the expressions file changes")

	serve := 0
	flag.IntVar(&serve, "serve", 0, "Open the HTTP/websocket evaluation service at a given port")

	docs := ""
	flag.StringVar(&docs, "docs", "", "Write Markdown catalog documentation to a folder")

	profile := ""
	flag.StringVar(&profile, "profile", "", "Write a cpu profile to a file")

	flag.Parse()

	// install exit handler
	cancelChan := make(chan os.Signal, 1)
	signal.Notify(cancelChan, syscall.SIGTERM, syscall.SIGINT)
	go (func() {
		<-cancelChan
		onexit.ForceExit(1)
	})()
	onexit.Register(func() {
		if expr.ReplInstance != nil {
			// in case it doesn't exit properly
			expr.ReplInstance.Close()
		}
	})

	// init profiling
	if profile != "" {
		f, err := os.Create(profile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if docs != "" {
		if err := expr.WriteDocumentation(docs); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println("documentation written to " + docs)
		return
	}

	if len(commands) > 0 {
		ev := expr.NewEvaluator()
		defer ev.Close()
		for _, command := range commands {
			if err := ev.AssignExpression(command); err != nil {
				fmt.Fprintln(os.Stderr, command+": ", err)
				continue
			}
			fmt.Println(ev.Evaluate())
		}
		return
	}

	if benchFile != "" {
		if watch {
			watchBenchmark(benchFile, iterations)
			return
		}
		if err := runBenchmark(benchFile, iterations); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if serve != 0 {
		expr.HTTPServe(serve)
		fmt.Printf("evaluation service listening on :%d\n", serve)
		select {} // serve until killed
	}

	fmt.Print(`
    Type help to list operations, name = value to bind a variable

`)
	// REPL shell
	ev := expr.NewEvaluator()
	defer ev.Close()
	expr.Repl(ev)
}
