// Binary repl is an interactive shell for the logic engine: it consults
// program files and enumerates query solutions one ';' at a time.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"
	flag "github.com/spf13/pflag"

	"github.com/rupertlssmith/lojix-sub004/solver"
)

var (
	consultFiles = flag.StringSlice("consult", nil, "Files to consult, in order")
	query        = flag.String("query", "", "Initial query to issue")
	interactive  = flag.Bool("interactive", true, "Whether the REPL is interactive")
	iterLimit    = flag.Int("iter-limit", 0, "Max machine steps per query (0 = unlimited)")
	debugFile    = flag.String("debug-file", "", "File to write a JSONL machine trace")
)

type ctx struct {
	solver   *solver.Solver
	readline *readline.Instance
}

func main() {
	flag.Parse()
	if !*interactive && len(*query) == 0 {
		log.Fatal("No query provided for non-interactive REPL")
	}

	ctx := ctx{}
	ctx.solver = solver.New()
	ctx.solver.IterLimit = *iterLimit
	ctx.solver.DebugFilename = *debugFile
	for _, file := range *consultFiles {
		consultFile(ctx.solver, file)
	}

	if !*interactive {
		solutions, err := ctx.solver.QueryText(*query)
		if err != nil {
			log.Fatal(err)
		}
		hasSolutions := false
		for solutions.Next() {
			hasSolutions = true
			printSolution(solutions.Solution(), true)
		}
		if err := solutions.Err(); err != nil {
			log.Fatal(err)
		}
		if !hasSolutions {
			printSolution(nil, false)
		}
		return
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "?- ",
		HistoryFile:            "/tmp/readline-history",
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer rl.Close()
	ctx.readline = rl

	ctx.mainLoop()
}

func consultFile(s *solver.Solver, filename string) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		log.Print(err)
		return
	}
	if err := s.Consult(string(bs)); err != nil {
		log.Print(err)
		return
	}
}

func (ctx ctx) mainLoop() {
	if len(*query) > 0 {
		solutions, err := ctx.solver.QueryText(*query)
		if err != nil {
			log.Print(err)
		} else {
			ctx.enumerate(solutions)
		}
	}
	for {
		text, isClose := ctx.readQuery()
		if isClose {
			return
		}
		solutions, err := ctx.solver.QueryText(text)
		if err != nil {
			log.Print(err)
			continue
		}
		ctx.enumerate(solutions)
	}
}

// enumerate prints solutions while the user keeps asking for more with ';'.
func (ctx ctx) enumerate(solutions *solver.Solutions) {
	defer solutions.Close()
	for solutions.Next() {
		printSolution(solutions.Solution(), true)
		if isClose := ctx.readCommand(); isClose {
			return
		}
	}
	if err := solutions.Err(); err != nil {
		log.Print(err)
		return
	}
	printSolution(nil, false)
}

func (ctx ctx) readQuery() (string, bool) {
	ctx.readline.SetPrompt("?- ")
	var lines []string
	for {
		line, err := ctx.readline.Readline()
		if err != nil {
			return "", true
		}
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
		if !strings.HasSuffix(line, ".") {
			ctx.readline.SetPrompt("|  ")
			continue
		}
		break
	}
	query := strings.Join(lines, " ")
	ctx.readline.SaveHistory(query)
	return query, false
}

func printSolution(solution solver.Solution, ok bool) {
	if !ok {
		fmt.Println("false.")
		return
	}
	if len(solution) == 0 {
		fmt.Println("true")
		return
	}
	fmt.Println(solution)
}

func (ctx ctx) readCommand() bool {
	for {
		ctx.readline.SetPrompt("")
		line, err := ctx.readline.Readline()
		if err != nil {
			return true
		}
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if line == ";" {
			return false
		}
		if line == "." {
			return true
		}
		log.Print("Expecting '.' or ';'")
	}
}
