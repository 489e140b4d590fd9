// Package solver provides a high-level API to load logic programs and
// enumerate query solutions, hiding the abstract machine plumbing.
package solver

import (
	stderrors "errors"

	"github.com/rupertlssmith/lojix-sub004/errors"
	"github.com/rupertlssmith/lojix-sub004/logic"
	"github.com/rupertlssmith/lojix-sub004/parser"
	"github.com/rupertlssmith/lojix-sub004/symbol"
	"github.com/rupertlssmith/lojix-sub004/wam"
)

// Solution maps a query's variables to the terms they were bound to.
// Unbound and anonymous variables are absent.
type Solution map[logic.Var]logic.Term

// Solver accumulates a database of clauses and runs queries against it.
// The database is compiled lazily: asserts are cheap, and compilation
// happens on the next query.
type Solver struct {
	table   *symbol.Table
	parser  *parser.Parser
	m       *wam.Machine
	clauses []*logic.Clause
	dirty   bool

	// IterLimit bounds the machine steps of each query; 0 means no limit.
	IterLimit int
	// DebugFilename, when set, receives a JSONL trace of each query.
	DebugFilename string
	// Collector, when set, is invoked by the machine at call boundaries.
	Collector wam.Collector
}

// New creates an empty solver.
func New() *Solver {
	s := new(Solver)
	s.table = symbol.NewTable()
	s.parser = parser.New(s.table)
	return s
}

// NewFromProgram creates a solver with the program text already consulted.
func NewFromProgram(text string) (*Solver, error) {
	s := New()
	if err := s.Consult(text); err != nil {
		return nil, err
	}
	return s, nil
}

// Consult parses the program text, asserting its facts and rules.
// Queries within the text are executed immediately and must succeed.
func (s *Solver) Consult(text string) error {
	sentences, err := s.parser.ParseProgram(text)
	if err != nil {
		return err
	}
	for _, sentence := range sentences {
		if sentence.IsQuery() {
			solutions, err := s.Query(sentence.Clause.Body...)
			if err != nil {
				return err
			}
			if !solutions.Next() {
				if err := solutions.Err(); err != nil {
					return err
				}
				return errors.New("directive failed: %v", sentence)
			}
			continue
		}
		s.Assert(sentence.Clause)
	}
	return nil
}

// Assert adds clauses to the database. They take effect on the next query.
func (s *Solver) Assert(clauses ...*logic.Clause) {
	s.clauses = append(s.clauses, clauses...)
	s.dirty = true
}

// Reset discards the database and all machine state.
func (s *Solver) Reset() {
	s.table = symbol.NewTable()
	s.parser = parser.New(s.table)
	s.m = nil
	s.clauses = nil
	s.dirty = false
}

func (s *Solver) compile() error {
	if s.m != nil && !s.dirty {
		return nil
	}
	compiled, err := wam.CompileClauses(s.table, s.clauses)
	if err != nil {
		return err
	}
	m := wam.NewMachine(s.table)
	for _, clause := range compiled {
		m.AddClause(clause)
	}
	s.m = m
	s.dirty = false
	return nil
}

// Query starts the resolution of the given goals, returning a lazy
// iterator over its solutions. Each call to Next performs the search up
// to the following solution.
func (s *Solver) Query(goals ...logic.Term) (*Solutions, error) {
	if err := s.compile(); err != nil {
		return nil, err
	}
	m := s.m.Reset()
	m.IterLimit = s.IterLimit
	m.DebugFilename = s.DebugFilename
	m.Collector = s.Collector
	return &Solutions{m: m, goals: goals}, nil
}

// QueryText parses and runs a query given as text, with or without the
// leading '?-'.
func (s *Solver) QueryText(text string) (*Solutions, error) {
	goals, err := s.parser.ParseQuery(text)
	if err != nil {
		return nil, err
	}
	return s.Query(goals...)
}

// Solutions iterates over the solutions of a query, one backtracking
// step at a time.
//
//	solutions, err := s.Query(goals...)
//	if err != nil { ... }
//	for solutions.Next() {
//	    bindings := solutions.Solution()
//	    ...
//	}
//	if err := solutions.Err(); err != nil { ... }
type Solutions struct {
	m       *wam.Machine
	goals   []logic.Term
	current Solution
	err     error
	started bool
	done    bool
}

// Next searches for the next solution, reporting whether one was found.
// It returns false when the solutions are exhausted or an error occurred.
func (sols *Solutions) Next() bool {
	if sols.done {
		return false
	}
	var bindings map[logic.Var]logic.Term
	var err error
	if !sols.started {
		sols.started = true
		bindings, err = sols.m.RunQuery(sols.goals...)
	} else {
		bindings, err = sols.m.NextSolution()
	}
	if err != nil {
		sols.done = true
		if !stderrors.Is(err, wam.ErrNoMoreSolutions) {
			sols.err = err
		}
		return false
	}
	sols.current = bindings
	return true
}

// Solution returns the bindings of the last solution found by Next.
func (sols *Solutions) Solution() Solution {
	return sols.current
}

// Err returns the error that interrupted the iteration, if any. Running
// out of solutions is not an error.
func (sols *Solutions) Err() error {
	return sols.err
}

// Close stops the iteration. Next returns false after Close.
func (sols *Solutions) Close() error {
	sols.done = true
	return nil
}
