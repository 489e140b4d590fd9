package wam_test

import (
	"errors"
	"testing"

	"github.com/rupertlssmith/lojix-sub004/dsl"
	"github.com/rupertlssmith/lojix-sub004/logic"
	"github.com/rupertlssmith/lojix-sub004/symbol"
	"github.com/rupertlssmith/lojix-sub004/wam"
)

type (
	reg   = wam.RegAddr
	stack = wam.StackAddr
	watom = wam.WAtom
	wint  = wam.WInt

	put_struct     = wam.PutStruct
	put_variable   = wam.PutVariable
	put_value      = wam.PutValue
	put_constant   = wam.PutConstant
	get_struct     = wam.GetStruct
	get_variable   = wam.GetVariable
	get_value      = wam.GetValue
	get_constant   = wam.GetConstant
	set_variable   = wam.SetVariable
	set_value      = wam.SetValue
	set_constant   = wam.SetConstant
	unify_variable = wam.UnifyVariable
	unify_value    = wam.UnifyValue
	unify_constant = wam.UnifyConstant
	call           = wam.Call
	execute        = wam.Execute
	proceed        = wam.Proceed
	allocate       = wam.Allocate
	deallocate     = wam.Deallocate
	neck_cut       = wam.NeckCut
)

var (
	atom       = dsl.Atom
	int_       = dsl.Int
	comp       = dsl.Comp
	var_       = dsl.Var
	list       = dsl.List
	ilist      = dsl.IList
	dslClause  = dsl.Clause
	dslClauses = dsl.Clauses
)

// makeMachine compiles the clauses into a fresh machine with its own
// interning table.
func makeMachine(t *testing.T, clauses ...*logic.Clause) *wam.Machine {
	t.Helper()
	table := symbol.NewTable()
	m := wam.NewMachine(table)
	compiled, err := wam.CompileClauses(table, clauses)
	if err != nil {
		t.Fatalf("CompileClauses: %v", err)
	}
	for _, clause := range compiled {
		m.AddClause(clause)
	}
	return m
}

// allSolutions runs the query and keeps backtracking until exhaustion,
// returning every solution in order.
func allSolutions(t *testing.T, m *wam.Machine, query ...logic.Term) []map[logic.Var]logic.Term {
	t.Helper()
	var solutions []map[logic.Var]logic.Term
	bindings, err := m.RunQuery(query...)
	for err == nil {
		solutions = append(solutions, bindings)
		bindings, err = m.NextSolution()
	}
	if !errors.Is(err, wam.ErrNoMoreSolutions) {
		t.Fatalf("expected exhaustion, got err: %v", err)
	}
	return solutions
}
