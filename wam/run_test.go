package wam_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rupertlssmith/lojix-sub004/logic"
	"github.com/rupertlssmith/lojix-sub004/test_helpers"
	"github.com/rupertlssmith/lojix-sub004/wam"
)

type binding = map[logic.Var]logic.Term

func TestRunQuery(t *testing.T) {
	tests := []struct {
		name    string
		program []*logic.Clause
		query   logic.Term
		want    []binding
	}{
		{
			name:    "matching fact",
			program: dslClauses(dslClause(comp("f", atom("x")))),
			query:   comp("f", var_("X")),
			want:    []binding{{var_("X"): atom("x")}},
		},
		{
			name:    "non-matching fact",
			program: dslClauses(dslClause(comp("f", atom("x")))),
			query:   comp("f", atom("y")),
			want:    nil,
		},
		{
			name: "single resolution step",
			program: dslClauses(
				dslClause(comp("g", atom("x"))),
				dslClause(comp("f", var_("X")), comp("g", var_("X")))),
			query: comp("f", var_("Y")),
			want:  []binding{{var_("Y"): atom("x")}},
		},
		{
			name: "backtracking over facts",
			program: dslClauses(
				dslClause(comp("f", atom("x"))),
				dslClause(comp("f", atom("y")))),
			query: comp("f", var_("X")),
			want: []binding{
				{var_("X"): atom("x")},
				{var_("X"): atom("y")},
			},
		},
		{
			name:    "nested structure",
			program: dslClauses(dslClause(comp("b", comp("f", atom("x"))))),
			query:   comp("b", comp("f", var_("X"))),
			want:    []binding{{var_("X"): atom("x")}},
		},
		{
			name:    "anonymous variables",
			program: dslClauses(dslClause(comp("f", var_("_"), var_("_"), var_("_")))),
			query:   comp("f", var_("_"), var_("_"), var_("_")),
			want:    []binding{{}},
		},
		{
			name: "conjunction",
			program: dslClauses(
				dslClause(comp("f", atom("a"))),
				dslClause(comp("g", atom("a"))),
				dslClause(comp("g", atom("b")))),
			query: comp(",", comp("g", var_("X")), comp("f", var_("X"))),
			want:  []binding{{var_("X"): atom("a")}},
		},
		{
			name: "trail undoes bindings",
			program: dslClauses(
				dslClause(comp("f", atom("a"), atom("b"))),
				dslClause(comp("f", atom("b"), atom("c")))),
			query: comp("f", var_("X"), atom("c")),
			want:  []binding{{var_("X"): atom("b")}},
		},
		{
			name:    "unknown predicate",
			program: dslClauses(dslClause(comp("f", atom("x")))),
			query:   comp("g", atom("x")),
			want:    nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := makeMachine(t, test.program...)
			got := allSolutions(t, m, test.query)
			if diff := cmp.Diff(test.want, got, test_helpers.TermOptions); diff != "" {
				t.Errorf("solutions: -want, +got:%s", diff)
			}
		})
	}
}

func TestNextSolution(t *testing.T) {
	// add(0, S, S).
	// add(s(A), B, s(S)) :- add(A, B, S).
	m := makeMachine(t,
		dslClause(comp("add", int_(0), var_("S"), var_("S"))),
		dslClause(
			comp("add", comp("s", var_("A")), var_("B"), comp("s", var_("S"))),
			comp("add", var_("A"), var_("B"), var_("S"))))

	peano := func(n int) logic.Term {
		term := logic.Term(int_(0))
		for i := 0; i < n; i++ {
			term = comp("s", term)
		}
		return term
	}
	got := allSolutions(t, m, comp("add", var_("X"), var_("Y"), peano(3)))
	want := []binding{
		{var_("X"): peano(0), var_("Y"): peano(3)},
		{var_("X"): peano(1), var_("Y"): peano(2)},
		{var_("X"): peano(2), var_("Y"): peano(1)},
		{var_("X"): peano(3), var_("Y"): peano(0)},
	}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("solutions: -want, +got:%s", diff)
	}
}

func TestCut(t *testing.T) {
	// first(X) :- f(X), !.
	m := makeMachine(t,
		dslClause(comp("f", atom("a"))),
		dslClause(comp("f", atom("b"))),
		dslClause(comp("first", var_("X")), comp("f", var_("X")), atom("!")))

	got := allSolutions(t, m, comp("first", var_("X")))
	want := []binding{{var_("X"): atom("a")}}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("solutions: -want, +got:%s", diff)
	}
}

func TestDisjunction(t *testing.T) {
	m := makeMachine(t)
	got := allSolutions(t, m,
		comp(";",
			comp("=", var_("X"), atom("a")),
			comp("=", var_("X"), atom("b"))))
	want := []binding{
		{var_("X"): atom("a")},
		{var_("X"): atom("b")},
	}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("solutions: -want, +got:%s", diff)
	}
}

func TestIfThenElse(t *testing.T) {
	m := makeMachine(t, dslClause(comp("f", atom("a"))))
	tests := []struct {
		name  string
		query logic.Term
		want  []binding
	}{
		{
			name: "then",
			query: comp(";",
				comp("->", comp("f", atom("a")), comp("=", var_("X"), atom("then"))),
				comp("=", var_("X"), atom("else"))),
			want: []binding{{var_("X"): atom("then")}},
		},
		{
			name: "else",
			query: comp(";",
				comp("->", comp("f", atom("b")), comp("=", var_("X"), atom("then"))),
				comp("=", var_("X"), atom("else"))),
			want: []binding{{var_("X"): atom("else")}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := allSolutions(t, m.Reset(), test.query)
			if diff := cmp.Diff(test.want, got, test_helpers.TermOptions); diff != "" {
				t.Errorf("solutions: -want, +got:%s", diff)
			}
		})
	}
}

func TestNegation(t *testing.T) {
	m := makeMachine(t, dslClause(comp("f", atom("a"))))

	if got := allSolutions(t, m.Reset(), comp("\\+", comp("f", atom("b")))); len(got) != 1 {
		t.Errorf("\\+ f(b): got %d solutions, want 1", len(got))
	}
	if got := allSolutions(t, m.Reset(), comp("\\+", comp("f", atom("a")))); len(got) != 0 {
		t.Errorf("\\+ f(a): got %d solutions, want 0", len(got))
	}

	// Bindings made inside a negated goal are undone.
	got := allSolutions(t, m.Reset(),
		comp("\\+", comp("\\+", comp("=", var_("X"), atom("a")))))
	want := []binding{{}}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("solutions: -want, +got:%s", diff)
	}
}

func TestMetaCall(t *testing.T) {
	// p(X) :- X.
	m := makeMachine(t,
		dslClause(comp("f", atom("a"))),
		dslClause(comp("p", var_("X")), var_("X")))

	got := allSolutions(t, m, comp("p", comp("f", var_("Y"))))
	want := []binding{{var_("Y"): atom("a")}}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("solutions: -want, +got:%s", diff)
	}
}

func TestMetaCallExtraParams(t *testing.T) {
	// call/2 appends its extra argument after the goal's own args.
	// p(G) :- call(G, c).
	m := makeMachine(t,
		dslClause(comp("f", atom("a"), atom("b"), atom("c"))),
		dslClause(comp("p", var_("G")), comp("call", var_("G"), atom("c"))))

	got := allSolutions(t, m, comp("p", comp("f", atom("a"), var_("X"))))
	want := []binding{{var_("X"): atom("b")}}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("solutions: -want, +got:%s", diff)
	}
}

func TestUnificationSymmetry(t *testing.T) {
	left := allSolutions(t, makeMachine(t),
		comp("=", comp("f", var_("X")), comp("f", atom("x"))))
	right := allSolutions(t, makeMachine(t),
		comp("=", comp("f", atom("x")), comp("f", var_("X"))))
	want := []binding{{var_("X"): atom("x")}}
	if diff := cmp.Diff(want, left, test_helpers.TermOptions); diff != "" {
		t.Errorf("=(f(X), f(x)): -want, +got:%s", diff)
	}
	if diff := cmp.Diff(want, right, test_helpers.TermOptions); diff != "" {
		t.Errorf("=(f(x), f(X)): -want, +got:%s", diff)
	}
}

func TestBacktrackLeavesNoBindings(t *testing.T) {
	// The first branch binds X to a and then fails. The trail must undo
	// that binding before the second branch runs, or =(X, b) would fail.
	m := makeMachine(t)
	got := allSolutions(t, m,
		comp(";",
			comp(",", comp("=", var_("X"), atom("a")), atom("fail")),
			comp("=", var_("X"), atom("b"))))
	want := []binding{{var_("X"): atom("b")}}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("solutions: -want, +got:%s", diff)
	}
}

func TestDeterminism(t *testing.T) {
	program := dslClauses(
		dslClause(comp("f", atom("a"))),
		dslClause(comp("f", atom("b"))),
		dslClause(comp("g", var_("X")), comp("f", var_("X"))))

	got1 := allSolutions(t, makeMachine(t, program...), comp("g", var_("X")))
	got2 := allSolutions(t, makeMachine(t, program...), comp("g", var_("X")))
	if diff := cmp.Diff(got1, got2, test_helpers.TermOptions); diff != "" {
		t.Errorf("runs differ: -first, +second:%s", diff)
	}
}

func TestIterLimit(t *testing.T) {
	m := makeMachine(t, dslClause(atom("loop"), atom("loop")))
	m.IterLimit = 100

	_, err := m.RunQuery(atom("loop"))
	if err == nil {
		t.Fatal("expected iteration limit error")
	}
	if errors.Is(err, wam.ErrNoMoreSolutions) {
		t.Errorf("expected iteration limit error, got exhaustion: %v", err)
	}
}

func TestReset(t *testing.T) {
	m := makeMachine(t,
		dslClause(comp("f", atom("a"))),
		dslClause(comp("f", atom("b"))))

	first := allSolutions(t, m, comp("f", var_("X")))
	second := allSolutions(t, m.Reset(), comp("f", var_("X")))
	if diff := cmp.Diff(first, second, test_helpers.TermOptions); diff != "" {
		t.Errorf("solutions after reset: -first, +second:%s", diff)
	}

	if _, err := m.Reset().NextSolution(); err == nil {
		t.Error("expected error for NextSolution without a query")
	}
}
