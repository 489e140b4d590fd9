package solver_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rupertlssmith/lojix-sub004/dsl"
	"github.com/rupertlssmith/lojix-sub004/solver"
	"github.com/rupertlssmith/lojix-sub004/test_helpers"
)

var (
	atom = dsl.Atom
	comp = dsl.Comp
	var_ = dsl.Var
)

// collect drains the solutions iterator, failing the test on error.
func collect(t *testing.T, solutions *solver.Solutions) []solver.Solution {
	t.Helper()
	var got []solver.Solution
	for solutions.Next() {
		got = append(got, solutions.Solution())
	}
	require.NoError(t, solutions.Err())
	return got
}

func TestSolver(t *testing.T) {
	s, err := solver.NewFromProgram(test_helpers.Dedent(`
		parent(tom, bob).
		parent(tom, liz).
		parent(bob, ann).
		grandparent(X, Z) :- parent(X, Y), parent(Y, Z).
	`))
	require.NoError(t, err)

	solutions, err := s.QueryText("parent(tom, X)")
	require.NoError(t, err)
	got := collect(t, solutions)
	want := []solver.Solution{
		{var_("X"): atom("bob")},
		{var_("X"): atom("liz")},
	}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("-want, +got:%s", diff)
	}

	solutions, err = s.QueryText("?- grandparent(tom, Who).")
	require.NoError(t, err)
	got = collect(t, solutions)
	want = []solver.Solution{{var_("Who"): atom("ann")}}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("-want, +got:%s", diff)
	}
}

func TestConsult_SyntaxError(t *testing.T) {
	s := solver.New()
	assert.Error(t, s.Consult("f(x"))
}

func TestConsult_Directives(t *testing.T) {
	s := solver.New()
	require.NoError(t, s.Consult("f(a). ?- f(a)."))
	assert.Error(t, s.Consult("?- f(b)."))
}

func TestAssert(t *testing.T) {
	s := solver.New()
	s.Assert(dsl.Clause(comp("f", atom("a"))))

	solutions, err := s.Query(comp("f", var_("X")))
	require.NoError(t, err)
	assert.Len(t, collect(t, solutions), 1)

	// Asserting after a query triggers a recompile on the next one.
	s.Assert(dsl.Clause(comp("f", atom("b"))))
	solutions, err = s.Query(comp("f", var_("X")))
	require.NoError(t, err)
	assert.Len(t, collect(t, solutions), 2)
}

func TestQueriesAreIndependent(t *testing.T) {
	s, err := solver.NewFromProgram("f(a). f(b).")
	require.NoError(t, err)

	sols1, err := s.QueryText("f(X)")
	require.NoError(t, err)
	require.True(t, sols1.Next())

	// A second query doesn't disturb the first iterator's machine.
	sols2, err := s.QueryText("f(X)")
	require.NoError(t, err)
	assert.Len(t, collect(t, sols2), 2)

	require.True(t, sols1.Next())
	got := sols1.Solution()
	want := solver.Solution{var_("X"): atom("b")}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("-want, +got:%s", diff)
	}
}

func TestReset(t *testing.T) {
	s, err := solver.NewFromProgram("f(a).")
	require.NoError(t, err)
	s.Reset()

	solutions, err := s.QueryText("f(X)")
	require.NoError(t, err)
	assert.Empty(t, collect(t, solutions))
}

func TestIterLimit(t *testing.T) {
	s, err := solver.NewFromProgram("loop :- loop.")
	require.NoError(t, err)
	s.IterLimit = 100

	solutions, err := s.QueryText("loop")
	require.NoError(t, err)
	assert.False(t, solutions.Next())
	assert.Error(t, solutions.Err())
}

func TestClose(t *testing.T) {
	s, err := solver.NewFromProgram("f(a). f(b).")
	require.NoError(t, err)

	solutions, err := s.QueryText("f(X)")
	require.NoError(t, err)
	require.True(t, solutions.Next())
	require.NoError(t, solutions.Close())
	assert.False(t, solutions.Next())
	assert.NoError(t, solutions.Err())
}

func TestSolutionTypes(t *testing.T) {
	s, err := solver.NewFromProgram("age(ann, 7). age(bob, 9).")
	require.NoError(t, err)

	solutions, err := s.QueryText("age(Name, Age)")
	require.NoError(t, err)
	got := collect(t, solutions)
	want := []solver.Solution{
		{var_("Name"): atom("ann"), var_("Age"): dsl.Int(7)},
		{var_("Name"): atom("bob"), var_("Age"): dsl.Int(9)},
	}
	if diff := cmp.Diff(want, got, test_helpers.TermOptions); diff != "" {
		t.Errorf("-want, +got:%s", diff)
	}
}
