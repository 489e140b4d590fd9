package logic_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rupertlssmith/lojix-sub004/dsl"
	"github.com/rupertlssmith/lojix-sub004/logic"
	"github.com/rupertlssmith/lojix-sub004/test_helpers"
)

var (
	atom = dsl.Atom
	int_ = dsl.Int
	comp = dsl.Comp
	var_ = dsl.Var
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		clause *logic.Clause
		want   *logic.Clause
	}{
		{
			name:   "atom head becomes 0-arity comp",
			clause: dsl.Clause(atom("f"), atom("g")),
			want:   dsl.Clause(comp("f"), comp("g")),
		},
		{
			name:   "body var becomes call goal",
			clause: dsl.Clause(comp("p", var_("X")), var_("X")),
			want:   dsl.Clause(comp("p", var_("X")), comp("call", var_("X"))),
		},
		{
			name:   "comp terms are kept",
			clause: dsl.Clause(comp("p", atom("a")), comp("q", int_(1))),
			want:   dsl.Clause(comp("p", atom("a")), comp("q", int_(1))),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.clause.Normalize()
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if diff := cmp.Diff(test.want, got, test_helpers.TermOptions); diff != "" {
				t.Errorf("-want, +got:%s", diff)
			}
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		clause *logic.Clause
	}{
		{"int head", dsl.Clause(int_(1), atom("true"))},
		{"int body term", dsl.Clause(atom("f"), int_(1))},
		{"var head", dsl.Clause(var_("X"), atom("true"))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.clause.Normalize()
			if err == nil {
				t.Fatal("expected error")
			}
			var clauseErr *logic.ClauseError
			if !errors.As(err, &clauseErr) {
				t.Errorf("expected *logic.ClauseError, got %T (%v)", err, err)
			}
		})
	}
}

func TestVars(t *testing.T) {
	term := comp("f",
		var_("X"),
		comp("g", var_("Y"), var_("X")),
		var_("Z"))
	want := []logic.Var{var_("X"), var_("Y"), var_("Z")}
	if diff := cmp.Diff(want, logic.Vars(term), test_helpers.TermOptions); diff != "" {
		t.Errorf("-want, +got:%s", diff)
	}
	if got := logic.Vars(atom("a")); got != nil {
		t.Errorf("Vars(a) = %v, want nil", got)
	}
}

func TestClauseVars(t *testing.T) {
	clause := dsl.Clause(
		comp("p", var_("X"), var_("Y")),
		comp("q", var_("Y"), var_("Z")))
	want := []logic.Var{var_("X"), var_("Y"), var_("Z")}
	if diff := cmp.Diff(want, clause.Vars(), test_helpers.TermOptions); diff != "" {
		t.Errorf("-want, +got:%s", diff)
	}
}

func TestTermString(t *testing.T) {
	tests := []struct {
		term logic.Term
		want string
	}{
		{atom("f"), "f"},
		{atom("hello world"), "'hello world'"},
		{atom("[]"), "[]"},
		{int_(42), "42"},
		{var_("X"), "X"},
		{dsl.SVar("X", 2), "X_2_"},
		{comp("f", atom("a"), int_(1)), "f(a, 1)"},
		{dsl.List(atom("a"), atom("b")), "[a, b]"},
		{dsl.IList(atom("a"), var_("T")), "[a|T]"},
		{dsl.List(), "[]"},
	}
	for _, test := range tests {
		if got := test.term.String(); got != test.want {
			t.Errorf("%v.String() = %q, want %q", test.term, got, test.want)
		}
	}
}

func TestCompare(t *testing.T) {
	// Standard order of terms: Var < Int < Float < Atom < Comp.
	ordered := []logic.Term{
		var_("A"),
		int_(1),
		int_(2),
		atom("a"),
		atom("b"),
		comp("f", atom("a")),
		comp("f", atom("b")),
		comp("g", atom("a")),
		comp("f", atom("a"), atom("b")),
	}
	for i := 0; i < len(ordered)-1; i++ {
		t1, t2 := ordered[i], ordered[i+1]
		if !logic.Less(t1, t2) {
			t.Errorf("expected %v < %v", t1, t2)
		}
		if logic.Less(t2, t1) {
			t.Errorf("expected !(%v < %v)", t2, t1)
		}
	}
	if !logic.Eq(comp("f", var_("X")), comp("f", var_("X"))) {
		t.Errorf("expected f(X) == f(X)")
	}
}

func TestNewList(t *testing.T) {
	got := dsl.List(atom("a"), atom("b"))
	want := comp(".", atom("a"), comp(".", atom("b"), atom("[]")))
	if diff := cmp.Diff(logic.Term(want), got, test_helpers.TermOptions); diff != "" {
		t.Errorf("-want, +got:%s", diff)
	}

	got = dsl.IList(atom("a"), var_("T"))
	want = comp(".", atom("a"), var_("T"))
	if diff := cmp.Diff(logic.Term(want), got, test_helpers.TermOptions); diff != "" {
		t.Errorf("-want, +got:%s", diff)
	}
}
