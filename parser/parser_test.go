package parser_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/rupertlssmith/lojix-sub004/dsl"
	"github.com/rupertlssmith/lojix-sub004/logic"
	"github.com/rupertlssmith/lojix-sub004/parser"
	"github.com/rupertlssmith/lojix-sub004/symbol"
	"github.com/rupertlssmith/lojix-sub004/test_helpers"
)

var (
	atom = dsl.Atom
	int_ = dsl.Int
	comp = dsl.Comp
	var_ = dsl.Var
)

func newParser() *parser.Parser {
	return parser.New(symbol.NewTable())
}

func TestParseProgram(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []logic.Sentence
	}{
		{
			name: "fact",
			text: "f(x).",
			want: []logic.Sentence{dsl.Fact(comp("f", atom("x")))},
		},
		{
			name: "rule",
			text: "f(X) :- g(X), h(X).",
			want: []logic.Sentence{dsl.Rule(
				comp("f", var_("X")),
				comp("g", var_("X")),
				comp("h", var_("X")))},
		},
		{
			name: "query",
			text: "?- f(X).",
			want: []logic.Sentence{dsl.Query(comp("f", var_("X")))},
		},
		{
			name: "program with comments",
			text: test_helpers.Dedent(`
				% facts
				g(x).
				f(X) :-
				    g(X).  % a rule
			`),
			want: []logic.Sentence{
				dsl.Fact(comp("g", atom("x"))),
				dsl.Rule(comp("f", var_("X")), comp("g", var_("X"))),
			},
		},
		{
			name: "atom fact",
			text: "halt.",
			want: []logic.Sentence{dsl.Fact(atom("halt"))},
		},
		{
			name: "lists",
			text: "f([], [a, b], [H|T]).",
			want: []logic.Sentence{dsl.Fact(comp("f",
				atom("[]"),
				dsl.List(atom("a"), atom("b")),
				dsl.IList(var_("H"), var_("T"))))},
		},
		{
			name: "quoted atoms",
			text: "f('hello world', 'a\\nb').",
			want: []logic.Sentence{dsl.Fact(comp("f",
				atom("hello world"),
				atom("a\nb")))},
		},
		{
			name: "numbers",
			text: "f(1, -2, 3.5).",
			want: []logic.Sentence{dsl.Fact(comp("f",
				int_(1),
				int_(-2),
				dsl.Float(3.5)))},
		},
		{
			name: "cut in body",
			text: "f(X) :- g(X), !.",
			want: []logic.Sentence{dsl.Rule(
				comp("f", var_("X")),
				comp("g", var_("X")),
				atom("!"))},
		},
		{
			name: "anonymous vars",
			text: "f(_, _).",
			want: []logic.Sentence{dsl.Fact(
				comp("f", logic.AnonymousVar, logic.AnonymousVar))},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := newParser().ParseProgram(test.text)
			if err != nil {
				t.Fatalf("ParseProgram: %v", err)
			}
			if diff := cmp.Diff(test.want, got, test_helpers.TermOptions); diff != "" {
				t.Errorf("-want, +got:%s", diff)
			}
		})
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []logic.Term
	}{
		{
			name: "single goal",
			text: "f(X).",
			want: []logic.Term{comp("f", var_("X"))},
		},
		{
			name: "conjunction is flattened",
			text: "?- f(X), g(X), h(X).",
			want: []logic.Term{
				comp("f", var_("X")),
				comp("g", var_("X")),
				comp("h", var_("X"))},
		},
		{
			name: "commas under disjunction are kept",
			text: "f(X) ; g(X), h(X).",
			want: []logic.Term{comp(";",
				comp("f", var_("X")),
				comp(",", comp("g", var_("X")), comp("h", var_("X"))))},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := newParser().ParseQuery(test.text)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			if diff := cmp.Diff(test.want, got, test_helpers.TermOptions); diff != "" {
				t.Errorf("-want, +got:%s", diff)
			}
		})
	}
}

func TestParseTerm(t *testing.T) {
	tests := []struct {
		name string
		text string
		want logic.Term
	}{
		{
			name: "unification operator",
			text: "X = f(Y)",
			want: comp("=", var_("X"), comp("f", var_("Y"))),
		},
		{
			name: "disjunction binds looser than conjunction",
			text: "(a ; b, c)",
			want: comp(";", atom("a"), comp(",", atom("b"), atom("c"))),
		},
		{
			name: "if-then-else",
			text: "(c -> t ; e)",
			want: comp(";", comp("->", atom("c"), atom("t")), atom("e")),
		},
		{
			name: "prefix negation",
			text: "\\+ f(X)",
			want: comp("\\+", comp("f", var_("X"))),
		},
		{
			name: "negation in functional notation",
			text: "\\+(f(X))",
			want: comp("\\+", comp("f", var_("X"))),
		},
		{
			name: "not unifiable",
			text: "X \\= a",
			want: comp("\\=", var_("X"), atom("a")),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := newParser().ParseTerm(test.text)
			if err != nil {
				t.Fatalf("ParseTerm: %v", err)
			}
			if diff := cmp.Diff(test.want, got, test_helpers.TermOptions); diff != "" {
				t.Errorf("-want, +got:%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing end dot", "f(x)"},
		{"unbalanced paren", "f(x."},
		{"empty args", "f()."},
		{"empty body", "f :- ."},
		{"missing list close", "f([a, b)."},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := newParser().ParseProgram(test.text)
			assert.Error(t, err)
		})
	}
}

func TestParse_InternsFunctors(t *testing.T) {
	table := symbol.NewTable()
	p := parser.New(table)
	if _, err := p.ParseProgram("f(a, g(b)) :- h(a)."); err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	baseline := table.Len()
	for _, want := range []*symbol.Symbol{
		table.Intern("f", 2),
		table.Intern("g", 1),
		table.Intern("h", 1),
		table.Intern("a", 0),
		table.Intern("b", 0),
	} {
		assert.NotNil(t, table.Lookup(want.ID))
	}
	assert.Equal(t, baseline, table.Len(), "parsing should have interned all functors")
}
