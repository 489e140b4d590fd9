package wam

import (
	"github.com/rupertlssmith/lojix-sub004/dsl"
	"github.com/rupertlssmith/lojix-sub004/logic"
	"github.com/rupertlssmith/lojix-sub004/symbol"
)

var (
	comp = dsl.Comp
	var_ = dsl.Var
	atom = dsl.Atom
)

// failClause is the shared target for index branches with no matching
// clause. It has no functor and is never registered in the code database.
var failClause = &Clause{NumRegisters: 0, Code: []Instruction{Fail{}}}

// Control constructs, defined by bootstrapping on the machine itself.
// Bare variables in body position are normalized to call(X), which the
// compiler turns into a call_meta instruction.
var preamble = []*logic.Clause{
	// =(X, X).
	dsl.Clause(comp("=", var_("X"), var_("X"))),

	// true.
	// false :- fail.
	dsl.Clause(atom("true")),
	dsl.Clause(atom("false"), atom("fail")),

	// ','(First, Second) :- First, Second.
	dsl.Clause(comp(",", var_("First"), var_("Second")),
		var_("First"), var_("Second")),

	// If-then-else is folded into ';', so that the cut fires within the
	// ';' activation and removes its clause alternatives along with the
	// condition's choice points. The last two clauses handle plain
	// disjunction; they can't be reached with a '->' argument, since the
	// first two clauses cut before running the chosen branch.
	//
	// ';'('->'(Cond, Then), _) :- Cond, !, Then.
	// ';'('->'(_, _), Else) :- !, Else.
	// ';'(Either, _) :- Either.
	// ';'(_, Or) :- Or.
	dsl.Clause(comp(";", comp("->", var_("Cond"), var_("Then")), var_("_")),
		var_("Cond"), atom("!"), var_("Then")),
	dsl.Clause(comp(";", comp("->", var_("_"), var_("_")), var_("Else")),
		atom("!"), var_("Else")),
	dsl.Clause(comp(";", var_("Either"), var_("_")),
		var_("Either")),
	dsl.Clause(comp(";", var_("_"), var_("Or")),
		var_("Or")),

	// '->'(Cond, Then) :- Cond, !, Then.
	dsl.Clause(comp("->", var_("Cond"), var_("Then")),
		var_("Cond"), atom("!"), var_("Then")),

	// \+(Goal) :- Goal, !, fail.
	// \+(   _).
	dsl.Clause(comp("\\+", var_("Goal")),
		var_("Goal"), atom("!"), atom("fail")),
	dsl.Clause(comp("\\+", var_("_"))),

	// \=(X, Y) :- \+(=(X, Y)).
	dsl.Clause(comp("\\=", var_("X"), var_("Y")),
		comp("\\+", comp("=", var_("X"), var_("Y")))),
}

// builtinClauses compiles the control preamble against the given table.
// A fail/0 clause is registered explicitly, so that fail also works as a
// meta-called goal and not only inlined in clause bodies.
func builtinClauses(table *symbol.Table) []*Clause {
	cs, err := CompileClauses(table, preamble)
	if err != nil {
		panic(err)
	}
	cs = append(cs, &Clause{
		Functor: table.Intern("fail", 0),
		Code:    []Instruction{Fail{}},
	})
	return cs
}
