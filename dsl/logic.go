// Package dsl offers terse constructors for logic terms, meant for tests
// and programs that embed the engine without going through the parser.
package dsl

import (
	"github.com/rupertlssmith/lojix-sub004/logic"
)

func Terms(terms ...logic.Term) []logic.Term {
	return terms
}

func Atom(name string) logic.Atom {
	return logic.Atom{Name: name}
}

func Int(i int64) logic.Int {
	return logic.Int{Value: i}
}

func Float(f float64) logic.Float {
	return logic.Float{Value: f}
}

func Var(name string) logic.Var {
	return logic.NewVar(name)
}

func SVar(name string, suffix int) logic.Var {
	return logic.NewVar(name).WithSuffix(suffix)
}

func Comp(functor string, args ...logic.Term) *logic.Comp {
	return logic.NewComp(functor, args...)
}

func Indicator(name string, arity int) logic.Indicator {
	return logic.Indicator{Name: name, Arity: arity}
}

func Clause(head logic.Term, body ...logic.Term) *logic.Clause {
	return logic.NewClause(head, body...)
}

func Clauses(cs ...*logic.Clause) []*logic.Clause {
	return cs
}

func Fact(head logic.Term) logic.Sentence {
	return logic.NewSentence(logic.NewClause(head))
}

func Rule(head logic.Term, body ...logic.Term) logic.Sentence {
	return logic.NewSentence(logic.NewClause(head, body...))
}

func Query(goals ...logic.Term) logic.Sentence {
	return logic.NewQuery(goals...)
}

// ----

func List(terms ...logic.Term) logic.Term {
	return logic.NewList(terms...)
}

func IList(terms ...logic.Term) logic.Term {
	n := len(terms)
	butlast, last := terms[:n-1], terms[n-1]
	return logic.NewIncompleteList(butlast, last)
}
