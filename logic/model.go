// Package logic implements the term model shared by the parser, the
// clause compiler and the abstract machine.
//
// A logic term falls in one of three categories:
//
// * atomic: a term that represents an immutable value (Atom, Int, Float).
//
// * variable: a term that represents an unbound, yet-to-be-resolved term.
//
// * complex: a term that contains other terms, recursively (Comp).
//
// A logic program is composed of clauses of the form 'head :- term1, term2.',
// that must be read as "head holds if term1 and term2 hold". A clause with no
// terms in the body is called a fact. Lists have no dedicated representation:
// the parser desugars them into chains of '.'/2 comps ending in the '[]' atom.
package logic

import (
	"fmt"
	"strings"
)

// ---- Basic types

// Term is a representation of a logic term.
type Term interface {
	fmt.Stringer
	vars(seen map[Var]struct{}, xs []Var) []Var
	hasVar() bool
}

// Atom is an atomic term representing a symbol.
type Atom struct {
	// Name is the identifier for an atom.
	Name string
}

// Int is an atomic term representing an integer.
type Int struct {
	// Value is the (immutable) value of an int.
	Value int64
}

// Float is an atomic term representing a floating-point number.
type Float struct {
	// Value is the (immutable) value of a float.
	Value float64
}

// Var is a variable term.
type Var struct {
	// Name is the identifier for a var.
	Name   string
	suffix int
}

// Comp is a complex term, representing an immutable compound term.
type Comp struct {
	// Functor is the primary identifier of a comp.
	Functor string
	// Args is the list of terms within this term. Argument order is
	// positionally significant and never reordered.
	Args    []Term
	hasVar_ bool
}

// Clause is the representation of a logic rule.
// Note that Clause is not a Term, so it can't be used within complex terms.
type Clause struct {
	// Head is the consequent of a clause. May be Atom or Comp.
	Head Term
	// Body is the antecedent of a clause. May be Atom, Var or Comp.
	Body    []Term
	hasVar_ bool
}

// Sentence is one top-level unit produced by the parser: either a program
// clause (fact or rule), or a query. A query is represented as a clause
// with a nil head.
type Sentence struct {
	Clause *Clause
}

// IsQuery returns whether the sentence is a query.
func (s Sentence) IsQuery() bool {
	return s.Clause.Head == nil
}

func (s Sentence) String() string {
	if s.IsQuery() {
		body := make([]string, len(s.Clause.Body))
		for i, term := range s.Clause.Body {
			body[i] = term.String()
		}
		return fmt.Sprintf("?- %s.", strings.Join(body, ", "))
	}
	return s.Clause.String()
}

// ---- Public vars

var (
	// AnonymousVar represents a variable to be ignored.
	AnonymousVar = NewVar("_")
	// EmptyList is an atom representing an empty list.
	EmptyList = Atom{"[]"}
)

// ---- Vars

// NewVar creates a new var.
//
// It panics if the name doesn't start with an uppercase letter or an underscore.
func NewVar(name string) Var {
	if !IsVar(name) {
		panic(fmt.Sprintf("NewVar: invalid name: %q", name))
	}
	return Var{name, 0}
}

// WithSuffix creates a new var with the same name and provided suffix. Used to
// generate fresh vars from the same template.
func (x Var) WithSuffix(suffix int) Var {
	if x.Name == "_" {
		return x
	}
	return Var{x.Name, suffix}
}

// ---- Compound terms

// NewComp creates a compound term.
func NewComp(functor string, terms ...Term) *Comp {
	var hasVar bool
	for _, term := range terms {
		if term.hasVar() {
			hasVar = true
			break
		}
	}
	return &Comp{Functor: functor, Args: terms, hasVar_: hasVar}
}

// Indicator is a notation for a comp, usually shown as functor/arity, e.g., f/2.
type Indicator struct {
	// Name is the compound term's functor.
	Name string
	// Arity is the compound term's number of args.
	Arity int
}

func (ind Indicator) String() string {
	return fmt.Sprintf("%s/%d", ind.Name, ind.Arity)
}

// Indicator returns the comp's indicator.
func (c *Comp) Indicator() Indicator {
	return Indicator{c.Functor, len(c.Args)}
}

// ---- Lists

// NewList creates a cons chain with the provided terms and EmptyList as tail.
func NewList(terms ...Term) Term {
	return NewIncompleteList(terms, EmptyList)
}

// NewIncompleteList creates a cons chain with the provided terms and tail.
func NewIncompleteList(terms []Term, tail Term) Term {
	list := tail
	for i := len(terms) - 1; i >= 0; i-- {
		list = NewComp(".", terms[i], list)
	}
	return list
}

// ---- Clauses

// NewClause returns a clause with the provided head and terms as body.
func NewClause(head Term, body ...Term) *Clause {
	var hasVar bool
	for _, term := range body {
		if term.hasVar() {
			hasVar = true
			break
		}
	}
	if !hasVar && head != nil {
		hasVar = head.hasVar()
	}
	return &Clause{Head: head, Body: body, hasVar_: hasVar}
}

// NewSentence returns a sentence wrapping a program clause.
func NewSentence(clause *Clause) Sentence {
	return Sentence{clause}
}

// NewQuery returns a query sentence with the provided goals.
func NewQuery(goals ...Term) Sentence {
	return Sentence{NewClause(nil, goals...)}
}

// ClauseError contains data about an invalid clause.
type ClauseError struct {
	// "head" or "body"
	TermLocation string
	Clause       *Clause
	Term         Term
}

func (err *ClauseError) Error() string {
	if err.TermLocation == "head" {
		return fmt.Sprintf("invalid head term for clause %v: %v (must be atom or comp)", err.Clause, err.Term)
	}
	return fmt.Sprintf("invalid body term for clause %v: %v (must be atom, var or comp)", err.Clause, err.Term)
}

// Normalize transforms the clause to contain only comp terms.
//
// Atoms in the clause's head and body are converted to functors with 0 arity.
// Variables in the clause's body are converted to a 'call(X)' goal.
// A head that is neither atom nor comp is a static error, detected before
// any instruction is emitted.
func (c *Clause) Normalize() (*Clause, error) {
	var head Term
	switch h := c.Head.(type) {
	case nil:
		// Queries have no head.
	case Atom:
		head = NewComp(h.Name)
	case *Comp:
		head = h
	default:
		return nil, &ClauseError{"head", c, c.Head}
	}
	body := make([]Term, len(c.Body))
	for i, term := range c.Body {
		switch t := term.(type) {
		case Atom:
			body[i] = NewComp(t.Name)
		case Var:
			body[i] = NewComp("call", t)
		case *Comp:
			body[i] = t
		default:
			return nil, &ClauseError{"body", c, term}
		}
	}
	return NewClause(head, body...), nil
}

// ---- vars()

// Vars returns a set with all term variables, in insertion order.
func Vars(term Term) []Var {
	if !term.hasVar() {
		return nil
	}
	seen := make(map[Var]struct{})
	return term.vars(seen, nil)
}

func (t Atom) vars(seen map[Var]struct{}, xs []Var) []Var  { return xs }
func (t Int) vars(seen map[Var]struct{}, xs []Var) []Var   { return xs }
func (t Float) vars(seen map[Var]struct{}, xs []Var) []Var { return xs }

func (t Var) vars(seen map[Var]struct{}, xs []Var) []Var {
	if _, ok := seen[t]; ok {
		return xs
	}
	seen[t] = struct{}{}
	return append(xs, t)
}

func (t *Comp) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	for _, term := range t.Args {
		xs = term.vars(seen, xs)
	}
	return xs
}

// Vars returns a set with all clause variables, in insertion order.
func (c *Clause) Vars() []Var {
	if !c.hasVar_ {
		return nil
	}
	seen := make(map[Var]struct{})
	var xs []Var
	if c.Head != nil {
		xs = c.Head.vars(seen, xs)
	}
	for _, term := range c.Body {
		xs = term.vars(seen, xs)
	}
	return xs
}

// ---- hasVar()

func (t Atom) hasVar() bool    { return false }
func (t Int) hasVar() bool     { return false }
func (t Float) hasVar() bool   { return false }
func (t Var) hasVar() bool     { return true }
func (t *Comp) hasVar() bool   { return t.hasVar_ }
func (c *Clause) hasVar() bool { return c.hasVar_ }

// ---- Comparisons

func termOrder(t Term) int {
	switch t.(type) {
	case Var:
		return 1
	case Int:
		return 2
	case Float:
		return 3
	case Atom:
		return 4
	case *Comp:
		return 5
	default:
		panic(fmt.Sprintf("logic.termOrder: unhandled type %T", t))
	}
}

type ordering int

const (
	less ordering = iota
	equal
	more
)

func compareStrings(s1, s2 string) ordering {
	if s1 < s2 {
		return less
	}
	if s1 > s2 {
		return more
	}
	return equal
}

func compareInts(a, b int) ordering {
	if a < b {
		return less
	}
	if a > b {
		return more
	}
	return equal
}

func compare(t1, t2 Term) ordering {
	switch u := t1.(type) {
	case Atom:
		if v, ok := t2.(Atom); ok {
			return compareStrings(u.Name, v.Name)
		}
	case Int:
		if v, ok := t2.(Int); ok {
			if u.Value < v.Value {
				return less
			}
			if u.Value > v.Value {
				return more
			}
			return equal
		}
	case Float:
		if v, ok := t2.(Float); ok {
			if u.Value < v.Value {
				return less
			}
			if u.Value > v.Value {
				return more
			}
			return equal
		}
	case Var:
		if v, ok := t2.(Var); ok {
			if o := compareStrings(u.Name, v.Name); o != equal {
				return o
			}
			return compareInts(u.suffix, v.suffix)
		}
	case *Comp:
		if v, ok := t2.(*Comp); ok {
			return u.compare(v)
		}
	default:
		panic(fmt.Sprintf("logic.compare: unhandled type %T", t1))
	}
	return compareInts(termOrder(t1), termOrder(t2))
}

func (c *Comp) compare(other *Comp) ordering {
	if o := compareInts(len(c.Args), len(other.Args)); o != equal {
		return o
	}
	if o := compareStrings(c.Functor, other.Functor); o != equal {
		return o
	}
	for i := 0; i < len(c.Args); i++ {
		if o := compare(c.Args[i], other.Args[i]); o != equal {
			return o
		}
	}
	return equal
}

// Less returns the order between t1 and t2, following the standard order of terms:
// Vars < Ints < Floats < Atoms < Comps.
func Less(t1, t2 Term) bool {
	return compare(t1, t2) == less
}

// Eq returns whether t1 and t2 are identical terms.
//
// Note that this only takes into account the structure of terms, not whether
// any binding may make them identical.
func Eq(t1, t2 Term) bool {
	return compare(t1, t2) == equal
}

// ---- String()

func (t Atom) String() string {
	return FormatAtom(t.Name)
}

func (t Int) String() string {
	return fmt.Sprintf("%d", t.Value)
}

func (t Float) String() string {
	return fmt.Sprintf("%g", t.Value)
}

func (t Var) String() string {
	suffix := ""
	if t.suffix > 0 {
		suffix = fmt.Sprintf("_%d_", t.suffix)
	}
	return fmt.Sprintf("%s%s", t.Name, suffix)
}

func (t *Comp) String() string {
	if s, ok := t.asList(); ok {
		return s
	}
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", FormatAtom(t.Functor), strings.Join(args, ", "))
}

// asList renders a '.'/2 cons chain with bracket syntax, e.g. [a, b|T].
func (t *Comp) asList() (string, bool) {
	if t.Functor != "." || len(t.Args) != 2 {
		return "", false
	}
	var elems []string
	var tail Term = t
	for {
		c, ok := tail.(*Comp)
		if !ok || c.Functor != "." || len(c.Args) != 2 {
			break
		}
		elems = append(elems, c.Args[0].String())
		tail = c.Args[1]
	}
	body := strings.Join(elems, ", ")
	if tail == Term(EmptyList) {
		return fmt.Sprintf("[%s]", body), true
	}
	return fmt.Sprintf("[%s|%v]", body, tail), true
}

func (c *Clause) String() string {
	head := "?-"
	if c.Head != nil {
		head = c.Head.String()
	}
	if len(c.Body) == 0 {
		return head + "."
	}
	body := make([]string, len(c.Body))
	for i, comp := range c.Body {
		body[i] = comp.String()
	}
	return fmt.Sprintf("%s :-\n  %s.", head, strings.Join(body, ",\n  "))
}
