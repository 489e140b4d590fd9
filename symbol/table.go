// Package symbol implements the interner that maps functor and variable
// names to small dense integer identifiers.
//
// Every name that instructions or heap cells refer to is interned exactly
// once, so the abstract machine compares names with a single integer (in
// practice, pointer) comparison instead of a string comparison.
//
// A Table is an explicitly owned object: callers that must agree on ids
// (parser, compiler, machine) share the same Table by reference. There is
// no ambient global table.
package symbol

import (
	"fmt"
)

// ID is a dense integer identifier for an interned name.
type ID int32

// Symbol is an interned (name, arity) pair. Two symbols interned in the
// same table are the same name if and only if they are the same pointer.
type Symbol struct {
	// ID is this symbol's position in its table.
	ID ID
	// Name is the functor or atom text.
	Name string
	// Arity is the number of args of a functor; 0 for plain atoms.
	Arity int
}

func (s *Symbol) String() string {
	return fmt.Sprintf("%s/%d", s.Name, s.Arity)
}

type key struct {
	name  string
	arity int
}

// Table interns (name, arity) pairs, assigning ids in insertion order.
type Table struct {
	syms  []*Symbol
	index map[key]*Symbol
}

// NewTable creates an empty interning table.
func NewTable() *Table {
	return &Table{index: make(map[key]*Symbol)}
}

// Intern returns the symbol for (name, arity), creating it on first use.
// Repeated calls with the same pair return the same pointer; ids are
// never reused for distinct pairs.
func (t *Table) Intern(name string, arity int) *Symbol {
	k := key{name, arity}
	if s, ok := t.index[k]; ok {
		return s
	}
	s := &Symbol{ID: ID(len(t.syms)), Name: name, Arity: arity}
	t.syms = append(t.syms, s)
	t.index[k] = s
	return s
}

// Lookup returns the symbol with the given id, or nil if it was never
// interned. It is the exact inverse of Intern.
func (t *Table) Lookup(id ID) *Symbol {
	if id < 0 || int(id) >= len(t.syms) {
		return nil
	}
	return t.syms[id]
}

// Len returns the number of interned symbols.
func (t *Table) Len() int {
	return len(t.syms)
}

// Scope interns variable names within a single sentence. Independent
// sentences never share variable identity, so a scope must be cleared (or
// discarded) between top-level facts, rules and queries.
type Scope struct {
	ids  map[string]ID
	next ID
}

// NewScope creates an empty variable scope.
func NewScope() *Scope {
	return &Scope{ids: make(map[string]ID)}
}

// Intern returns the id for a variable name within this scope, assigning
// ids densely in first-appearance order.
func (s *Scope) Intern(name string) ID {
	if id, ok := s.ids[name]; ok {
		return id
	}
	id := s.next
	s.ids[name] = id
	s.next++
	return id
}

// Clear forgets all names, making the scope ready for the next sentence.
func (s *Scope) Clear() {
	s.ids = make(map[string]ID)
	s.next = 0
}

// Len returns the number of distinct names seen since the last Clear.
func (s *Scope) Len() int {
	return len(s.ids)
}
