package symbol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rupertlssmith/lojix-sub004/symbol"
)

func TestIntern(t *testing.T) {
	table := symbol.NewTable()
	f2 := table.Intern("f", 2)
	g1 := table.Intern("g", 1)
	f1 := table.Intern("f", 1)

	assert.Same(t, f2, table.Intern("f", 2))
	assert.Same(t, f1, table.Intern("f", 1))
	assert.NotSame(t, f1, f2)

	assert.Equal(t, symbol.ID(0), f2.ID)
	assert.Equal(t, symbol.ID(1), g1.ID)
	assert.Equal(t, symbol.ID(2), f1.ID)
	assert.Equal(t, 3, table.Len())
}

func TestLookup(t *testing.T) {
	table := symbol.NewTable()
	f := table.Intern("f", 2)

	assert.Same(t, f, table.Lookup(f.ID))
	assert.Nil(t, table.Lookup(symbol.ID(99)))
	assert.Nil(t, table.Lookup(symbol.ID(-1)))
}

func TestSymbolString(t *testing.T) {
	table := symbol.NewTable()
	assert.Equal(t, "f/2", table.Intern("f", 2).String())
	assert.Equal(t, "a/0", table.Intern("a", 0).String())
}

func TestScope(t *testing.T) {
	scope := symbol.NewScope()
	x := scope.Intern("X")
	y := scope.Intern("Y")

	assert.Equal(t, symbol.ID(0), x)
	assert.Equal(t, symbol.ID(1), y)
	assert.Equal(t, x, scope.Intern("X"))
	assert.Equal(t, 2, scope.Len())

	scope.Clear()
	assert.Equal(t, 0, scope.Len())
	assert.Equal(t, symbol.ID(0), scope.Intern("Y"))
}

func TestTablesAreIndependent(t *testing.T) {
	t1, t2 := symbol.NewTable(), symbol.NewTable()
	s1 := t1.Intern("f", 2)
	s2 := t2.Intern("f", 2)

	assert.NotSame(t, s1, s2)
	assert.Equal(t, s1.ID, s2.ID)
}
