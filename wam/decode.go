package wam

import (
	"fmt"

	"github.com/rupertlssmith/lojix-sub004/logic"
)

// fromCells converts a slice of machine cells back into logic terms.
func fromCells(cells []Cell) []logic.Term {
	terms := make([]logic.Term, len(cells))
	for i, cell := range cells {
		terms[i] = fromCell(cell)
	}
	return terms
}

// fromCell converts a machine cell back into a logic term. Unbound refs
// become fresh variables named after their ref id.
func fromCell(cell Cell) logic.Term {
	cell = deref(cell)
	switch c := cell.(type) {
	case WAtom:
		return logic.Atom{Name: c.Sym.Name}
	case WInt:
		return logic.Int{Value: int64(c)}
	case WFloat:
		return logic.Float{Value: float64(c)}
	case *Ref:
		return logic.NewVar(fmt.Sprintf("_G%d", c.id))
	case *Struct:
		return logic.NewComp(c.Sym.Name, fromCells(c.Args)...)
	default:
		panic(fmt.Sprintf("wam.fromCell: unhandled type %T (%v)", cell, cell))
	}
}
