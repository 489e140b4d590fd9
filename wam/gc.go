package wam

// Collector receives the machine's live cells at every call boundary.
//
// Cells are regular Go values collected by the runtime, so a machine
// works fine with no Collector at all. The hook exists for embedders
// that account for term memory themselves (e.g. to enforce a memory
// budget, or to snapshot reachability for analysis). It is only invoked
// between goal calls, when the machine is in a consistent state: no
// unification is in flight and every live cell is reachable from the
// reported roots.
type Collector interface {
	Collect(roots []Cell)
}

// roots gathers every cell reachable by the machine at a call boundary:
// the argument registers, the permanent vars of the environment chain,
// the saved args of each choice point, and the trailed refs.
func (m *Machine) roots() []Cell {
	var roots []Cell
	for _, cell := range m.Reg {
		if cell != nil {
			roots = append(roots, cell)
		}
	}
	for env := m.Env; env != nil; env = env.Prev {
		for _, cell := range env.PermanentVars {
			if cell != nil {
				roots = append(roots, cell)
			}
		}
	}
	for cpt := m.ChoicePoint; cpt != nil; cpt = cpt.Prev {
		for _, cell := range cpt.Args {
			if cell != nil {
				roots = append(roots, cell)
			}
		}
		for env := cpt.Env; env != nil; env = env.Prev {
			for _, cell := range env.PermanentVars {
				if cell != nil {
					roots = append(roots, cell)
				}
			}
		}
	}
	for _, ref := range m.Trail {
		roots = append(roots, ref)
	}
	return roots
}
