package wam

import (
	"fmt"

	"github.com/rupertlssmith/lojix-sub004/errors"
	"github.com/rupertlssmith/lojix-sub004/logic"
	"github.com/rupertlssmith/lojix-sub004/symbol"
)

// CompileError represents a clause that can't be translated to instructions,
// e.g. one with a number in head position.
type CompileError struct {
	Err error
}

func (err *CompileError) Error() string {
	return fmt.Sprintf("compile: %v", err.Err)
}

func (err *CompileError) Unwrap() error {
	return err.Err
}

// ---- term -> cell/functor translation

func toConstant(t *symbol.Table, term logic.Term) Constant {
	switch c := term.(type) {
	case logic.Atom:
		return WAtom{t.Intern(c.Name, 0)}
	case logic.Int:
		return WInt(c.Value)
	case logic.Float:
		return WFloat(c.Value)
	default:
		panic(fmt.Sprintf("wam.toConstant: unhandled type %T (%v)", term, term))
	}
}

func toFunctor(t *symbol.Table, ind logic.Indicator) *symbol.Symbol {
	return t.Intern(ind.Name, ind.Arity)
}

// Compute the permanent vars of a logic clause.
//
// A permanent var is a local var in a call that is referenced in more
// than one body term. They must be stored in the environment stack, or
// otherwise they may be overwritten if stored in a register, since a
// body term may use them in any ways.
func permanentVars(clause *logic.Clause) map[logic.Var]struct{} {
	if len(clause.Body) < 2 {
		return map[logic.Var]struct{}{}
	}
	seen := make(map[logic.Var]struct{})
	perm := make(map[logic.Var]struct{})
	// Vars in head are considered to be part of the first body term.
	for _, x := range logic.Vars(clause.Head) {
		seen[x] = struct{}{}
	}
	for _, x := range logic.Vars(clause.Body[0]) {
		seen[x] = struct{}{}
	}
	// Walk through other clause terms; vars that appear in more than
	// one term are permanent.
	for _, c := range clause.Body[1:] {
		for _, x := range logic.Vars(c) {
			if _, ok := seen[x]; ok {
				perm[x] = struct{}{}
			} else {
				seen[x] = struct{}{}
			}
		}
	}
	delete(perm, logic.AnonymousVar)
	return perm
}

func numArgs(clause *logic.Clause) int {
	max := 0
	if head, ok := clause.Head.(*logic.Comp); ok {
		max = len(head.Args)
	}
	for _, term := range clause.Body {
		n := len(term.(*logic.Comp).Args)
		if n > max {
			max = n
		}
	}
	return max
}

func hasDeepcut(clause *logic.Clause) bool {
	for i, term := range clause.Body {
		if term.(*logic.Comp).Functor == "!" && i > 0 {
			return true
		}
	}
	return false
}

func hasNonLastCall(clause *logic.Clause) bool {
	for i, term := range clause.Body {
		c, ok := term.(*logic.Comp)
		if !ok {
			continue
		}
		if c.Functor == "call" && i < len(clause.Body)-1 {
			return true
		}
	}
	return false
}

type compound struct {
	t    logic.Term
	addr RegAddr
}

// compileCtx wraps all the state necessary to compile a single clause.
type compileCtx struct {
	table   *symbol.Table
	topReg  RegAddr
	seen    map[logic.Var]struct{}
	varAddr map[logic.Var]Addr
	delayed []compound
	instrs  []Instruction
}

func newCompileCtx(table *symbol.Table, numArgs int) *compileCtx {
	return &compileCtx{
		table:   table,
		topReg:  RegAddr(numArgs),
		seen:    make(map[logic.Var]struct{}),
		varAddr: make(map[logic.Var]Addr),
	}
}

// ---- get/unify/put variables

func (ctx *compileCtx) getVar(x logic.Var, regAddr RegAddr) Instruction {
	if x == logic.AnonymousVar {
		return nil
	}
	if _, ok := ctx.seen[x]; ok {
		return GetValue{ctx.varAddr[x], regAddr}
	}
	ctx.seen[x] = struct{}{}
	return GetVariable{ctx.varAddr[x], regAddr}
}

func (ctx *compileCtx) unifyVar(x logic.Var) Instruction {
	if x == logic.AnonymousVar {
		return UnifyVoid{1}
	}
	if _, ok := ctx.seen[x]; ok {
		return UnifyValue{ctx.varAddr[x]}
	}
	ctx.seen[x] = struct{}{}
	return UnifyVariable{ctx.varAddr[x]}
}

func (ctx *compileCtx) putVar(x logic.Var, regAddr RegAddr) Instruction {
	if x == logic.AnonymousVar {
		addr := ctx.topReg
		ctx.topReg++
		return PutVariable{addr, regAddr}
	}
	if _, ok := ctx.seen[x]; ok {
		return PutValue{ctx.varAddr[x], regAddr}
	}
	ctx.seen[x] = struct{}{}
	return PutVariable{ctx.varAddr[x], regAddr}
}

func (ctx *compileCtx) setVar(x logic.Var) Instruction {
	if x == logic.AnonymousVar {
		return SetVoid{1}
	}
	if _, ok := ctx.seen[x]; ok {
		return SetValue{ctx.varAddr[x]}
	}
	ctx.seen[x] = struct{}{}
	return SetVariable{ctx.varAddr[x]}
}

// ---- get terms

func (ctx *compileCtx) getTerm(term logic.Term, addr RegAddr) []Instruction {
	switch t := term.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return []Instruction{GetConstant{toConstant(ctx.table, t), addr}}
	case logic.Var:
		return []Instruction{ctx.getVar(t, addr)}
	case *logic.Comp:
		instrs := make([]Instruction, len(t.Args)+1)
		instrs[0] = GetStruct{toFunctor(ctx.table, t.Indicator()), addr}
		for i, arg := range t.Args {
			instrs[i+1] = ctx.unifyArg(arg)
		}
		return instrs
	default:
		panic(fmt.Sprintf("wam.getTerm: unhandled type %T (%v)", term, term))
	}
}

// ---- unify terms

func (ctx *compileCtx) delayComplexArg(arg logic.Term) Instruction {
	addr := ctx.topReg
	ctx.topReg++
	ctx.delayed = append(ctx.delayed, compound{t: arg, addr: addr})
	return UnifyVariable{addr}
}

func (ctx *compileCtx) unifyArg(arg logic.Term) Instruction {
	switch a := arg.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return UnifyConstant{toConstant(ctx.table, a)}
	case logic.Var:
		return ctx.unifyVar(a)
	case *logic.Comp:
		return ctx.delayComplexArg(a)
	default:
		panic(fmt.Sprintf("wam.unifyArg: unhandled type %T (%v)", arg, arg))
	}
}

// ---- put terms

func (ctx *compileCtx) putTerm(term logic.Term, addr RegAddr) []Instruction {
	switch t := term.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return []Instruction{PutConstant{toConstant(ctx.table, t), addr}}
	case logic.Var:
		return []Instruction{ctx.putVar(t, addr)}
	case *logic.Comp:
		instrs := make([]Instruction, len(t.Args)+1)
		instrs[0] = PutStruct{toFunctor(ctx.table, t.Indicator()), addr}
		ctx.setArgs(t.Args, instrs)
		return instrs
	default:
		panic(fmt.Sprintf("wam.putTerm: unhandled type %T (%v)", term, term))
	}
}

// Set arguments by first handling complex terms (comps) and later vars.
// This is necessary because complex terms may have vars within them, and
// these must be set first (e.g. with set_variable) before the top-level
// reference.
//
// Example
//
//	f(A, g(A))
//	--> put_struct g/1, X3
//	    set_variable X2     % A's reference within g/1 comes first
//	    put_struct f/2, X0
//	    set_value X2        % A's reference within f/2 comes later
//	    set_value X3
func (ctx *compileCtx) setArgs(args []logic.Term, instrs []Instruction) {
	var varIdxs []int
	for i, arg := range args {
		if _, ok := arg.(logic.Var); ok {
			varIdxs = append(varIdxs, i)
		} else {
			instrs[i+1] = ctx.setArg(arg)
		}
	}
	for _, idx := range varIdxs {
		instrs[idx+1] = ctx.setArg(args[idx])
	}
}

func (ctx *compileCtx) setArg(arg logic.Term) Instruction {
	switch a := arg.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return SetConstant{toConstant(ctx.table, a)}
	case logic.Var:
		return ctx.setVar(a)
	case *logic.Comp:
		return ctx.setComplexArg(a)
	default:
		panic(fmt.Sprintf("wam.setArg: unhandled type %T (%v)", arg, arg))
	}
}

func (ctx *compileCtx) setComplexArg(arg logic.Term) Instruction {
	addr := ctx.topReg
	ctx.topReg++
	ctx.instrs = append(ctx.instrs, ctx.putTerm(arg, addr)...)
	return SetValue{addr}
}

// ---- compiling terms

// Compile compiles a single logic clause, interning functors in table.
func Compile(table *symbol.Table, clause *logic.Clause) (*Clause, error) {
	clause2, err := clause.Normalize()
	if err != nil {
		return nil, &CompileError{err}
	}
	c := compile(table, clause2, permanentVars(clause2))
	c.Code = optimizeLastCall(optimizeInstructions(c.Code))
	return c, nil
}

func compileQuery(table *symbol.Table, query []logic.Term) (*Clause, []logic.Var, error) {
	if len(query) == 0 {
		return nil, nil, &CompileError{errors.New("empty query")}
	}
	dummy, err := logic.NewQuery(query...).Clause.Normalize()
	if err != nil {
		return nil, nil, &CompileError{err}
	}
	// All vars in a query are made permanent, so we can retrieve them at
	// the end for display. The anonymous var stays temporary: each one is
	// a distinct fresh var, never shown.
	permVars := make(map[logic.Var]struct{})
	var xs []logic.Var
	for _, x := range dummy.Vars() {
		if x == logic.AnonymousVar {
			continue
		}
		permVars[x] = struct{}{}
		xs = append(xs, x)
	}
	c := compile(table, dummy, permVars)
	c.Code = optimizeInstructions(c.Code)
	// Remove deallocate, so we can retrieve the vars at the end of execution.
	n := len(c.Code)
	if _, ok := c.Code[n-1].(Deallocate); ok {
		c.Code = c.Code[:n-1]
		n--
	}
	// Remove proceed, if the clause ends with an inline predicate.
	if _, ok := c.Code[n-1].(Proceed); ok {
		c.Code = c.Code[:n-1]
		n--
	}
	// Add halt instruction
	c.Code = append(c.Code, Halt{})
	return c, xs, nil
}

var inlined = map[logic.Indicator]struct{}{
	{Name: "!", Arity: 0}:     {},
	{Name: "fail", Arity: 0}:  {},
	{Name: "false", Arity: 0}: {},
}

func isInlined(term *logic.Comp) bool {
	_, ok := inlined[term.Indicator()]
	return ok
}

func (ctx *compileCtx) compileBodyTerm(pos int, term *logic.Comp) []Instruction {
	ctx.instrs = nil
	switch term.Indicator() {
	case logic.Indicator{Name: "!", Arity: 0}:
		if pos == 0 {
			return []Instruction{NeckCut{}}
		}
		return []Instruction{Cut{}}
	case logic.Indicator{Name: "fail", Arity: 0}, logic.Indicator{Name: "false", Arity: 0}:
		return []Instruction{Fail{}}
	default:
		// Regular goal: put term args into registers X0-Xn and issue a call to f/n.
		for i, arg := range term.Args {
			ctx.instrs = append(ctx.instrs, ctx.putTerm(arg, RegAddr(i))...)
		}
		ctx.instrs = append(ctx.instrs, Call{toFunctor(ctx.table, term.Indicator())})
	}
	return ctx.instrs
}

func compile(table *symbol.Table, clause *logic.Clause, permVars map[logic.Var]struct{}) *Clause {
	c := new(Clause)
	if head, ok := clause.Head.(*logic.Comp); ok {
		c.Functor = toFunctor(table, head.Indicator())
	}
	ctx := newCompileCtx(table, numArgs(clause))
	// Designate address for each var (either in a register or on the stack)
	currStack := 0
	for _, x := range clause.Vars() {
		if x == logic.AnonymousVar {
			continue
		}
		if _, ok := permVars[x]; ok {
			ctx.varAddr[x] = StackAddr(currStack)
			currStack++
		} else {
			ctx.varAddr[x] = ctx.topReg
			ctx.topReg++
		}
	}
	// If call requires an environment, add an allocate-deallocate pair to the clause.
	var header, footer []Instruction
	if currStack > 0 || hasDeepcut(clause) || hasNonLastCall(clause) {
		header = []Instruction{Allocate{currStack}}
		footer = []Instruction{Deallocate{}}
	}
	// Compile clause head
	if head, ok := clause.Head.(*logic.Comp); ok {
		for i, term := range head.Args {
			c.Code = append(c.Code, ctx.getTerm(term, RegAddr(i))...)
		}
		for len(ctx.delayed) > 0 {
			buf := ctx.delayed
			ctx.delayed = nil
			for _, compound := range buf {
				c.Code = append(c.Code, ctx.getTerm(compound.t, compound.addr)...)
			}
		}
	}
	// Compile clause body
	for i, term := range clause.Body {
		c.Code = append(c.Code, ctx.compileBodyTerm(i, term.(*logic.Comp))...)
	}
	// Add "proceed" instruction for facts, and when a body ends with an
	// inlined call, e.g. '!'
	n := len(clause.Body)
	if n == 0 || isInlined(clause.Body[n-1].(*logic.Comp)) {
		c.Code = append(c.Code, Proceed{})
	}
	c.Code = append(header, c.Code...)
	c.Code = append(c.Code, footer...)
	c.NumRegisters = int(ctx.topReg)
	return c
}

func optimizeInstructions(code []Instruction) []Instruction {
	var buf []Instruction
	for _, instr := range code {
		// Remove nils
		if instr == nil {
			continue
		}
		// Inline call_meta instruction
		if instr, ok := instr.(Call); ok && instr.Functor.Name == "call" {
			callMeta := CallMeta{
				Addr:   RegAddr(0),
				Params: make([]Addr, instr.Functor.Arity-1),
			}
			for i := 0; i < instr.Functor.Arity-1; i++ {
				callMeta.Params[i] = RegAddr(i + 1)
			}
			buf = append(buf, callMeta)
			continue
		}
		buf = append(buf, instr)
	}
	return buf
}

func optimizeLastCall(code []Instruction) []Instruction {
	// If code ends with deallocate, swap it with the previous instruction,
	// that may be either call or call_meta.
	{
		n := len(code)
		dealloc, isDeallocate := code[n-1].(Deallocate)
		if isDeallocate {
			code[n-2], code[n-1] = dealloc, code[n-2]
		}
	}
	// If code ends with call, change it for execute
	{
		n := len(code)
		call, isCall := code[n-1].(Call)
		if isCall {
			code[n-1] = Execute{call.Functor}
		}
	}
	// If code ends with call_meta, change it for execute_meta
	{
		n := len(code)
		call, isCallMeta := code[n-1].(CallMeta)
		if isCallMeta {
			code[n-1] = ExecuteMeta{call.Addr, call.Params}
		}
	}
	return code
}

// ---- indexing

// Create level-1 index of clauses, based on their first arg.
func compileClausesWithSameFunctor(table *symbol.Table, clauses []*logic.Clause) (*Clause, error) {
	if len(clauses) == 1 {
		return Compile(table, clauses[0])
	}
	if len(clauses[0].Head.(*logic.Comp).Args) == 0 {
		// No first arg, impossible to index.
		return compileSequence(table, clauses)
	}
	subSeqs, anyNonVar := splitSubsequences(clauses)
	if !anyNonVar {
		// All first args are vars, impossible to index.
		return compileSequence(table, clauses)
	}
	var numReg int
	codes := make([]*Clause, len(subSeqs))
	for i, subSeq := range subSeqs {
		var err error
		codes[i], err = compileSubSequence(table, subSeq)
		if err != nil {
			return nil, err
		}
		if codes[i].NumRegisters > numReg {
			numReg = codes[i].NumRegisters
		}
	}
	addChoiceLinks(codes)
	return &Clause{
		Functor:      toFunctor(table, clauses[0].Head.(*logic.Comp).Indicator()),
		NumRegisters: numReg,
		Code:         codes[0].Code,
	}, nil
}

// Compile a subsequence of clauses with non-var first argument.
//
// Clauses are indexed on whether their first argument is a constant or
// a struct, accelerating matching during unification.
//
// Clauses with same first arg are also placed in a linked-list of
// try-retry-trust instructions.
func compileSubSequence(table *symbol.Table, clauses []*logic.Clause) (*Clause, error) {
	var numReg int
	codes := make([]*Clause, len(clauses))
	for i, clause := range clauses {
		var err error
		codes[i], err = Compile(table, clause)
		if err != nil {
			return nil, err
		}
		if codes[i].NumRegisters > numReg {
			numReg = codes[i].NumRegisters
		}
	}
	addChoiceLinks(codes)
	if len(codes) == 1 {
		return codes[0], nil
	}
	// Group clauses by type and index key.
	constIndex := make(map[Constant][]InstrAddr)
	structIndex := make(map[*symbol.Symbol][]InstrAddr)
	var structOrder []*symbol.Symbol
	for i, clause := range clauses {
		arg := clause.Head.(*logic.Comp).Args[0]
		switch a := arg.(type) {
		case logic.Atom, logic.Int, logic.Float:
			c := toConstant(table, a)
			constIndex[c] = append(constIndex[c], InstrAddr{codes[i], 1})
		case *logic.Comp:
			f := toFunctor(table, a.Indicator())
			if _, ok := structIndex[f]; !ok {
				structOrder = append(structOrder, f)
			}
			structIndex[f] = append(structIndex[f], InstrAddr{codes[i], 1})
		default:
			panic(fmt.Sprintf("compileSubSequence: unexpected term type %T (%v)", arg, arg))
		}
	}
	// Create first indexing instruction.
	switchOnTerm := SwitchOnTerm{
		IfVar:      InstrAddr{codes[0], 0},
		IfConstant: InstrAddr{failClause, 0},
		IfStruct:   InstrAddr{failClause, 0},
	}
	indexClause := &Clause{
		Functor:      toFunctor(table, clauses[0].Head.(*logic.Comp).Indicator()),
		NumRegisters: numReg,
		Code:         []Instruction{nil},
	}
	putCode := func(instrs ...Instruction) InstrAddr {
		pos := len(indexClause.Code)
		indexClause.Code = append(indexClause.Code, instrs...)
		return InstrAddr{indexClause, pos}
	}
	putAddrs := func(addrs []InstrAddr) InstrAddr {
		if len(addrs) == 1 {
			return addrs[0]
		}
		instrs := make([]Instruction, len(addrs))
		for i, addr := range addrs {
			if i == 0 {
				instrs[i] = Try{addr}
			} else if i < len(addrs)-1 {
				instrs[i] = Retry{addr}
			} else {
				instrs[i] = Trust{addr}
			}
		}
		return putCode(instrs...)
	}
	// Index constants.
	if len(constIndex) > 0 {
		switchOnConst := SwitchOnConstant{Continuation: make(map[Constant]InstrAddr)}
		switchOnTerm.IfConstant = putCode(switchOnConst)
		for c, addrs := range constIndex {
			switchOnConst.Continuation[c] = putAddrs(addrs)
		}
	}
	// Index structures.
	if len(structIndex) > 0 {
		switchOnStruct := SwitchOnStruct{Continuation: make(map[*symbol.Symbol]InstrAddr)}
		switchOnTerm.IfStruct = putCode(switchOnStruct)
		for _, functor := range structOrder {
			switchOnStruct.Continuation[functor] = putAddrs(structIndex[functor])
		}
	}
	indexClause.Code[0] = switchOnTerm
	return indexClause, nil
}

// Split sequence into subsequences, where clauses whose first arg is
// a nonvar are grouped together, while clauses whose first arg is a
// var are isolated.
//
// Example:
//
//	f(g(A, b)).  |
//	f(t).        |-- first subsequence
//	f([X|T]).    |
//	f(X, _).     |--- second subsequence
//	f(a, b, c).  |-- third subsequence
//	f(g(u, v)).  |
//	f(U, V).     |--- fourth subsequence
//	f(X, p(X)).  |-- fifth subsequence
func splitSubsequences(clauses []*logic.Clause) ([][]*logic.Clause, bool) {
	var buf []*logic.Clause
	var subSeqs [][]*logic.Clause
	var anyNonVar bool
	for _, clause := range clauses {
		arg := clause.Head.(*logic.Comp).Args[0]
		if _, ok := arg.(logic.Var); ok {
			if buf != nil {
				subSeqs = append(subSeqs, buf)
				buf = nil
			}
			subSeqs = append(subSeqs, []*logic.Clause{clause})
		} else {
			anyNonVar = true
			buf = append(buf, clause)
		}
	}
	if buf != nil {
		subSeqs = append(subSeqs, buf)
	}
	return subSeqs, anyNonVar
}

func compileSequence(table *symbol.Table, clauses []*logic.Clause) (*Clause, error) {
	// Compile each clause in isolation.
	codes := make([]*Clause, len(clauses))
	for i, clause := range clauses {
		var err error
		codes[i], err = Compile(table, clause)
		if err != nil {
			return nil, err
		}
	}
	addChoiceLinks(codes)
	return codes[0], nil
}

func addChoiceLinks(clauses []*Clause) {
	if len(clauses) < 2 {
		return
	}
	for i, clause := range clauses {
		var instr Instruction
		if i == 0 {
			instr = TryMeElse{InstrAddr{clauses[i+1], 0}}
		} else if i < len(clauses)-1 {
			instr = RetryMeElse{InstrAddr{clauses[i+1], 0}}
		} else {
			instr = TrustMe{}
		}
		clause.Code = append([]Instruction{instr}, clause.Code...)
	}
}

// CompileClauses returns a list of compiled clauses. Each corresponds with
// a functor f/n, and all sub-clauses that implement the same functor.
// Clauses for the same functor keep their relative order: the first one
// asserted is the first one tried.
func CompileClauses(table *symbol.Table, clauses []*logic.Clause) ([]*Clause, error) {
	m := make(map[logic.Indicator][]*logic.Clause)
	var order []logic.Indicator
	for _, clause := range clauses {
		c, err := clause.Normalize()
		if err != nil {
			return nil, &CompileError{err}
		}
		ind := c.Head.(*logic.Comp).Indicator()
		if _, ok := m[ind]; !ok {
			order = append(order, ind)
		}
		m[ind] = append(m[ind], c)
	}
	cs := make([]*Clause, 0, len(order))
	for _, ind := range order {
		c, err := compileClausesWithSameFunctor(table, m[ind])
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return cs, nil
}
