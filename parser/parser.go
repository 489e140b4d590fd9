package parser

import (
	"fmt"
	"strconv"

	"github.com/rupertlssmith/lojix-sub004/logic"
	"github.com/rupertlssmith/lojix-sub004/symbol"
)

// Operator table for the supported control constructs. Operators with
// type xfy are right-associative; xfx operators don't chain.
type opType int

const (
	xfx opType = iota
	xfy
)

type opInfo struct {
	prec int
	typ  opType
}

var infixOps = map[string]opInfo{
	";":   {1100, xfy},
	"->":  {1050, xfy},
	",":   {1000, xfy},
	"=":   {700, xfx},
	"\\=": {700, xfx},
}

var prefixOps = map[string]opInfo{
	"\\+": {900, xfy},
}

// Max precedence of a term in argument position, so that commas separate
// args instead of building a conjunction.
const argPrec = 999

// Parser translates text into logic terms, interning functor names in a
// table shared with the machine. Variable names are interned in a scope
// that is cleared between sentences, so that each fact, rule or query
// gets independent variables.
type Parser struct {
	table  *symbol.Table
	scope  *symbol.Scope
	tokens []token
	pos    int
}

// New creates a parser that interns functors in table.
func New(table *symbol.Table) *Parser {
	return &Parser{table: table, scope: symbol.NewScope()}
}

// ParseProgram parses a sequence of facts, rules and queries.
func (p *Parser) ParseProgram(text string) ([]logic.Sentence, error) {
	if err := p.init(text); err != nil {
		return nil, err
	}
	var sentences []logic.Sentence
	for p.peek().typ != tokenEOF {
		sentence, err := p.parseSentence()
		if err != nil {
			return nil, err
		}
		sentences = append(sentences, sentence)
	}
	return sentences, nil
}

// ParseQuery parses a single query, with or without the leading '?-'.
func (p *Parser) ParseQuery(text string) ([]logic.Term, error) {
	if err := p.init(text); err != nil {
		return nil, err
	}
	defer p.scope.Clear()
	if tok := p.peek(); tok.typ == tokenAtom && (tok.text == "?-" || tok.text == ":-") {
		p.next()
	}
	goals, err := p.parseGoals()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenEnd); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenEOF); err != nil {
		return nil, err
	}
	return goals, nil
}

// ParseTerm parses a single term, optionally ending with '.'.
func (p *Parser) ParseTerm(text string) (logic.Term, error) {
	if err := p.init(text); err != nil {
		return nil, err
	}
	defer p.scope.Clear()
	term, err := p.parseExpr(argPrec)
	if err != nil {
		return nil, err
	}
	if p.peek().typ == tokenEnd {
		p.next()
	}
	if _, err := p.expect(tokenEOF); err != nil {
		return nil, err
	}
	return term, nil
}

func (p *Parser) init(text string) error {
	tokens, err := lexTokens(text)
	if err != nil {
		return err
	}
	p.tokens, p.pos = tokens, 0
	p.scope.Clear()
	return nil
}

func (p *Parser) peek() token {
	return p.tokens[p.pos]
}

func (p *Parser) next() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(typ tokenType) (token, error) {
	tok := p.peek()
	if tok.typ != typ {
		return tok, p.errorf(tok, "expected %v, found %v", typ, tok)
	}
	return p.next(), nil
}

func (p *Parser) errorf(tok token, msg string, args ...interface{}) error {
	return &SyntaxError{tok.line, tok.col, fmt.Sprintf(msg, args...)}
}

// parseSentence parses one fact, rule or query up to its '.' terminator.
func (p *Parser) parseSentence() (logic.Sentence, error) {
	defer p.scope.Clear()
	if tok := p.peek(); tok.typ == tokenAtom && (tok.text == "?-" || tok.text == ":-") {
		p.next()
		goals, err := p.parseGoals()
		if err != nil {
			return logic.Sentence{}, err
		}
		if _, err := p.expect(tokenEnd); err != nil {
			return logic.Sentence{}, err
		}
		return logic.NewQuery(goals...), nil
	}
	head, err := p.parseExpr(argPrec)
	if err != nil {
		return logic.Sentence{}, err
	}
	tok := p.peek()
	switch {
	case tok.typ == tokenEnd:
		p.next()
		return logic.NewSentence(logic.NewClause(head)), nil
	case tok.typ == tokenAtom && tok.text == ":-":
		p.next()
		body, err := p.parseGoals()
		if err != nil {
			return logic.Sentence{}, err
		}
		if _, err := p.expect(tokenEnd); err != nil {
			return logic.Sentence{}, err
		}
		return logic.NewSentence(logic.NewClause(head, body...)), nil
	default:
		return logic.Sentence{}, p.errorf(tok, "expected ':-' or '.' after clause head, found %v", tok)
	}
}

// parseGoals parses a clause body or query, splitting the top-level
// conjunction into a list of goals.
func (p *Parser) parseGoals() ([]logic.Term, error) {
	body, err := p.parseExpr(1200)
	if err != nil {
		return nil, err
	}
	return flattenConjunction(body), nil
}

// flattenConjunction unrolls ','(A, ','(B, C)) into [A, B, C]. Commas
// below other operators, like in (a, b ; c), are left untouched.
func flattenConjunction(term logic.Term) []logic.Term {
	comp, ok := term.(*logic.Comp)
	if !ok || comp.Functor != "," || len(comp.Args) != 2 {
		return []logic.Term{term}
	}
	return append([]logic.Term{comp.Args[0]}, flattenConjunction(comp.Args[1])...)
}

// parseExpr parses a term whose operators have precedence at most maxPrec,
// by precedence climbing.
func (p *Parser) parseExpr(maxPrec int) (logic.Term, error) {
	left, err := p.parseUnary(maxPrec)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		var name string
		switch {
		case tok.typ == tokenComma:
			name = ","
		case tok.typ == tokenAtom:
			name = tok.text
		default:
			return left, nil
		}
		op, ok := infixOps[name]
		if !ok || op.prec > maxPrec {
			return left, nil
		}
		p.next()
		rightPrec := op.prec
		if op.typ == xfx {
			rightPrec = op.prec - 1
		}
		right, err := p.parseExpr(rightPrec)
		if err != nil {
			return nil, err
		}
		p.table.Intern(name, 2)
		left = logic.NewComp(name, left, right)
	}
}

func (p *Parser) parseUnary(maxPrec int) (logic.Term, error) {
	tok := p.peek()
	if tok.typ == tokenAtom {
		if op, ok := prefixOps[tok.text]; ok && op.prec <= maxPrec {
			// Not a prefix operator if followed by '(', e.g. \+(G).
			if p.tokens[p.pos+1].typ != tokenOpenParen {
				p.next()
				arg, err := p.parseExpr(op.prec)
				if err != nil {
					return nil, err
				}
				p.table.Intern(tok.text, 1)
				return logic.NewComp(tok.text, arg), nil
			}
		}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (logic.Term, error) {
	tok := p.next()
	switch tok.typ {
	case tokenInt:
		i, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid integer %q: %v", tok.text, err)
		}
		return logic.Int{Value: i}, nil
	case tokenFloat:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorf(tok, "invalid float %q: %v", tok.text, err)
		}
		return logic.Float{Value: f}, nil
	case tokenVar:
		if tok.text == "_" {
			return logic.AnonymousVar, nil
		}
		p.scope.Intern(tok.text)
		return logic.NewVar(tok.text), nil
	case tokenAtom:
		if p.peek().typ == tokenOpenParen {
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			p.table.Intern(tok.text, len(args))
			return logic.NewComp(tok.text, args...), nil
		}
		p.table.Intern(tok.text, 0)
		return logic.Atom{Name: tok.text}, nil
	case tokenOpenParen:
		term, err := p.parseExpr(1200)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenCloseParen); err != nil {
			return nil, err
		}
		return term, nil
	case tokenOpenBracket:
		return p.parseList()
	default:
		return nil, p.errorf(tok, "expected term, found %v", tok)
	}
}

// parseArgs parses compound args after the opening paren, up to and
// including the closing paren.
func (p *Parser) parseArgs() ([]logic.Term, error) {
	var args []logic.Term
	for {
		arg, err := p.parseExpr(argPrec)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		tok := p.next()
		switch tok.typ {
		case tokenComma:
			continue
		case tokenCloseParen:
			return args, nil
		default:
			return nil, p.errorf(tok, "expected ',' or ')' in args, found %v", tok)
		}
	}
}

// parseList parses list items after the opening bracket. Lists desugar
// into '.'/2 cells ending in '[]', or in the tail term after '|'.
func (p *Parser) parseList() (logic.Term, error) {
	if p.peek().typ == tokenCloseBracket {
		p.next()
		return logic.EmptyList, nil
	}
	var items []logic.Term
	for {
		item, err := p.parseExpr(argPrec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		tok := p.next()
		switch tok.typ {
		case tokenComma:
			continue
		case tokenBar:
			tail, err := p.parseExpr(argPrec)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokenCloseBracket); err != nil {
				return nil, err
			}
			p.table.Intern(".", 2)
			return logic.NewIncompleteList(items, tail), nil
		case tokenCloseBracket:
			p.table.Intern(".", 2)
			return logic.NewList(items...), nil
		default:
			return nil, p.errorf(tok, "expected ',', '|' or ']' in list, found %v", tok)
		}
	}
}
