package domain

import (
	"fmt"
	"slices"

	"github.com/syssam/silo"
)

// Parse parses a domain into an expression tree. The empty domain parses
// to a nil Expr, matching every record.
func Parse(d Domain) (Expr, error) {
	if len(d) == 0 {
		return nil, nil
	}
	prefix, err := toPrefix(d)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: prefix}
	e, err := p.parse()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, silo.NewDomainError("parse",
			fmt.Sprintf("malformed domain: %d unconsumed token(s) starting at %v, missing connective?", len(p.tokens)-p.pos, p.tokens[p.pos]))
	}
	return e, nil
}

// MustParse is like Parse but panics on error.
func MustParse(d Domain) Expr {
	e, err := Parse(d)
	if err != nil {
		panic(err)
	}
	return e
}

// toPrefix converts the infix domain into prefix order with a
// shunting-yard pass over the reversed tokens. Parentheses are dropped.
func toPrefix(d Domain) ([]Token, error) {
	var (
		out   = make([]Token, 0, len(d))
		stack []Op
	)
	for i := len(d) - 1; i >= 0; i-- {
		switch tok := d[i].(type) {
		case Term:
			out = append(out, tok)
		case Op:
			switch tok {
			case OpClose:
				stack = append(stack, tok)
			case OpOpen:
				for {
					if len(stack) == 0 {
						return nil, silo.NewDomainError("parse", "unbalanced parentheses: missing ')'")
					}
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					if top == OpClose {
						break
					}
					out = append(out, top)
				}
			case OpAnd, OpOr, OpNot:
				// Left associativity: operators of equal precedence seen
				// later in the reversed walk bind first.
				for len(stack) > 0 {
					top := stack[len(stack)-1]
					if top == OpClose || top.precedence() <= tok.precedence() {
						break
					}
					out = append(out, top)
					stack = stack[:len(stack)-1]
				}
				stack = append(stack, tok)
			default:
				return nil, silo.NewDomainError("parse", fmt.Sprintf("unknown logical token %q", string(tok)))
			}
		case nil:
			return nil, silo.NewDomainError("parse", "nil token")
		default:
			return nil, silo.NewDomainError("parse", fmt.Sprintf("unexpected token %T", tok))
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top == OpClose {
			return nil, silo.NewDomainError("parse", "unbalanced parentheses: missing '('")
		}
		out = append(out, top)
	}
	slices.Reverse(out)
	return out, nil
}

// parser builds the expression tree from prefix tokens by recursive descent.
type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) parse() (Expr, error) {
	if p.pos >= len(p.tokens) {
		return nil, silo.NewDomainError("parse", "malformed domain: missing operand")
	}
	tok := p.tokens[p.pos]
	p.pos++
	switch tok := tok.(type) {
	case Term:
		if err := checkTerm(tok); err != nil {
			return nil, err
		}
		return &Cmp{Term: tok}, nil
	case Op:
		if tok == OpNot {
			x, err := p.parse()
			if err != nil {
				return nil, err
			}
			return &Not{X: x}, nil
		}
		l, err := p.parse()
		if err != nil {
			return nil, err
		}
		r, err := p.parse()
		if err != nil {
			return nil, err
		}
		if tok == OpAnd {
			return &And{L: l, R: r}, nil
		}
		return &Or{L: l, R: r}, nil
	}
	return nil, silo.NewDomainError("parse", fmt.Sprintf("unexpected token %T", tok))
}

func checkTerm(t Term) error {
	if t.Field == "" {
		return silo.NewDomainError("parse", fmt.Sprintf("term %s has no field", t))
	}
	if !slices.Contains(Operators, t.Operator) {
		return silo.NewDomainError("parse", fmt.Sprintf("unknown operator %q in term %s", t.Operator, t))
	}
	return nil
}
