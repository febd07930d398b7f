package domain

import (
	"fmt"

	"github.com/syssam/silo"
	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/schema/field"
)

// Resolver looks up the field a term compares.
type Resolver func(name string) (field.Field, bool)

type config struct {
	dialect  string
	resolver Resolver
}

// Option configures Compile.
type Option func(*config)

// WithDialect sets the dialect the pattern operators are compiled for.
// Postgres gets ILIKE, every other dialect LOWER(col) LIKE LOWER(val).
func WithDialect(name string) Option {
	return func(c *config) {
		c.dialect = name
	}
}

// WithResolver validates field names against the resolver and converts
// term values with the field's ToStorage.
func WithResolver(r Resolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}

// Compile compiles the expression into a WHERE condition. A nil Expr
// compiles to a nil fragment, meaning no filter.
func Compile(e Expr, opts ...Option) (*sql.Fragment, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if e == nil {
		return nil, nil
	}
	return c.compile(e)
}

// CompileDomain parses and compiles a domain.
func CompileDomain(d Domain, opts ...Option) (*sql.Fragment, error) {
	e, err := Parse(d)
	if err != nil {
		return nil, err
	}
	return Compile(e, opts...)
}

func (c *config) compile(e Expr) (*sql.Fragment, error) {
	switch e := e.(type) {
	case *And:
		return c.binary("AND", e.L, e.R)
	case *Or:
		return c.binary("OR", e.L, e.R)
	case *Not:
		x, err := c.compile(e.X)
		if err != nil {
			return nil, err
		}
		return sql.Concat(sql.Raw("NOT "), x.Wrap()), nil
	case *Cmp:
		return c.term(e.Term)
	case nil:
		return nil, silo.NewDomainError("compile", "nil expression")
	default:
		return nil, silo.NewDomainError("compile", fmt.Sprintf("unexpected expression %T", e))
	}
}

func (c *config) binary(op string, l, r Expr) (*sql.Fragment, error) {
	lf, err := c.operand(l)
	if err != nil {
		return nil, err
	}
	rf, err := c.operand(r)
	if err != nil {
		return nil, err
	}
	return sql.Join(" "+op+" ", lf, rf), nil
}

// operand compiles an operand of a binary node, parenthesised when it is
// binary itself.
func (c *config) operand(e Expr) (*sql.Fragment, error) {
	f, err := c.compile(e)
	if err != nil {
		return nil, err
	}
	if binary(e) {
		return f.Wrap(), nil
	}
	return f, nil
}

var comparisons = map[string]string{
	EQ:  "=",
	NEQ: "<>",
	GT:  ">",
	LT:  "<",
	GTE: ">=",
	LTE: "<=",
}

func (c *config) term(t Term) (*sql.Fragment, error) {
	if err := checkTerm(t); err != nil {
		return nil, err
	}
	col, err := sql.Ident(t.Field)
	if err != nil {
		return nil, &silo.Error{Kind: silo.KindDomain, Op: "compile", Msg: fmt.Sprintf("invalid field name %q", t.Field), Err: err}
	}
	v, err := c.value(t)
	if err != nil {
		return nil, err
	}
	if v == nil {
		switch t.Operator {
		case EQ:
			return sql.Concat(col, sql.Raw(" IS NULL")), nil
		case NEQ:
			return sql.Concat(col, sql.Raw(" IS NOT NULL")), nil
		default:
			return nil, silo.NewDomainError("compile", fmt.Sprintf("operator %q cannot compare with null in term %s", t.Operator, t))
		}
	}
	if op, ok := comparisons[t.Operator]; ok {
		return c.expr("{col} "+op+" {val}", col, v)
	}
	s, ok := v.(string)
	if !ok {
		return nil, silo.NewDomainError("compile", fmt.Sprintf("operator %q expects a string pattern, got %T in term %s", t.Operator, v, t))
	}
	if t.Operator == ILike {
		s = "%" + s + "%"
	}
	if c.dialect == dialect.Postgres {
		return c.expr("{col} ILIKE {val}", col, s)
	}
	return c.expr("LOWER({col}) LIKE LOWER({val})", col, s)
}

func (c *config) expr(template string, col *sql.Fragment, v any) (*sql.Fragment, error) {
	f, err := sql.Expr(template, sql.Args{"col": col, "val": v})
	if err != nil {
		return nil, &silo.Error{Kind: silo.KindDomain, Op: "compile", Msg: "invalid value", Err: err}
	}
	return f, nil
}

// value returns the value of the term, converted by the field of the
// resolver if one is set.
func (c *config) value(t Term) (any, error) {
	if c.resolver == nil {
		return t.Value, nil
	}
	f, ok := c.resolver(t.Field)
	if !ok {
		return nil, silo.NewDomainError("compile", fmt.Sprintf("unknown field %q", t.Field))
	}
	d := f.Descriptor()
	if !d.Materialized() {
		return nil, silo.NewDomainError("compile", fmt.Sprintf("field %q is not stored and cannot be searched", t.Field))
	}
	if t.Operator == ILike || t.Operator == EqualLike {
		return t.Value, nil
	}
	v, err := f.ToStorage(t.Value)
	if err != nil {
		return nil, &silo.Error{Kind: silo.KindDomain, Op: "compile", Msg: fmt.Sprintf("invalid value for field %q", t.Field), Err: err}
	}
	return v, nil
}
