package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Token is an element of a Domain: a Term or an Op.
type Token interface {
	token()
}

// Op is a logical token of a domain.
type Op string

// Logical tokens.
const (
	OpAnd   Op = "&"
	OpOr    Op = "|"
	OpNot   Op = "!"
	OpOpen  Op = "("
	OpClose Op = ")"
)

func (Op) token() {}

// precedence returns the binding strength of a connective, or 0 for
// parentheses.
func (o Op) precedence() int {
	switch o {
	case OpNot:
		return 3
	case OpAnd:
		return 2
	case OpOr:
		return 1
	default:
		return 0
	}
}

func (o Op) valid() bool {
	switch o {
	case OpAnd, OpOr, OpNot, OpOpen, OpClose:
		return true
	}
	return false
}

// Comparison operators.
const (
	EQ        = "="
	NEQ       = "!="
	GT        = ">"
	LT        = "<"
	GTE       = ">="
	LTE       = "<="
	ILike     = "ilike"
	EqualLike = "=ilike"
)

// Operators lists the supported comparison operators.
var Operators = []string{EQ, NEQ, GT, LT, GTE, LTE, ILike, EqualLike}

// Term is a comparison of a field with a value.
type Term struct {
	Field    string
	Operator string
	Value    any
}

// T returns a new term.
func T(field, op string, v any) Term {
	return Term{Field: field, Operator: op, Value: v}
}

func (Term) token() {}

// Domain returns the term as a single-element domain.
func (t Term) Domain() Domain {
	return Domain{t}
}

// String returns the term in triple form.
func (t Term) String() string {
	return fmt.Sprintf("(%q, %q, %v)", t.Field, t.Operator, t.Value)
}

// Domain is a search domain.
type Domain []Token

// Domain returns d. It makes Domain a Part.
func (d Domain) Domain() Domain {
	return d
}

// MarshalJSON implements json.Marshaler.
func (d Domain) MarshalJSON() ([]byte, error) {
	out := make([]any, len(d))
	for i, tok := range d {
		switch tok := tok.(type) {
		case Term:
			out[i] = []any{tok.Field, tok.Operator, tok.Value}
		case Op:
			out[i] = string(tok)
		default:
			return nil, fmt.Errorf("domain: unexpected token %T", tok)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Integral numbers decode as
// int64, other numbers as float64.
func (d *Domain) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("domain: %w", err)
	}
	out := make(Domain, 0, len(raw))
	for i, elem := range raw {
		tok, err := decodeToken(elem)
		if err != nil {
			return fmt.Errorf("domain: element %d: %w", i, err)
		}
		out = append(out, tok)
	}
	*d = out
	return nil
}

func decodeToken(data []byte) (Token, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		if op := Op(s); op.valid() {
			return op, nil
		}
		return nil, fmt.Errorf("unknown logical token %q", s)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var triple []any
	if err := dec.Decode(&triple); err != nil {
		return nil, err
	}
	if len(triple) != 3 {
		return nil, fmt.Errorf("term must have 3 elements, got %d", len(triple))
	}
	field, ok1 := triple[0].(string)
	op, ok2 := triple[1].(string)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("term field and operator must be strings")
	}
	v, err := plain(triple[2])
	if err != nil {
		return nil, err
	}
	return Term{Field: field, Operator: op, Value: v}, nil
}

// plain converts decoded JSON numbers and rejects composite values.
func plain(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		return v.Float64()
	case []any, map[string]any:
		return nil, fmt.Errorf("term value must be a scalar, got %T", v)
	default:
		return v, nil
	}
}

// Part is a Term or a Domain.
type Part interface {
	Domain() Domain
}

// AllOf returns the domain matching the records matched by every part.
// Empty parts are skipped.
func AllOf(parts ...Part) Domain {
	return join(OpAnd, parts)
}

// AnyOf returns the domain matching the records matched by any part.
// Empty parts are skipped.
func AnyOf(parts ...Part) Domain {
	return join(OpOr, parts)
}

// Negate returns the domain matching the records p does not match.
func Negate(p Part) Domain {
	d := p.Domain()
	if len(d) == 0 {
		return nil
	}
	return slices.Concat(Domain{OpNot}, group(d))
}

func join(op Op, parts []Part) Domain {
	var out Domain
	for _, p := range parts {
		d := p.Domain()
		if len(d) == 0 {
			continue
		}
		if len(out) > 0 {
			out = append(out, op)
		}
		out = append(out, group(d)...)
	}
	return out
}

// group wraps a domain of more than one token in parentheses.
func group(d Domain) Domain {
	if len(d) == 1 {
		return d
	}
	return slices.Concat(Domain{OpOpen}, d, Domain{OpClose})
}
