package sql

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/silo/dialect"
)

// Construction errors. Callers can match them with errors.Is.
var (
	// ErrInvalidIdentifier is returned for names rejected by the identifier allow-list.
	ErrInvalidIdentifier = errors.New("dialect/sql: invalid identifier")
	// ErrUnsupportedValue is returned for values that have no SQL literal form.
	ErrUnsupportedValue = errors.New("dialect/sql: unsupported value")
	// ErrTemplate is returned for malformed templates or mismatched arguments.
	ErrTemplate = errors.New("dialect/sql: invalid template")
)

// identRe is the identifier allow-list.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_@#]*$`)

// placeholderRe matches placeholder names inside templates.
var placeholderRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// IsValidIdentifier reports whether the name may be used as a table or column name.
func IsValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

type partKind uint8

const (
	partRaw     partKind = iota // trusted text, emitted as-is
	partIdent                   // validated identifier, quoted at render time
	partString                  // string literal, escaped at render time
)

type part struct {
	kind partKind
	text string
}

// Fragment is an immutable, already escaped piece of SQL. The zero value
// and nil are both empty fragments.
type Fragment struct {
	parts []part
}

// Args holds the named values of a template.
type Args map[string]any

// Raw returns a fragment holding trusted SQL text, such as keywords or
// type names. It must never be used with user input.
func Raw(text string) *Fragment {
	if text == "" {
		return &Fragment{}
	}
	return &Fragment{parts: []part{{kind: partRaw, text: text}}}
}

// Ident validates the name against the identifier allow-list and returns
// a fragment that renders it quoted. It is the only way table and column
// names enter generated SQL.
func Ident(name string) (*Fragment, error) {
	if !identRe.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return &Fragment{parts: []part{{kind: partIdent, text: name}}}, nil
}

// MustIdent is like Ident but panics on invalid names. It is meant for
// names known at compile time.
func MustIdent(name string) *Fragment {
	f, err := Ident(name)
	if err != nil {
		panic(err)
	}
	return f
}

// Idents returns a comma separated list of identifiers.
func Idents(names ...string) (*Fragment, error) {
	frags := make([]*Fragment, len(names))
	for i, n := range names {
		f, err := Ident(n)
		if err != nil {
			return nil, err
		}
		frags[i] = f
	}
	return Join(", ", frags...), nil
}

// Value returns the literal form of v.
func Value(v any) (*Fragment, error) {
	p, err := literal(v)
	if err != nil {
		return nil, err
	}
	return &Fragment{parts: p}, nil
}

// Values returns a comma separated list of literals.
func Values(vs ...any) (*Fragment, error) {
	frags := make([]*Fragment, len(vs))
	for i, v := range vs {
		f, err := Value(v)
		if err != nil {
			return nil, err
		}
		frags[i] = f
	}
	return Join(", ", frags...), nil
}

// Set returns the `"col" = value, ...` list of an UPDATE statement.
func Set(columns []string, values []any) (*Fragment, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("%w: %d columns and %d values", ErrTemplate, len(columns), len(values))
	}
	frags := make([]*Fragment, len(columns))
	for i := range columns {
		col, err := Ident(columns[i])
		if err != nil {
			return nil, err
		}
		f, err := Expr("{col} = {val}", Args{"col": col, "val": values[i]})
		if err != nil {
			return nil, err
		}
		frags[i] = f
	}
	return Join(", ", frags...), nil
}

// Expr builds a fragment from a template. Placeholders are written
// {name}; literal braces are written {{ and }}. Every placeholder must
// have a value in args and every value must be used.
func Expr(template string, args Args) (*Fragment, error) {
	var (
		f    Fragment
		buf  strings.Builder
		used = make(map[string]bool, len(args))
	)
	flush := func() {
		if buf.Len() > 0 {
			f.parts = append(f.parts, part{kind: partRaw, text: buf.String()})
			buf.Reset()
		}
	}
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			buf.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			buf.WriteByte('}')
			i++
		case c == '}':
			return nil, fmt.Errorf("%w: unmatched '}' at offset %d", ErrTemplate, i)
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed placeholder at offset %d", ErrTemplate, i)
			}
			name := template[i+1 : i+end]
			if !placeholderRe.MatchString(name) {
				return nil, fmt.Errorf("%w: bad placeholder name %q", ErrTemplate, name)
			}
			v, ok := args[name]
			if !ok {
				return nil, fmt.Errorf("%w: missing value for {%s}", ErrTemplate, name)
			}
			p, err := literal(v)
			if err != nil {
				return nil, fmt.Errorf("{%s}: %w", name, err)
			}
			flush()
			f.parts = append(f.parts, p...)
			used[name] = true
			i += end
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	for name := range args {
		if !used[name] {
			return nil, fmt.Errorf("%w: unused value for {%s}", ErrTemplate, name)
		}
	}
	return &f, nil
}

// MustExpr is like Expr but panics on error.
func MustExpr(template string, args Args) *Fragment {
	f, err := Expr(template, args)
	if err != nil {
		panic(err)
	}
	return f
}

// literal converts a Go value into fragment parts.
func literal(v any) ([]part, error) {
	switch x := v.(type) {
	case nil:
		return []part{{kind: partRaw, text: "NULL"}}, nil
	case *Fragment:
		if x == nil {
			return nil, nil
		}
		return x.parts, nil
	case string:
		return []part{{kind: partString, text: x}}, nil
	case bool:
		if x {
			return []part{{kind: partRaw, text: "TRUE"}}, nil
		}
		return []part{{kind: partRaw, text: "FALSE"}}, nil
	case int:
		return num(strconv.FormatInt(int64(x), 10)), nil
	case int8:
		return num(strconv.FormatInt(int64(x), 10)), nil
	case int16:
		return num(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return num(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return num(strconv.FormatInt(x, 10)), nil
	case uint:
		return num(strconv.FormatUint(uint64(x), 10)), nil
	case uint8:
		return num(strconv.FormatUint(uint64(x), 10)), nil
	case uint16:
		return num(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return num(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return num(strconv.FormatUint(x, 10)), nil
	case float32:
		return float(float64(x), 32)
	case float64:
		return float(x, 64)
	case time.Time:
		return []part{{kind: partString, text: x.Format(TimestampLayout)}}, nil
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return nil, fmt.Errorf("%w: %T: %w", ErrUnsupportedValue, v, err)
		}
		if _, ok := dv.(driver.Valuer); ok {
			return nil, fmt.Errorf("%w: %T returns a driver.Valuer", ErrUnsupportedValue, v)
		}
		return literal(dv)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// TimestampLayout is the layout of timestamp literals.
const TimestampLayout = "2006-01-02 15:04:05.999999"

func num(s string) []part {
	return []part{{kind: partRaw, text: s}}
}

func float(f float64, bits int) ([]part, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v has no SQL literal", ErrUnsupportedValue, f)
	}
	return num(strconv.FormatFloat(f, 'g', -1, bits)), nil
}

// Concat joins fragments without separator. Nil fragments are skipped.
func Concat(frags ...*Fragment) *Fragment {
	return Join("", frags...)
}

// Join joins fragments with the given raw separator. Nil and empty
// fragments are skipped.
func Join(sep string, frags ...*Fragment) *Fragment {
	var f Fragment
	first := true
	for _, x := range frags {
		if x.IsEmpty() {
			continue
		}
		if !first && sep != "" {
			f.parts = append(f.parts, part{kind: partRaw, text: sep})
		}
		f.parts = append(f.parts, x.parts...)
		first = false
	}
	return &f
}

// Append returns a new fragment holding f followed by others.
func (f *Fragment) Append(others ...*Fragment) *Fragment {
	return Concat(append([]*Fragment{f}, others...)...)
}

// Wrap returns the fragment enclosed in parentheses.
func (f *Fragment) Wrap() *Fragment {
	return Concat(Raw("("), f, Raw(")"))
}

// IsEmpty reports whether the fragment renders to the empty string.
func (f *Fragment) IsEmpty() bool {
	return f == nil || len(f.parts) == 0
}

// Render returns the final SQL text for the given dialect.
func (f *Fragment) Render(name string) string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range f.parts {
		switch p.kind {
		case partIdent:
			b.WriteString(quoteIdent(name, p.text))
		case partString:
			b.WriteByte('\'')
			b.WriteString(escapeString(name, p.text))
			b.WriteByte('\'')
		default:
			b.WriteString(p.text)
		}
	}
	return b.String()
}

// String renders the fragment with ANSI quoting.
func (f *Fragment) String() string {
	return f.Render(dialect.Postgres)
}

func quoteIdent(name, ident string) string {
	if name == dialect.MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// escapeString escapes a string value for use inside single quotes.
// MySQL treats backslashes as escape characters by default, so they are
// doubled there as well.
func escapeString(name, s string) string {
	if name == dialect.MySQL && strings.Contains(s, `\`) {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return strings.ReplaceAll(s, "'", "''")
}
