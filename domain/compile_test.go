package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/syssam/silo"
	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/schema/field"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, d Domain, opts ...Option) string {
	t.Helper()
	f, err := CompileDomain(d, opts...)
	require.NoError(t, err)
	return f.String()
}

func TestCompile_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		domain Domain
		want   string
	}{
		{"and before or", Domain{a, OpAnd, b, OpOr, c}, `("a" = 1 AND "b" = 2) OR "c" = 3`},
		{"or then and", Domain{a, OpOr, b, OpAnd, c}, `"a" = 1 OR ("b" = 2 AND "c" = 3)`},
		{"left-associative", Domain{a, OpAnd, b, OpAnd, c}, `("a" = 1 AND "b" = 2) AND "c" = 3`},
		{"grouped", Domain{OpOpen, a, OpOr, b, OpClose, OpAnd, c}, `("a" = 1 OR "b" = 2) AND "c" = 3`},
		{"not", Domain{OpNot, a, OpAnd, b}, `NOT ("a" = 1) AND "b" = 2`},
		{"not of group", Domain{OpNot, OpOpen, a, OpOr, b, OpClose}, `NOT ("a" = 1 OR "b" = 2)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compile(t, tt.domain))
		})
	}
}

func TestCompile_Operators(t *testing.T) {
	tests := []struct {
		term Term
		want string
	}{
		{T("x", "=", 1), `"x" = 1`},
		{T("x", "!=", 1), `"x" <> 1`},
		{T("x", ">", 1.5), `"x" > 1.5`},
		{T("x", "<", -2), `"x" < -2`},
		{T("x", ">=", "b"), `"x" >= 'b'`},
		{T("x", "<=", true), `"x" <= TRUE`},
		{T("x", "=", nil), `"x" IS NULL`},
		{T("x", "!=", nil), `"x" IS NOT NULL`},
		{T("x", "ilike", "uwu"), `LOWER("x") LIKE LOWER('%uwu%')`},
		{T("x", "=ilike", "uwu%"), `LOWER("x") LIKE LOWER('uwu%')`},
		{T("x", "=", "it's"), `"x" = 'it''s'`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, compile(t, Domain{tt.term}))
		})
	}
}

func TestCompile_Dialects(t *testing.T) {
	d := Domain{T("name", "ilike", `a\b`), OpAnd, T("code", "=ilike", "X_%")}

	f, err := CompileDomain(d, WithDialect(dialect.Postgres))
	require.NoError(t, err)
	assert.Equal(t, `"name" ILIKE '%a\b%' AND "code" ILIKE 'X_%'`, f.Render(dialect.Postgres))

	f, err = CompileDomain(d, WithDialect(dialect.MySQL))
	require.NoError(t, err)
	assert.Equal(t, "LOWER(`name`) LIKE LOWER('%a\\\\b%') AND LOWER(`code`) LIKE LOWER('X_%')", f.Render(dialect.MySQL))

	f, err = CompileDomain(d, WithDialect(dialect.SQLite))
	require.NoError(t, err)
	assert.Equal(t, `LOWER("name") LIKE LOWER('%a\b%') AND LOWER("code") LIKE LOWER('X_%')`, f.Render(dialect.SQLite))
}

func TestCompile_Empty(t *testing.T) {
	f, err := Compile(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.IsEmpty())

	f, err = CompileDomain(Domain{})
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		domain Domain
		msg    string
	}{
		{"ordering against null", Domain{T("x", ">", nil)}, `operator ">" cannot compare with null`},
		{"pattern against number", Domain{T("x", "ilike", 3)}, `expects a string pattern`},
		{"invalid field name", Domain{T(`x"; DROP TABLE t; --`, "=", 1)}, "invalid field name"},
		{"unsupported value", Domain{T("x", "=", []int{1})}, "invalid value"},
		{"malformed", Domain{a, b}, "unconsumed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileDomain(tt.domain)
			require.Error(t, err)
			assert.True(t, silo.IsDomain(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCompile_Resolver(t *testing.T) {
	fields := map[string]field.Field{
		"name":       field.String("name").Size(8),
		"amount":     field.Float("amount"),
		"state":      field.Selection("state", "draft", "done"),
		"partner_id": field.Many2one("partner_id", "res_partner"),
		"line_ids":   field.One2many("line_ids", "sale_order_line", "order_id"),
		"date_order": field.Datetime("date_order"),
	}
	resolve := WithResolver(func(name string) (field.Field, bool) {
		f, ok := fields[name]
		return f, ok
	})

	got := compile(t, Domain{
		T("amount", ">", 100), OpAnd,
		T("state", "=", "draft"), OpAnd,
		T("partner_id", "=", int32(7)), OpAnd,
		T("name", "ilike", "a longer pattern than the column"),
	}, resolve)
	assert.Equal(t, `(("amount" > 100 AND "state" = 'draft') AND "partner_id" = 7) AND LOWER("name") LIKE LOWER('%a longer pattern than the column%')`, got)

	loc := time.FixedZone("UTC+2", 2*60*60)
	got = compile(t, Domain{T("date_order", "<", time.Date(2024, 1, 1, 2, 0, 0, 0, loc))}, resolve)
	assert.Equal(t, `"date_order" < '2024-01-01 00:00:00'`, got)

	tests := []struct {
		name string
		term Term
		msg  string
	}{
		{"unknown field", T("ghost", "=", 1), `unknown field "ghost"`},
		{"virtual field", T("line_ids", "=", 1), `field "line_ids" is not stored`},
		{"bad selection", T("state", "=", "cancel"), `invalid value for field "state"`},
		{"bad number", T("amount", "=", "abc"), `invalid value for field "amount"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileDomain(Domain{tt.term}, resolve)
			require.Error(t, err)
			assert.True(t, silo.IsDomain(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := CompileDomain(Domain{T("amount", "=", "abc")}, resolve)
	assert.True(t, errors.Is(err, field.ErrInvalidValue))
}

type orderState string

func TestPredicates(t *testing.T) {
	name := StringField("name")
	assert.Equal(t, "name", name.Name())
	assert.Equal(t, T("name", "ilike", "acme"), name.ILike("acme"))
	assert.Equal(t, T("name", "=ilike", "ac_e"), name.Like("ac_e"))
	assert.Equal(t, T("name", "=", nil), name.IsNull())
	assert.Equal(t, T("name", "!=", nil), name.NotNull())
	assert.Equal(t, T("qty", ">=", int64(3)), IntField("qty").GTE(3))
	assert.Equal(t, T("price", "<", 9.5), FloatField("price").LT(9.5))
	assert.Equal(t, T("active", "!=", false), BoolField("active").NEQ(false))
	assert.Equal(t, T("partner_id", "=", 4), RefField("partner_id").EQ(4))

	day := field.DateOf(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, `"d" <= '2024-02-29'`, compile(t, DateField("d").LTE(day).Domain()))

	state := EnumField[orderState]("state")
	assert.Equal(t, `"state" = 'draft' OR "state" = 'done'`, compile(t, state.In("draft", "done")))
	assert.Equal(t, T("state", "!=", "draft"), state.NEQ("draft"))

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := compile(t, AllOf(name.ILike("acme"), AnyOf(TimeField("date_order").GT(since), Negate(BoolField("active").EQ(true)))))
	assert.Equal(t, `LOWER("name") LIKE LOWER('%acme%') AND ("date_order" > '2024-01-01 00:00:00' OR NOT ("active" = TRUE))`, got)
}
