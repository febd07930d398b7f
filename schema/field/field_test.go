package field_test

import (
	"errors"
	"testing"
	"time"

	"github.com/syssam/silo/schema/field"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeInfo(t *testing.T) {
	tests := []struct {
		info field.TypeInfo
		want string
	}{
		{field.IntType, "INTEGER"},
		{field.FloatType, "FLOAT"},
		{field.StringType(123), "VARCHAR(123)"},
		{field.TextType, "TEXT"},
		{field.DateType, "DATE"},
		{field.TimeType, "TIMESTAMP"},
		{field.BoolType, "BOOLEAN"},
		{field.OtherType("jsonb"), "JSONB"},
		{field.TypeInfo{}, "INVALID"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.info.String())
	}

	assert.True(t, field.StringType(255).Equal(field.StringType(255)))
	assert.False(t, field.StringType(255).Equal(field.StringType(123)))
	assert.False(t, field.IntType.Equal(field.FloatType))
	assert.True(t, field.OtherType("JSONB").Equal(field.OtherType("jsonb")))
	assert.True(t, field.IntType.Equal(field.TypeInfo{Type: field.TypeInt, Size: 4}), "size only matters for strings")

	assert.Equal(t, "string", field.TypeString.String())
	assert.Equal(t, "invalid", field.Type(200).String())
	assert.True(t, field.TypeBool.Valid())
	assert.False(t, field.TypeInvalid.Valid())
}

func TestConstraints(t *testing.T) {
	fd := field.ID().Descriptor()
	assert.Equal(t, "id", fd.Name)
	assert.Equal(t, []field.Constraint{{Kind: field.PrimaryKey}}, fd.Constraints())

	fd = field.String("code").Required().Unique().Descriptor()
	assert.Equal(t, []field.Constraint{{Kind: field.NotNull}, {Kind: field.Unique}}, fd.Constraints())

	fd = field.Many2one("partner_id", "res_partner").Required().Descriptor()
	assert.Equal(t, []field.Constraint{
		{Kind: field.NotNull},
		{Kind: field.ForeignKey, RefTable: "res_partner", RefColumn: "id"},
	}, fd.Constraints())
	assert.Equal(t, "FOREIGN KEY -> res_partner(id)", fd.Constraints()[1].String())
	assert.Equal(t, "NOT NULL", field.NotNull.String())

	assert.Empty(t, field.Text("notes").Descriptor().Constraints())
}

func TestInteger(t *testing.T) {
	f := field.Integer("qty")
	fd := f.Descriptor()
	assert.Equal(t, field.KindInteger, fd.Kind)
	assert.Equal(t, field.IntType, fd.Info)
	assert.True(t, fd.Materialized())

	for _, in := range []any{1, int8(1), int32(1), int64(1), uint16(1), uint64(1)} {
		v, err := f.ToStorage(in)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	}
	v, err := f.ToStorage(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	for _, in := range []any{"1", 1.5, true, uint64(1 << 63)} {
		_, err := f.ToStorage(in)
		require.ErrorIs(t, err, field.ErrInvalidValue, "%v", in)
	}

	for _, in := range []any{int64(7), float64(7), "7", []byte("7")} {
		v, err := f.FromStorage(in)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
	}
	_, err = f.FromStorage("x")
	require.ErrorIs(t, err, field.ErrInvalidValue)
	_, err = f.FromStorage(7.5)
	require.ErrorIs(t, err, field.ErrInvalidValue)
}

func TestFloat(t *testing.T) {
	f := field.Float("amount").Required()
	assert.True(t, f.Descriptor().Required)

	v, err := f.ToStorage(3)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)
	v, err = f.ToStorage(float32(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	_, err = f.ToStorage("3")
	require.ErrorIs(t, err, field.ErrInvalidValue)

	v, err = f.FromStorage("2.25")
	require.NoError(t, err)
	assert.Equal(t, 2.25, v)
	v, err = f.FromStorage(int64(2))
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)
}

func TestString(t *testing.T) {
	f := field.String("name")
	assert.Equal(t, field.StringType(field.DefaultStringSize), f.Descriptor().Info)
	f.Size(3)
	assert.Equal(t, field.StringType(3), f.Descriptor().Info)

	v, err := f.ToStorage("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
	v, err = f.ToStorage("äöü")
	require.NoError(t, err, "length counts characters, not bytes")
	assert.Equal(t, "äöü", v)
	_, err = f.ToStorage("abcd")
	require.ErrorIs(t, err, field.ErrInvalidValue)
	_, err = f.ToStorage(5)
	require.ErrorIs(t, err, field.ErrInvalidValue)

	v, err = f.FromStorage([]byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, "xy", v)

	text := field.Text("notes").Size(10)
	assert.Equal(t, field.TextType, text.Descriptor().Info, "Size has no effect on text")
	_, err = text.ToStorage(string(make([]byte, 1000)))
	require.NoError(t, err)
}

func TestSelection(t *testing.T) {
	f := field.Selection("state", "draft", "done")
	fd := f.Descriptor()
	assert.Equal(t, field.KindSelection, fd.Kind)
	assert.Equal(t, []string{"draft", "done"}, fd.Options)

	v, err := f.ToStorage("done")
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	_, err = f.ToStorage("cancel")
	require.ErrorIs(t, err, field.ErrInvalidValue)
}

func TestDate(t *testing.T) {
	f := field.Date("day")
	d := field.DateValue{Year: 2024, Month: time.February, Day: 29}
	assert.Equal(t, "2024-02-29", d.String())
	dv, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", dv)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d.Time())

	v, err := f.ToStorage(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, d, v)
	_, err = f.ToStorage("2024-02-29")
	require.ErrorIs(t, err, field.ErrInvalidValue)

	for _, in := range []any{"2024-02-29", "2024-02-29T00:00:00Z", []byte("2024-02-29"), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)} {
		v, err := f.FromStorage(in)
		require.NoError(t, err)
		assert.Equal(t, d, v)
	}
	_, err = f.FromStorage("29/02/2024")
	require.ErrorIs(t, err, field.ErrInvalidValue)
}

func TestDatetime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	f := field.Datetime("at").In(loc)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, loc)

	v, err := f.ToStorage(ts)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, v.(time.Time).Location())
	assert.True(t, ts.Equal(v.(time.Time)))

	for _, in := range []any{"2024-03-01 10:00:00", "2024-03-01T10:00:00Z", ts.UTC()} {
		v, err := f.FromStorage(in)
		require.NoError(t, err)
		got := v.(time.Time)
		assert.True(t, ts.Equal(got), "%v", in)
		assert.Equal(t, loc, got.Location())
	}
	_, err = f.FromStorage("noon")
	require.ErrorIs(t, err, field.ErrInvalidValue)
	_, err = f.ToStorage("2024-03-01")
	require.ErrorIs(t, err, field.ErrInvalidValue)
}

func TestBoolean(t *testing.T) {
	f := field.Boolean("active")
	v, err := f.ToStorage(true)
	require.NoError(t, err)
	assert.Equal(t, true, v)
	_, err = f.ToStorage(1)
	require.ErrorIs(t, err, field.ErrInvalidValue)

	tests := map[any]bool{int64(1): true, int64(0): false, "true": true, "0": false, false: false}
	for in, want := range tests {
		v, err := f.FromStorage(in)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

type ident struct {
	id  int64
	err error
}

func (i ident) ID() (int64, error) { return i.id, i.err }

func TestRelational(t *testing.T) {
	m2o := field.Many2one("partner_id", "res_partner")
	fd := m2o.Descriptor()
	assert.Equal(t, field.KindMany2one, fd.Kind)
	assert.Equal(t, field.IntType, fd.Info)
	assert.Equal(t, "res_partner", fd.Target)

	v, err := m2o.ToStorage(ident{id: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)
	v, err = m2o.ToStorage(4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
	_, err = m2o.ToStorage(ident{err: errors.New("expected singleton")})
	require.ErrorIs(t, err, field.ErrInvalidValue)
	_, err = m2o.ToStorage("4")
	require.ErrorIs(t, err, field.ErrInvalidValue)
	v, err = m2o.FromStorage(int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	o2m := field.One2many("line_ids", "sale_order_line", "order_id")
	od := o2m.Descriptor()
	assert.True(t, od.Virtual)
	assert.False(t, od.Materialized())
	assert.Equal(t, "order_id", od.Inverse)
	_, err = o2m.ToStorage([]int64{1})
	require.ErrorIs(t, err, field.ErrInvalidValue)
	v, err = o2m.FromStorage(int64(1))
	require.NoError(t, err)
	assert.Nil(t, v)
}
