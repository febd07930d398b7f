package field

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrInvalidValue is wrapped by every conversion error of this package.
var ErrInvalidValue = errors.New("field: invalid value")

// DefaultStringSize is the length of String fields without an explicit size.
const DefaultStringSize = 255

// Field kinds, as reported by Descriptor.Kind.
const (
	KindInteger   = "integer"
	KindFloat     = "float"
	KindString    = "string"
	KindText      = "text"
	KindDate      = "date"
	KindDatetime  = "datetime"
	KindBoolean   = "boolean"
	KindSelection = "selection"
	KindID        = "id"
	KindMany2one  = "many2one"
	KindOne2many  = "one2many"
)

// A Field is the metadata of a model field and the conversions between
// application values and the values stored in its column.
type Field interface {
	// Descriptor returns the field metadata.
	Descriptor() *Descriptor
	// ToStorage validates an application value and converts it to the
	// value written to the database. nil is passed through.
	ToStorage(v any) (any, error)
	// FromStorage converts a value read from the database.
	FromStorage(v any) (any, error)
}

// Descriptor describes a field.
type Descriptor struct {
	Name       string
	Kind       string
	Info       TypeInfo
	Required   bool
	Unique     bool
	PrimaryKey bool
	// Virtual fields are not backed by a column (e.g. One2many).
	Virtual bool
	// Options holds the allowed values of a selection field.
	Options []string
	// Target is the model referenced by relational fields.
	Target string
	// Inverse is the Many2one field on Target pointing back (One2many).
	Inverse string
}

// Materialized reports whether the field is backed by a column.
func (d *Descriptor) Materialized() bool {
	return !d.Virtual
}

// Constraints returns the column constraints of the field.
func (d *Descriptor) Constraints() []Constraint {
	var cs []Constraint
	if d.Required {
		cs = append(cs, Constraint{Kind: NotNull})
	}
	if d.PrimaryKey {
		cs = append(cs, Constraint{Kind: PrimaryKey})
	}
	if d.Unique {
		cs = append(cs, Constraint{Kind: Unique})
	}
	if d.Kind == KindMany2one && d.Target != "" {
		cs = append(cs, Constraint{Kind: ForeignKey, RefTable: d.Target, RefColumn: "id"})
	}
	return cs
}

func invalid(name string, v any, want string) error {
	return fmt.Errorf("%w: field %q expects %s, got %T", ErrInvalidValue, name, want, v)
}

// IntField is an integer field.
type IntField struct{ desc *Descriptor }

// Integer returns a new integer field.
func Integer(name string) *IntField {
	return &IntField{desc: &Descriptor{Name: name, Kind: KindInteger, Info: IntType}}
}

// ID returns the integer primary key field named "id" every model carries.
func ID() *IntField {
	return &IntField{desc: &Descriptor{Name: "id", Kind: KindID, Info: IntType, PrimaryKey: true}}
}

// Required marks the field as NOT NULL.
func (f *IntField) Required() *IntField { f.desc.Required = true; return f }

// Unique adds a UNIQUE constraint.
func (f *IntField) Unique() *IntField { f.desc.Unique = true; return f }

// Descriptor implements the Field interface.
func (f *IntField) Descriptor() *Descriptor { return f.desc }

// ToStorage implements the Field interface.
func (f *IntField) ToStorage(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, invalid(f.desc.Name, v, "an integer")
	}
	return n, nil
}

// FromStorage implements the Field interface.
func (f *IntField) FromStorage(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if n, ok := toInt64(v); ok {
		return n, nil
	}
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) {
			return int64(x), nil
		}
	case string:
		return parseInt(f.desc.Name, x)
	case []byte:
		return parseInt(f.desc.Name, string(x))
	}
	return nil, invalid(f.desc.Name, v, "an integer")
}

func parseInt(name, s string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidValue, name, err)
	}
	return n, nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x), true
		}
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	}
	return 0, false
}

// FloatField is a floating point field.
type FloatField struct{ desc *Descriptor }

// Float returns a new float field.
func Float(name string) *FloatField {
	return &FloatField{desc: &Descriptor{Name: name, Kind: KindFloat, Info: FloatType}}
}

// Required marks the field as NOT NULL.
func (f *FloatField) Required() *FloatField { f.desc.Required = true; return f }

// Unique adds a UNIQUE constraint.
func (f *FloatField) Unique() *FloatField { f.desc.Unique = true; return f }

// Descriptor implements the Field interface.
func (f *FloatField) Descriptor() *Descriptor { return f.desc }

// ToStorage implements the Field interface.
func (f *FloatField) ToStorage(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	}
	if n, ok := toInt64(v); ok {
		return float64(n), nil
	}
	return nil, invalid(f.desc.Name, v, "a number")
}

// FromStorage implements the Field interface.
func (f *FloatField) FromStorage(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return parseFloat(f.desc.Name, x)
	case []byte:
		return parseFloat(f.desc.Name, string(x))
	}
	return f.ToStorage(v)
}

func parseFloat(name, s string) (any, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidValue, name, err)
	}
	return n, nil
}

// StringField is a string field backed by VARCHAR(n) or TEXT columns.
// Selection fields are string fields restricted to a set of options.
type StringField struct{ desc *Descriptor }

// String returns a new VARCHAR field of DefaultStringSize.
func String(name string) *StringField {
	return &StringField{desc: &Descriptor{Name: name, Kind: KindString, Info: StringType(DefaultStringSize)}}
}

// Text returns a new unbounded text field.
func Text(name string) *StringField {
	return &StringField{desc: &Descriptor{Name: name, Kind: KindText, Info: TextType}}
}

// Selection returns a new string field accepting only the given options.
func Selection(name string, options ...string) *StringField {
	return &StringField{desc: &Descriptor{
		Name:    name,
		Kind:    KindSelection,
		Info:    StringType(DefaultStringSize),
		Options: options,
	}}
}

// Size sets the length of a VARCHAR field. It has no effect on Text fields.
func (f *StringField) Size(n int) *StringField {
	if f.desc.Info.Type == TypeString {
		f.desc.Info.Size = n
	}
	return f
}

// Required marks the field as NOT NULL.
func (f *StringField) Required() *StringField { f.desc.Required = true; return f }

// Unique adds a UNIQUE constraint.
func (f *StringField) Unique() *StringField { f.desc.Unique = true; return f }

// Descriptor implements the Field interface.
func (f *StringField) Descriptor() *Descriptor { return f.desc }

// ToStorage implements the Field interface.
func (f *StringField) ToStorage(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, invalid(f.desc.Name, v, "a string")
	}
	if f.desc.Info.Type == TypeString && utf8.RuneCountInString(s) > f.desc.Info.Size {
		return nil, fmt.Errorf("%w: field %q is limited to %d characters", ErrInvalidValue, f.desc.Name, f.desc.Info.Size)
	}
	if f.desc.Kind == KindSelection && !slices.Contains(f.desc.Options, s) {
		return nil, fmt.Errorf("%w: field %q: %q is not one of %q", ErrInvalidValue, f.desc.Name, s, f.desc.Options)
	}
	return s, nil
}

// FromStorage implements the Field interface.
func (f *StringField) FromStorage(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return nil, invalid(f.desc.Name, v, "a string")
}

// DateValue is a calendar date without time of day.
type DateValue struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date of t in t's location.
func DateOf(t time.Time) DateValue {
	y, m, d := t.Date()
	return DateValue{Year: y, Month: m, Day: d}
}

// ParseDate parses a date in the YYYY-MM-DD form. Longer inputs such as
// timestamps are truncated to their date part.
func ParseDate(s string) (DateValue, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return DateValue{}, err
	}
	return DateOf(t), nil
}

// String returns the date in the YYYY-MM-DD form.
func (d DateValue) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns midnight UTC of the date.
func (d DateValue) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Value implements the driver.Valuer interface.
func (d DateValue) Value() (driver.Value, error) {
	return d.String(), nil
}

// DateField is a date field.
type DateField struct{ desc *Descriptor }

// Date returns a new date field.
func Date(name string) *DateField {
	return &DateField{desc: &Descriptor{Name: name, Kind: KindDate, Info: DateType}}
}

// Required marks the field as NOT NULL.
func (f *DateField) Required() *DateField { f.desc.Required = true; return f }

// Unique adds a UNIQUE constraint.
func (f *DateField) Unique() *DateField { f.desc.Unique = true; return f }

// Descriptor implements the Field interface.
func (f *DateField) Descriptor() *Descriptor { return f.desc }

// ToStorage implements the Field interface.
func (f *DateField) ToStorage(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case DateValue:
		return x, nil
	case time.Time:
		return DateOf(x), nil
	}
	return nil, invalid(f.desc.Name, v, "a date")
}

// FromStorage implements the Field interface.
func (f *DateField) FromStorage(v any) (any, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return f.ToStorage(v)
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidValue, f.desc.Name, err)
	}
	return d, nil
}

// DatetimeField is a timestamp field. Values are stored in UTC and read
// back in the field location.
type DatetimeField struct {
	desc *Descriptor
	loc  *time.Location
}

// Datetime returns a new timestamp field.
func Datetime(name string) *DatetimeField {
	return &DatetimeField{desc: &Descriptor{Name: name, Kind: KindDatetime, Info: TimeType}, loc: time.UTC}
}

// In sets the location of the values read from the database.
func (f *DatetimeField) In(loc *time.Location) *DatetimeField { f.loc = loc; return f }

// Required marks the field as NOT NULL.
func (f *DatetimeField) Required() *DatetimeField { f.desc.Required = true; return f }

// Unique adds a UNIQUE constraint.
func (f *DatetimeField) Unique() *DatetimeField { f.desc.Unique = true; return f }

// Descriptor implements the Field interface.
func (f *DatetimeField) Descriptor() *Descriptor { return f.desc }

// ToStorage implements the Field interface.
func (f *DatetimeField) ToStorage(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.UTC(), nil
	}
	return nil, invalid(f.desc.Name, v, "a time.Time")
}

// datetimeLayouts are the textual forms databases return timestamps in.
var datetimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	time.DateOnly,
}

// FromStorage implements the Field interface.
func (f *DatetimeField) FromStorage(v any) (any, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return x.In(f.loc), nil
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return nil, invalid(f.desc.Name, v, "a timestamp")
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.In(f.loc), nil
		}
	}
	return nil, fmt.Errorf("%w: field %q: cannot parse timestamp %q", ErrInvalidValue, f.desc.Name, s)
}

// BoolField is a boolean field.
type BoolField struct{ desc *Descriptor }

// Boolean returns a new boolean field.
func Boolean(name string) *BoolField {
	return &BoolField{desc: &Descriptor{Name: name, Kind: KindBoolean, Info: BoolType}}
}

// Required marks the field as NOT NULL.
func (f *BoolField) Required() *BoolField { f.desc.Required = true; return f }

// Descriptor implements the Field interface.
func (f *BoolField) Descriptor() *Descriptor { return f.desc }

// ToStorage implements the Field interface.
func (f *BoolField) ToStorage(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	}
	return nil, invalid(f.desc.Name, v, "a bool")
}

// FromStorage implements the Field interface. SQLite and MySQL store
// booleans as integers.
func (f *BoolField) FromStorage(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidValue, f.desc.Name, err)
		}
		return b, nil
	case []byte:
		return f.FromStorage(string(x))
	}
	return nil, invalid(f.desc.Name, v, "a bool")
}

// Identifier is implemented by values that designate a single record,
// such as a singleton recordset.
type Identifier interface {
	ID() (int64, error)
}

// Many2oneField references one record of the target model. It is stored
// as the integer id of the record, with a foreign key to the target table.
type Many2oneField struct{ desc *Descriptor }

// Many2one returns a new many-to-one field referencing target.
func Many2one(name, target string) *Many2oneField {
	return &Many2oneField{desc: &Descriptor{Name: name, Kind: KindMany2one, Info: IntType, Target: target}}
}

// Required marks the field as NOT NULL.
func (f *Many2oneField) Required() *Many2oneField { f.desc.Required = true; return f }

// Descriptor implements the Field interface.
func (f *Many2oneField) Descriptor() *Descriptor { return f.desc }

// ToStorage implements the Field interface. It accepts record ids and
// Identifier values.
func (f *Many2oneField) ToStorage(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if id, ok := v.(Identifier); ok {
		n, err := id.ID()
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrInvalidValue, f.desc.Name, err)
		}
		return n, nil
	}
	if n, ok := toInt64(v); ok {
		return n, nil
	}
	return nil, invalid(f.desc.Name, v, "a record id")
}

// FromStorage implements the Field interface. It returns the record id.
func (f *Many2oneField) FromStorage(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if n, ok := toInt64(v); ok {
		return n, nil
	}
	return nil, invalid(f.desc.Name, v, "a record id")
}

// One2manyField is the virtual inverse of a Many2one field: the records
// of target whose inverse field points to the record. It has no column.
type One2manyField struct{ desc *Descriptor }

// One2many returns a new one-to-many field.
func One2many(name, target, inverse string) *One2manyField {
	return &One2manyField{desc: &Descriptor{
		Name:    name,
		Kind:    KindOne2many,
		Virtual: true,
		Target:  target,
		Inverse: inverse,
	}}
}

// Descriptor implements the Field interface.
func (f *One2manyField) Descriptor() *Descriptor { return f.desc }

// ToStorage implements the Field interface. One2many fields cannot be
// written; the inverse Many2one field must be set instead.
func (f *One2manyField) ToStorage(v any) (any, error) {
	return nil, fmt.Errorf("%w: field %q is not stored, write %s.%s instead", ErrInvalidValue, f.desc.Name, f.desc.Target, f.desc.Inverse)
}

// FromStorage implements the Field interface.
func (f *One2manyField) FromStorage(any) (any, error) {
	return nil, nil
}

// Interface compliance checks.
var (
	_ Field = (*IntField)(nil)
	_ Field = (*FloatField)(nil)
	_ Field = (*StringField)(nil)
	_ Field = (*DateField)(nil)
	_ Field = (*DatetimeField)(nil)
	_ Field = (*BoolField)(nil)
	_ Field = (*Many2oneField)(nil)
	_ Field = (*One2manyField)(nil)
)
