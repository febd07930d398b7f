package domain

import (
	"time"

	"github.com/syssam/silo/schema/field"
)

// StringField provides typed terms for a string, text or selection field.
//
// Usage:
//
//	var Name = domain.StringField("name")
//	rs.Search(ctx, domain.AllOf(Name.ILike("acme"), Name.NEQ("ACME Inc")))
type StringField string

// Name returns the field name.
func (f StringField) Name() string { return string(f) }

// EQ returns a term that checks if the field equals the given value.
func (f StringField) EQ(v string) Term { return T(string(f), EQ, v) }

// NEQ returns a term that checks if the field does not equal the given value.
func (f StringField) NEQ(v string) Term { return T(string(f), NEQ, v) }

// GT returns a term that checks if the field is greater than the given value.
func (f StringField) GT(v string) Term { return T(string(f), GT, v) }

// GTE returns a term that checks if the field is greater than or equal to the given value.
func (f StringField) GTE(v string) Term { return T(string(f), GTE, v) }

// LT returns a term that checks if the field is less than the given value.
func (f StringField) LT(v string) Term { return T(string(f), LT, v) }

// LTE returns a term that checks if the field is less than or equal to the given value.
func (f StringField) LTE(v string) Term { return T(string(f), LTE, v) }

// ILike returns a term that checks if the field contains the given substring (case-insensitive).
func (f StringField) ILike(v string) Term { return T(string(f), ILike, v) }

// Like returns a term that checks if the field matches the given pattern
// (case-insensitive). % matches any sequence and _ any single character.
func (f StringField) Like(pattern string) Term { return T(string(f), EqualLike, pattern) }

// IsNull returns a term that checks if the field is NULL.
func (f StringField) IsNull() Term { return T(string(f), EQ, nil) }

// NotNull returns a term that checks if the field is not NULL.
func (f StringField) NotNull() Term { return T(string(f), NEQ, nil) }

// IntField provides typed terms for an integer field.
type IntField string

// Name returns the field name.
func (f IntField) Name() string { return string(f) }

// EQ returns a term that checks if the field equals the given value.
func (f IntField) EQ(v int64) Term { return T(string(f), EQ, v) }

// NEQ returns a term that checks if the field does not equal the given value.
func (f IntField) NEQ(v int64) Term { return T(string(f), NEQ, v) }

// GT returns a term that checks if the field is greater than the given value.
func (f IntField) GT(v int64) Term { return T(string(f), GT, v) }

// GTE returns a term that checks if the field is greater than or equal to the given value.
func (f IntField) GTE(v int64) Term { return T(string(f), GTE, v) }

// LT returns a term that checks if the field is less than the given value.
func (f IntField) LT(v int64) Term { return T(string(f), LT, v) }

// LTE returns a term that checks if the field is less than or equal to the given value.
func (f IntField) LTE(v int64) Term { return T(string(f), LTE, v) }

// IsNull returns a term that checks if the field is NULL.
func (f IntField) IsNull() Term { return T(string(f), EQ, nil) }

// NotNull returns a term that checks if the field is not NULL.
func (f IntField) NotNull() Term { return T(string(f), NEQ, nil) }

// FloatField provides typed terms for a float field.
type FloatField string

// Name returns the field name.
func (f FloatField) Name() string { return string(f) }

// EQ returns a term that checks if the field equals the given value.
func (f FloatField) EQ(v float64) Term { return T(string(f), EQ, v) }

// NEQ returns a term that checks if the field does not equal the given value.
func (f FloatField) NEQ(v float64) Term { return T(string(f), NEQ, v) }

// GT returns a term that checks if the field is greater than the given value.
func (f FloatField) GT(v float64) Term { return T(string(f), GT, v) }

// GTE returns a term that checks if the field is greater than or equal to the given value.
func (f FloatField) GTE(v float64) Term { return T(string(f), GTE, v) }

// LT returns a term that checks if the field is less than the given value.
func (f FloatField) LT(v float64) Term { return T(string(f), LT, v) }

// LTE returns a term that checks if the field is less than or equal to the given value.
func (f FloatField) LTE(v float64) Term { return T(string(f), LTE, v) }

// IsNull returns a term that checks if the field is NULL.
func (f FloatField) IsNull() Term { return T(string(f), EQ, nil) }

// NotNull returns a term that checks if the field is not NULL.
func (f FloatField) NotNull() Term { return T(string(f), NEQ, nil) }

// BoolField provides typed terms for a boolean field.
type BoolField string

// Name returns the field name.
func (f BoolField) Name() string { return string(f) }

// EQ returns a term that checks if the field equals the given value.
func (f BoolField) EQ(v bool) Term { return T(string(f), EQ, v) }

// NEQ returns a term that checks if the field does not equal the given value.
func (f BoolField) NEQ(v bool) Term { return T(string(f), NEQ, v) }

// IsNull returns a term that checks if the field is NULL.
func (f BoolField) IsNull() Term { return T(string(f), EQ, nil) }

// NotNull returns a term that checks if the field is not NULL.
func (f BoolField) NotNull() Term { return T(string(f), NEQ, nil) }

// TimeField provides typed terms for a datetime field.
type TimeField string

// Name returns the field name.
func (f TimeField) Name() string { return string(f) }

// EQ returns a term that checks if the field equals the given value.
func (f TimeField) EQ(v time.Time) Term { return T(string(f), EQ, v) }

// NEQ returns a term that checks if the field does not equal the given value.
func (f TimeField) NEQ(v time.Time) Term { return T(string(f), NEQ, v) }

// GT returns a term that checks if the field is after the given time.
func (f TimeField) GT(v time.Time) Term { return T(string(f), GT, v) }

// GTE returns a term that checks if the field is not before the given time.
func (f TimeField) GTE(v time.Time) Term { return T(string(f), GTE, v) }

// LT returns a term that checks if the field is before the given time.
func (f TimeField) LT(v time.Time) Term { return T(string(f), LT, v) }

// LTE returns a term that checks if the field is not after the given time.
func (f TimeField) LTE(v time.Time) Term { return T(string(f), LTE, v) }

// IsNull returns a term that checks if the field is NULL.
func (f TimeField) IsNull() Term { return T(string(f), EQ, nil) }

// NotNull returns a term that checks if the field is not NULL.
func (f TimeField) NotNull() Term { return T(string(f), NEQ, nil) }

// DateField provides typed terms for a date field.
type DateField string

// Name returns the field name.
func (f DateField) Name() string { return string(f) }

// EQ returns a term that checks if the field equals the given date.
func (f DateField) EQ(v field.DateValue) Term { return T(string(f), EQ, v) }

// NEQ returns a term that checks if the field does not equal the given date.
func (f DateField) NEQ(v field.DateValue) Term { return T(string(f), NEQ, v) }

// GT returns a term that checks if the field is after the given date.
func (f DateField) GT(v field.DateValue) Term { return T(string(f), GT, v) }

// GTE returns a term that checks if the field is not before the given date.
func (f DateField) GTE(v field.DateValue) Term { return T(string(f), GTE, v) }

// LT returns a term that checks if the field is before the given date.
func (f DateField) LT(v field.DateValue) Term { return T(string(f), LT, v) }

// LTE returns a term that checks if the field is not after the given date.
func (f DateField) LTE(v field.DateValue) Term { return T(string(f), LTE, v) }

// IsNull returns a term that checks if the field is NULL.
func (f DateField) IsNull() Term { return T(string(f), EQ, nil) }

// NotNull returns a term that checks if the field is not NULL.
func (f DateField) NotNull() Term { return T(string(f), NEQ, nil) }

// EnumField provides typed terms for a selection field whose options are
// values of E.
type EnumField[E ~string] string

// Name returns the field name.
func (f EnumField[E]) Name() string { return string(f) }

// EQ returns a term that checks if the field equals the given value.
func (f EnumField[E]) EQ(v E) Term { return T(string(f), EQ, string(v)) }

// NEQ returns a term that checks if the field does not equal the given value.
func (f EnumField[E]) NEQ(v E) Term { return T(string(f), NEQ, string(v)) }

// In returns a domain that checks if the field is one of the given values.
func (f EnumField[E]) In(vs ...E) Domain {
	parts := make([]Part, len(vs))
	for i, v := range vs {
		parts[i] = f.EQ(v)
	}
	return AnyOf(parts...)
}

// IsNull returns a term that checks if the field is NULL.
func (f EnumField[E]) IsNull() Term { return T(string(f), EQ, nil) }

// NotNull returns a term that checks if the field is not NULL.
func (f EnumField[E]) NotNull() Term { return T(string(f), NEQ, nil) }

// RefField provides typed terms for a many2one field. Values are record
// ids or values implementing field.Identifier.
type RefField string

// Name returns the field name.
func (f RefField) Name() string { return string(f) }

// EQ returns a term that checks if the field references the given record.
func (f RefField) EQ(v any) Term { return T(string(f), EQ, v) }

// NEQ returns a term that checks if the field does not reference the given record.
func (f RefField) NEQ(v any) Term { return T(string(f), NEQ, v) }

// IsNull returns a term that checks if the field is NULL.
func (f RefField) IsNull() Term { return T(string(f), EQ, nil) }

// NotNull returns a term that checks if the field is not NULL.
func (f RefField) NotNull() Term { return T(string(f), NEQ, nil) }
