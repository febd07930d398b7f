package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/silo/schema/field"
)

// Column is the desired or live shape of a table column.
type Column struct {
	Name        string
	Type        field.TypeInfo
	Constraints []field.Constraint
}

// NewColumn returns a column with the given type and constraints.
func NewColumn(name string, typ field.TypeInfo, cs ...field.Constraint) *Column {
	return &Column{Name: name, Type: typ, Constraints: cs}
}

// ColumnOf returns the column backing a materialized field.
func ColumnOf(f field.Field) *Column {
	d := f.Descriptor()
	return &Column{Name: d.Name, Type: d.Info, Constraints: d.Constraints()}
}

// Has reports whether the column carries a constraint of the given kind.
func (c *Column) Has(kind field.ConstraintKind) bool {
	for _, x := range c.Constraints {
		if x.Kind == kind {
			return true
		}
	}
	return false
}

// Matches reports whether both columns have the same name and type.
// Constraints are deliberately not compared.
func (c *Column) Matches(o *Column) bool {
	return c.Name == o.Name && c.Type.Equal(o.Type)
}

// String returns the column as `name TYPE`.
func (c *Column) String() string {
	return c.Name + " " + c.Type.String()
}

// Table describes a table by its ordered columns.
type Table struct {
	Name    string
	Columns []*Column
}

// NewTable returns a new table with the given columns.
func NewTable(name string, columns ...*Column) *Table {
	return &Table{Name: name, Columns: columns}
}

// AddColumn appends a column to the table.
func (t *Table) AddColumn(c *Column) *Table {
	t.Columns = append(t.Columns, c)
	return t
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// PrimaryKey returns the primary key columns of the table.
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.Columns {
		if c.Has(field.PrimaryKey) {
			pk = append(pk, c)
		}
	}
	return pk
}

// ForeignKeys returns the foreign key constraints of the table, keyed by
// column name, in column order.
func (t *Table) ForeignKeys() []ForeignKey {
	var fks []ForeignKey
	for _, c := range t.Columns {
		for _, x := range c.Constraints {
			if x.Kind == field.ForeignKey {
				fks = append(fks, ForeignKey{Column: c.Name, RefTable: x.RefTable, RefColumn: x.RefColumn})
			}
		}
	}
	return fks
}

// ForeignKey is a single-column foreign key of a table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// describe returns the `name TYPE` form of the columns.
func describe(columns []*Column) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.String()
	}
	return out
}

// diffColumns returns the desired columns missing from live and the live
// columns missing from desired, matching on (name, type).
func diffColumns(live, desired []*Column) (toAdd, toRemove []*Column) {
	matched := func(c *Column, set []*Column) bool {
		for _, o := range set {
			if c.Matches(o) {
				return true
			}
		}
		return false
	}
	for _, c := range desired {
		if !matched(c, live) {
			toAdd = append(toAdd, c)
		}
	}
	for _, c := range live {
		if !matched(c, desired) {
			toRemove = append(toRemove, c)
		}
	}
	return toAdd, toRemove
}

// constraintName returns the name of a constraint added after table
// creation, e.g. constraint_code_unique.
func constraintName(column string, kind field.ConstraintKind) string {
	return fmt.Sprintf("constraint_%s_%s", column, strings.ReplaceAll(strings.ToLower(kind.String()), " ", "_"))
}
