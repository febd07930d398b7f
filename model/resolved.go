package model

import (
	"slices"

	"github.com/syssam/silo/dialect/sql/schema"
	"github.com/syssam/silo/schema/field"
)

// IDField is the name of the primary key field of every model.
const IDField = "id"

// Resolved is a model with all of its contributors merged.
type Resolved struct {
	name     string
	abstract bool
	fields   []field.Field
	index    map[string]int
	lineage  []string
	impls    map[string][]impl
	methods  map[string]Next
	// explicitID is set when a contributor declares the id field.
	explicitID bool
}

// Name returns the model name, which is also its table name.
func (m *Resolved) Name() string { return m.name }

// Abstract reports whether the model is not materialized into a table.
func (m *Resolved) Abstract() bool { return m.abstract }

// Fields returns the merged fields in order.
func (m *Resolved) Fields() []field.Field {
	return slices.Clone(m.fields)
}

// Field returns the named field.
func (m *Resolved) Field(name string) (field.Field, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.fields[i], true
}

// FieldNames returns the names of the fields in order.
func (m *Resolved) FieldNames() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.Descriptor().Name
	}
	return names
}

// Lineage returns the names of the contributors in merge order.
func (m *Resolved) Lineage() []string {
	return slices.Clone(m.lineage)
}

// Method returns the composed implementation of the named method.
func (m *Resolved) Method(name string) (Next, bool) {
	fn, ok := m.methods[name]
	return fn, ok
}

// MethodNames returns the sorted names of the model methods.
func (m *Resolved) MethodNames() []string {
	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Columns returns the columns of the materialized fields.
func (m *Resolved) Columns() []*schema.Column {
	var columns []*schema.Column
	for _, f := range m.fields {
		if f.Descriptor().Materialized() {
			columns = append(columns, schema.ColumnOf(f))
		}
	}
	return columns
}

// Table returns the table of the model.
func (m *Resolved) Table() *schema.Table {
	return schema.NewTable(m.name, m.Columns()...)
}

// contributor is an entry of a model's contributor list: a declaration,
// or a reference to another model by name that is replaced by the
// resolved model during resolution.
type contributor struct {
	decl *Declaration
	ref  string
	res  *Resolved
}

// key identifies the contributor for deduplication.
func (c contributor) key() any {
	if c.res != nil {
		return c.res
	}
	return c.decl
}

// dedupe removes repeated contributors, keeping the last occurrence.
func dedupe(list []contributor) []contributor {
	seen := make(map[any]bool, len(list))
	out := make([]contributor, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		k := list[i].key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, list[i])
	}
	slices.Reverse(out)
	return out
}

// build merges the contributors of the named model.
func build(name string, abstract bool, list []contributor) *Resolved {
	m := &Resolved{
		name:     name,
		abstract: abstract,
		index:    make(map[string]int),
		impls:    make(map[string][]impl),
	}
	for _, c := range list {
		var fields []field.Field
		if c.res != nil {
			m.lineage = append(m.lineage, c.res.name)
			for _, f := range c.res.fields {
				if f.Descriptor().Name == IDField && !c.res.explicitID {
					continue
				}
				fields = append(fields, f)
			}
			m.explicitID = m.explicitID || c.res.explicitID
			for mname, impls := range c.res.impls {
				m.impls[mname] = append(m.impls[mname], impls...)
			}
		} else {
			m.lineage = append(m.lineage, c.decl.model())
			fields = c.decl.Fields
			for mname, fn := range c.decl.Methods {
				m.impls[mname] = append(m.impls[mname], impl{owner: c.decl, fn: fn})
			}
		}
		for _, f := range fields {
			fname := f.Descriptor().Name
			if fname == IDField && c.decl != nil {
				m.explicitID = true
			}
			if i, ok := m.index[fname]; ok {
				m.fields[i] = f
				continue
			}
			m.index[fname] = len(m.fields)
			m.fields = append(m.fields, f)
		}
	}
	if _, ok := m.index[IDField]; !ok {
		m.fields = append([]field.Field{field.ID()}, m.fields...)
		for i, f := range m.fields {
			m.index[f.Descriptor().Name] = i
		}
	}
	m.methods = make(map[string]Next, len(m.impls))
	for mname, impls := range m.impls {
		impls = dedupeImpls(impls)
		m.impls[mname] = impls
		m.methods[mname] = chain(impls)
	}
	return m
}

// dedupeImpls removes implementations contributed more than once by the
// same declaration, keeping the first occurrence so that a shared base is
// called after every model inheriting it.
func dedupeImpls(impls []impl) []impl {
	seen := make(map[*Declaration]bool, len(impls))
	out := make([]impl, 0, len(impls))
	for _, im := range impls {
		if seen[im.owner] {
			continue
		}
		seen[im.owner] = true
		out = append(out, im)
	}
	return out
}
