package gen

import (
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/silo/model"
	"github.com/syssam/silo/schema/field"
)

// Graph holds the models to generate.
type Graph struct {
	*Config
	Nodes []*Type
}

// Type is a model to generate.
type Type struct {
	// Name is the model name.
	Name string
	// Package is the Go package name of the model helpers.
	Package string
	Fields  []*Field
}

// Field is a model field.
type Field struct {
	Name    string
	Kind    string
	Options []string
	Target  string
	Virtual bool
}

// Searchable reports whether the field can appear in a domain.
func (f *Field) Searchable() bool { return !f.Virtual }

// StructField returns the Go name of the field, e.g. PartnerID.
func (f *Field) StructField() string { return pascal(f.Name) }

// Constant returns the name of the field name constant, e.g. FieldPartnerID.
func (f *Field) Constant() string { return "Field" + f.StructField() }

// IsEnum reports whether the field is a selection.
func (f *Field) IsEnum() bool { return f.Kind == field.KindSelection }

// EnumName returns the Go type of a selection field, e.g. State.
func (f *Field) EnumName() string { return f.StructField() }

// EnumConst returns the constant of a selection value, e.g. StateDraft.
func (f *Field) EnumConst(v string) string { return f.EnumName() + pascal(v) }

// NewGraph builds the graph of the non-abstract models of a resolved
// registry.
func NewGraph(reg *model.Registry, opts ...Option) (*Graph, error) {
	c, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if !reg.Resolved() {
		return nil, errors.New("gen: registry is not resolved")
	}
	g := &Graph{Config: c}
	packages := make(map[string]string)
	for _, m := range reg.Models() {
		if m.Abstract() {
			continue
		}
		t := &Type{Name: m.Name(), Package: packageName(m.Name())}
		if other, ok := packages[t.Package]; ok {
			return nil, fmt.Errorf("gen: models %q and %q map to the same package %q", other, t.Name, t.Package)
		}
		packages[t.Package] = t.Name
		for _, f := range m.Fields() {
			d := f.Descriptor()
			t.Fields = append(t.Fields, &Field{
				Name:    d.Name,
				Kind:    d.Kind,
				Options: slices.Clone(d.Options),
				Target:  d.Target,
				Virtual: d.Virtual,
			})
		}
		g.Nodes = append(g.Nodes, t)
	}
	return g, nil
}
