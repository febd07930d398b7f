package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/syssam/silo"
	"github.com/syssam/silo/schema/field"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(m *Resolved) map[string]string {
	out := make(map[string]string)
	for _, f := range m.Fields() {
		out[f.Descriptor().Name] = f.Descriptor().Info.String()
	}
	return out
}

func resolved(t *testing.T, decls ...*Declaration) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(decls...))
	require.NoError(t, r.Resolve())
	return r
}

func TestRegistry_Determinism(t *testing.T) {
	for range 3 {
		r := resolved(t,
			New("B", field.String("x"), field.Integer("y")).Inherit("A"),
			New("A", field.Integer("x")),
		)
		a, err := r.Get("A")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "x"}, a.FieldNames())
		assert.Equal(t, map[string]string{"id": "INTEGER", "x": "INTEGER"}, kinds(a))

		b, err := r.Get("B")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "x", "y"}, b.FieldNames())
		assert.Equal(t, map[string]string{"id": "INTEGER", "x": "VARCHAR(255)", "y": "INTEGER"}, kinds(b))
		assert.Equal(t, []string{"A", "B"}, b.Lineage())
	}
}

func TestRegistry_Extension(t *testing.T) {
	r := resolved(t,
		New("res_partner", field.Integer("x"), field.String("name")),
		Extend("res_partner", field.String("x").Size(16), field.Text("note")),
	)
	m, err := r.Get("res_partner")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "x", "name", "note"}, m.FieldNames())
	x, ok := m.Field("x")
	require.True(t, ok)
	assert.Equal(t, field.StringType(16), x.Descriptor().Info)
	assert.Equal(t, []string{"res_partner", "res_partner"}, m.Lineage())
	assert.Equal(t, []string{"res_partner"}, r.Names())

	_, ok = m.Field("missing")
	assert.False(t, ok)
}

func TestRegistry_Cycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		New("A").Inherit("B"),
		New("B").Inherit("A"),
	))
	err := r.Resolve()
	require.Error(t, err)
	assert.True(t, silo.IsCycle(err))
	assert.True(t, silo.IsDeclaration(err))
	var serr *silo.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, []string{"A", "B"}, serr.Models)
	assert.False(t, r.Resolved())

	r = NewRegistry()
	require.NoError(t, r.Register(New("self").Inherit("self")))
	require.ErrorIs(t, r.Resolve(), silo.ErrCycle)
}

func TestRegistry_RegisterErrors(t *testing.T) {
	tests := []struct {
		name  string
		decls []*Declaration
		msg   string
	}{
		{"nil declaration", []*Declaration{nil}, "nil declaration"},
		{"no name or extends", []*Declaration{{}}, "without name or extends"},
		{"extends differs from name", []*Declaration{{Name: "a", Extends: "b"}}, `name "a" must be equal to extends "b"`},
		{"extends unregistered", []*Declaration{Extend("a")}, `cannot extend model "a": model does not exist`},
		{"registered twice", []*Declaration{New("a"), New("a")}, `cannot register model "a" twice`},
		{"invalid name", []*Declaration{New("res.partner")}, `invalid model name "res.partner"`},
		{"duplicate field", []*Declaration{New("a", field.Integer("x"), field.Text("x"))}, `field "x" declared twice`},
		{"invalid field name", []*Declaration{New("a", field.Integer("x y"))}, `invalid field name "x y"`},
		{"relational field without target", []*Declaration{New("a", field.Many2one("p", ""))}, `relational field "p" has no target`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.decls...)
			require.Error(t, err)
			assert.True(t, silo.IsDeclaration(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	// An extension naming itself on both sides is accepted.
	r := NewRegistry()
	require.NoError(t, r.Register(New("a"), &Declaration{Name: "a", Extends: "a"}))
}

func TestRegistry_ResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		decls []*Declaration
		msg   string
	}{
		{"unregistered inherits", []*Declaration{New("a").Inherit("ghost")}, `model "a" inherits unregistered model "ghost"`},
		{"unknown many2one target", []*Declaration{New("a", field.Many2one("p", "ghost"))}, `field "p" references unknown model "ghost"`},
		{"abstract many2one target", []*Declaration{New("m").AsAbstract(), New("a", field.Many2one("p", "m"))}, `field "p" references abstract model "m"`},
		{"bad one2many inverse", []*Declaration{New("o"), New("a", field.One2many("lines", "o", "a_id"))}, `"a_id" is not a many2one field of "o"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.Register(tt.decls...))
			err := r.Resolve()
			require.Error(t, err)
			assert.True(t, silo.IsDeclaration(err))
			assert.False(t, silo.IsCycle(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRegistry_Diamond(t *testing.T) {
	tag := func(s string) Method {
		return func(ctx context.Context, self any, next Next, args ...any) (any, error) {
			rest, err := next.Call(ctx, self, args...)
			if err != nil {
				return nil, err
			}
			if rest == nil {
				return s, nil
			}
			return s + ">" + rest.(string), nil
		}
	}
	r := resolved(t,
		New("d", field.Integer("v")).Method("path", tag("d")).AsAbstract(),
		New("b", field.Text("b")).Inherit("d").Method("path", tag("b")).AsAbstract(),
		New("c", field.Float("v")).Inherit("d").Method("path", tag("c")).AsAbstract(),
		New("a").Inherit("b", "c").Method("path", tag("a")),
	)
	a, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "v", "b"}, a.FieldNames())
	v, _ := a.Field("v")
	assert.Equal(t, field.FloatType, v.Descriptor().Info, "the later contributor wins")

	path, ok := a.Method("path")
	require.True(t, ok)
	out, err := path(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "a>c>b>d", out)
	assert.Equal(t, []string{"path"}, a.MethodNames())

	_, ok = a.Method("missing")
	assert.False(t, ok)
}

func TestRegistry_DuplicateContributors(t *testing.T) {
	r := resolved(t,
		New("m", field.Integer("x")).AsAbstract(),
		New("a", field.Text("y")).Inherit("m", "m"),
		Extend("a").Inherit("m"),
	)
	a, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "a"}, a.Lineage(), "only the last occurrence of m is kept")
	assert.Equal(t, []string{"id", "y", "x"}, a.FieldNames())
}

func TestRegistry_ExplicitID(t *testing.T) {
	r := resolved(t,
		New("base", field.String("code"), field.Integer("id")).AsAbstract(),
		New("a", field.Text("name")).Inherit("base"),
		New("b", field.Text("name")),
	)
	a, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "id", "name"}, a.FieldNames(), "a declared id keeps its position")

	b, err := r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, b.FieldNames())
	id, _ := b.Field("id")
	assert.True(t, id.Descriptor().PrimaryKey)
}

func TestRegistry_Tables(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(
		New("named", field.String("name").Size(64).Required()).AsAbstract(),
		New("res_partner").Inherit("named"),
		New("sale_order",
			field.Many2one("partner_id", "res_partner").Required(),
			field.One2many("line_ids", "sale_order_line", "order_id"),
		).Inherit("named"),
		New("sale_order_line", field.Many2one("order_id", "sale_order")),
	))
	_, err := r.Tables()
	require.Error(t, err)
	_, err = r.Get("res_partner")
	require.Error(t, err)
	assert.Nil(t, r.Models())

	require.NoError(t, r.Resolve())
	tables, err := r.Tables()
	require.NoError(t, err)
	require.Len(t, tables, 3)
	assert.Equal(t, "res_partner", tables[0].Name)
	assert.Equal(t, "sale_order", tables[1].Name)

	var cols []string
	for _, c := range tables[1].Columns {
		cols = append(cols, c.String())
	}
	assert.Equal(t, []string{"id INTEGER", "name VARCHAR(64)", "partner_id INTEGER"}, cols, "one2many fields have no column")
	fks := tables[1].ForeignKeys()
	require.Len(t, fks, 1)
	assert.Equal(t, "res_partner", fks[0].RefTable)

	assert.Len(t, r.Models(), 4)

	r.Reset()
	assert.False(t, r.Resolved())
	assert.Equal(t, []string{"named", "res_partner", "sale_order", "sale_order_line"}, r.Names())
	require.NoError(t, r.Resolve())

	r.ResetFull()
	assert.Empty(t, r.Names())
	require.NoError(t, r.Resolve())
	_, err = r.Get("res_partner")
	require.Error(t, err)
}

func TestRegistry_RegisterDropsResolved(t *testing.T) {
	r := resolved(t, New("a"))
	require.True(t, r.Resolved())
	require.NoError(t, r.Register(Extend("a", field.Text("note"))))
	assert.False(t, r.Resolved())
	require.NoError(t, r.Resolve())
	a, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "note"}, a.FieldNames())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	for i := range 10 {
		r.MustRegister(New(fmt.Sprintf("m%d", i), field.Integer("x")))
	}
	require.NoError(t, r.Resolve())
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := r.Get(fmt.Sprintf("m%d", i))
			assert.NoError(t, err)
			assert.Len(t, m.Fields(), 2)
			_, err = r.Tables()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestNext_Call(t *testing.T) {
	var n Next
	out, err := n.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
