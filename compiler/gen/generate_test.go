package gen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/silo/model"
	"github.com/syssam/silo/schema/field"
)

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	require.NoError(t, reg.Register(
		model.New("named", field.String("name")).AsAbstract(),
		model.New("res_partner",
			field.One2many("order_ids", "sale_order", "partner_id"),
		).Inherit("named"),
		model.New("sale_order",
			field.String("name").Required(),
			field.Selection("state", "draft", "done"),
			field.Date("date_order"),
			field.Float("amount"),
			field.Boolean("confirmed"),
			field.Many2one("partner_id", "res_partner"),
			field.Datetime("created_at"),
		),
	))
	require.NoError(t, reg.Resolve())
	return reg
}

func TestNewGraph(t *testing.T) {
	g, err := NewGraph(testRegistry(t), WithTarget(t.TempDir()))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "res_partner", g.Nodes[0].Name)
	assert.Equal(t, "respartner", g.Nodes[0].Package)
	assert.Equal(t, "saleorder", g.Nodes[1].Package)
	assert.Equal(t, DefaultHeader, g.Header)

	_, err = NewGraph(testRegistry(t))
	require.ErrorIs(t, err, ErrMissingConfig)
	_, err = NewGraph(testRegistry(t), WithTarget(""))
	require.ErrorIs(t, err, ErrMissingConfig)
	_, err = NewGraph(testRegistry(t), WithTarget("x"), WithWorkers(0))
	require.ErrorIs(t, err, ErrMissingConfig)

	reg := model.NewRegistry()
	reg.MustRegister(model.New("a"))
	_, err = NewGraph(reg, WithTarget("x"))
	require.Error(t, err)

	reg.MustRegister(model.New("sale_order"), model.New("saleorder"))
	require.NoError(t, reg.Resolve())
	_, err = NewGraph(reg, WithTarget("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `same package "saleorder"`)
}

func TestGenerator_Golden(t *testing.T) {
	g, err := NewGraph(testRegistry(t), WithTarget(t.TempDir()))
	require.NoError(t, err)
	gold := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, n := range g.Nodes {
		files, err := NewGenerator(g).Render(n)
		require.NoError(t, err)
		require.Len(t, files, 2)
		for _, f := range files {
			gold.Assert(t, filepath.ToSlash(f.Path), f.Content)
		}
	}
}

func TestGenerator_Generate(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGraph(testRegistry(t), WithTarget(dir), WithWorkers(1), WithHeader(""))
	require.NoError(t, err)
	require.NoError(t, NewGenerator(g).Generate(context.Background()))
	for _, path := range []string{"saleorder/saleorder.go", "saleorder/where.go", "respartner/respartner.go", "respartner/where.go"} {
		data, err := os.ReadFile(filepath.Join(dir, path))
		require.NoError(t, err, path)
		assert.NotContains(t, string(data), "DO NOT EDIT", path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NewGenerator(g).Generate(ctx), context.Canceled)
}

func TestGenerator_Conflicts(t *testing.T) {
	reg := model.NewRegistry()
	reg.MustRegister(model.New("res_partner",
		field.Selection("kind", "values"),
	))
	require.NoError(t, reg.Resolve())
	g, err := NewGraph(reg, WithTarget(t.TempDir()))
	require.NoError(t, err)
	_, err = NewGenerator(g).Render(g.Nodes[0])
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "KindValues")
}

func TestPascal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"name", "Name"},
		{"partner_id", "PartnerID"},
		{"date_order", "DateOrder"},
		{"html_url", "HTMLURL"},
		{"helloWorld", "HelloWorld"},
		{"", "X"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, pascal(tt.in))
		})
	}
	AddAcronym("silo")
	assert.Equal(t, "SILOName", pascal("silo_name"))
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "saleorder", packageName("sale_order"))
	assert.Equal(t, "respartner", packageName("Res_Partner"))
	assert.Equal(t, "typemodel", packageName("type"))
	assert.Equal(t, "model", packageName("__"))
}

func TestErrors(t *testing.T) {
	err := NewConfigError("Target", "x", "bad")
	assert.Equal(t, `gen: config error for "Target" (value: x): bad`, err.Error())
	assert.ErrorIs(t, err, ErrMissingConfig)
	gerr := &GenerationError{Model: "sale_order", File: "saleorder/where.go", Cause: os.ErrPermission}
	assert.Equal(t, "gen: generation error for model sale_order (file: saleorder/where.go): permission denied", gerr.Error())
	assert.ErrorIs(t, gerr, ErrGenerationFailed)
	assert.ErrorIs(t, gerr, os.ErrPermission)
}
