package model

import (
	"path/filepath"
	"testing"

	"github.com/syssam/silo/schema/field"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDir(t *testing.T) {
	decls, err := LoadDir(filepath.Join("testdata", "models"))
	require.NoError(t, err)
	// base.yaml sorts before sale/, line.cue before order.json.
	var names []string
	for _, d := range decls {
		names = append(names, d.model())
	}
	assert.Equal(t, []string{"named", "res_partner", "sale_order_line", "res_partner", "sale_order"}, names)

	r := resolved(t, decls...)
	partner, err := r.Get("res_partner")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email", "active", "ref"}, partner.FieldNames())
	email, _ := partner.Field("email")
	assert.True(t, email.Descriptor().Unique)
	assert.Equal(t, field.StringType(128), email.Descriptor().Info)

	order, err := r.Get("sale_order")
	require.NoError(t, err)
	state, _ := order.Field("state")
	assert.Equal(t, []string{"draft", "sale", "done"}, state.Descriptor().Options)
	line, _ := order.Field("line_ids")
	assert.True(t, line.Descriptor().Virtual)

	tables, err := r.Tables()
	require.NoError(t, err)
	assert.Len(t, tables, 3)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "bad_kind.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "x" has unknown kind "money"`)

	_, err = LoadFile(filepath.Join("testdata", "unknown_key.yaml"))
	require.Error(t, err)

	_, err = LoadFile(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)

	_, err = Parse(".toml", nil)
	require.Error(t, err)
}

func TestFieldSpec(t *testing.T) {
	tests := []struct {
		spec FieldSpec
		kind string
		info field.TypeInfo
		err  bool
	}{
		{FieldSpec{Name: "a"}, field.KindString, field.StringType(field.DefaultStringSize), false},
		{FieldSpec{Name: "a", Kind: "integer", Required: true}, field.KindInteger, field.IntType, false},
		{FieldSpec{Name: "id", Kind: "id"}, field.KindID, field.IntType, false},
		{FieldSpec{Name: "a", Kind: "selection"}, "", field.TypeInfo{}, true},
		{FieldSpec{Name: "a", Kind: "many2one"}, "", field.TypeInfo{}, true},
		{FieldSpec{Name: "a", Kind: "one2many", Target: "b"}, "", field.TypeInfo{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec.Name+"/"+tt.spec.Kind, func(t *testing.T) {
			f, err := tt.spec.Field()
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, f.Descriptor().Kind)
			assert.Equal(t, tt.info, f.Descriptor().Info)
			assert.Equal(t, tt.spec.Required, f.Descriptor().Required)
		})
	}
}

func TestLoad(t *testing.T) {
	decls, err := Load(filepath.Join("testdata", "models", "base.yaml"), filepath.Join("testdata", "models", "sale"))
	require.NoError(t, err)
	assert.Len(t, decls, 5)

	_, err = Load(filepath.Join("testdata", "nope"))
	require.Error(t, err)
}
