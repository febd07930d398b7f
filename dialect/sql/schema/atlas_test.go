package schema

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqltool"

	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/schema/field"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtlas_Plan(t *testing.T) {
	ctx := context.Background()
	drv := openSQLite(t)
	a, err := NewAtlas(drv.DB(), dialect.SQLite)
	require.NoError(t, err)

	_, err = a.Plan(ctx, "empty", nil)
	require.ErrorIs(t, err, migrate.ErrNoPlan)

	plan, err := a.Plan(ctx, "init", []*Table{orderTable(), partnerTable()})
	require.NoError(t, err)
	require.NotEmpty(t, plan.Changes)
	var cmds []string
	for _, c := range plan.Changes {
		cmds = append(cmds, c.Cmd)
	}
	all := strings.Join(cmds, "\n")
	assert.Contains(t, all, "CREATE TABLE `res_partner`")
	assert.Contains(t, all, "CREATE TABLE `sale_order`")
}

func TestAtlas_WriteMigration(t *testing.T) {
	ctx := context.Background()
	p := t.TempDir()
	dir, err := migrate.NewLocalDir(p)
	require.NoError(t, err)

	a, err := NewAtlas(openSQLite(t).DB(), dialect.SQLite, WithFormatter(sqltool.GooseFormatter))
	require.NoError(t, err)
	require.NoError(t, a.WriteMigration(ctx, dir, "init", []*Table{partnerTable()}))
	require.FileExists(t, filepath.Join(p, migrate.HashFileName))

	files, err := dir.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Name(), "_init.sql"), files[0].Name())
	assert.Contains(t, string(files[0].Bytes()), "-- +goose Up")
	assert.Contains(t, string(files[0].Bytes()), "CREATE TABLE")
}

func TestAtlas_StateOf(t *testing.T) {
	a := &Atlas{dialect: dialect.Postgres}
	s, err := a.StateOf("public", []*Table{partnerTable(), orderTable(), NewTable("dangling",
		NewColumn("id", field.IntType, pk),
		NewColumn("country_id", field.IntType, field.Constraint{Kind: field.ForeignKey, RefTable: "res_country", RefColumn: "id"}),
	)})
	require.NoError(t, err)
	require.Len(t, s.Tables, 3)

	order, ok := s.Table("sale_order")
	require.True(t, ok)
	require.NotNil(t, order.PrimaryKey)
	require.Len(t, order.ForeignKeys, 1)
	assert.Equal(t, "res_partner", order.ForeignKeys[0].RefTable.Name)
	require.Len(t, order.Indexes, 1)
	assert.True(t, order.Indexes[0].Unique)

	name, ok := order.Column("name")
	require.True(t, ok)
	assert.False(t, name.Type.Null)
	assert.Equal(t, &schema.StringType{T: "character varying", Size: 64}, name.Type.Type)

	dangling, ok := s.Table("dangling")
	require.True(t, ok)
	assert.Empty(t, dangling.ForeignKeys, "references to undeclared tables are left out")

	_, err = a.StateOf("public", []*Table{NewTable("t", NewColumn("c", field.TypeInfo{}))})
	require.Error(t, err)

	for _, name := range []string{dialect.MySQL, dialect.SQLite} {
		a := &Atlas{dialect: name}
		for _, ti := range []field.TypeInfo{field.IntType, field.FloatType, field.StringType(3), field.TextType, field.DateType, field.TimeType, field.BoolType, field.OtherType("json")} {
			typ, err := a.columnType(ti)
			require.NoError(t, err)
			assert.NotNil(t, typ)
		}
	}
	_, err = NewAtlas(nil, "oracle")
	require.Error(t, err)
}
