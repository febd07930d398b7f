package schema

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/schema/field"
)

// Adapter is the dialect-specific part of the reconciliation engine: it
// inspects the live database and renders column types and constraints.
type Adapter interface {
	// Dialect returns the name of the dialect the adapter serves.
	Dialect() string
	// TableExists reports whether the table exists.
	TableExists(ctx context.Context, cur *sql.Cursor, table string) (bool, error)
	// Tables returns the names of all user tables, sorted by name.
	Tables(ctx context.Context, cur *sql.Cursor) ([]string, error)
	// Columns returns the live columns of the table in definition order.
	// Constraints on live columns are best-effort.
	Columns(ctx context.Context, cur *sql.Cursor, table string) ([]*Column, error)
	// TypeName returns the column type as written in DDL.
	TypeName(t field.TypeInfo) (string, error)
	// AddConstraint adds a constraint to an existing column.
	AddConstraint(ctx context.Context, cur *sql.Cursor, table string, c *Column, x field.Constraint) error
}

// NewAdapter returns the adapter of the given dialect.
func NewAdapter(name string) (Adapter, error) {
	switch name {
	case dialect.SQLite:
		return SQLite{}, nil
	case dialect.Postgres:
		return Postgres{}, nil
	case dialect.MySQL:
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("dialect/sql/schema: unsupported dialect %q", name)
	}
}

// fetchAll runs the query and returns all rows.
func fetchAll(ctx context.Context, cur *sql.Cursor, f *sql.Fragment) ([][]any, error) {
	if err := cur.Query(ctx, f); err != nil {
		return nil, err
	}
	return cur.FetchAll()
}

// exists runs the query and reports whether it returned a row.
func exists(ctx context.Context, cur *sql.Cursor, f *sql.Fragment) (bool, error) {
	rows, err := fetchAll(ctx, cur, f)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// names returns the first column of every row as a string.
func names(rows [][]any) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, asString(r[0]))
	}
	return out
}

func asString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func asInt(v any) (int, bool) {
	switch v := v.(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case int32:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	case string, []byte:
		n, err := strconv.Atoi(strings.TrimSpace(asString(v)))
		return n, err == nil
	default:
		return 0, false
	}
}

func asBool(v any) bool {
	if n, ok := asInt(v); ok {
		return n != 0
	}
	switch strings.ToUpper(asString(v)) {
	case "YES", "TRUE", "T":
		return true
	}
	return false
}

// typeRe matches a declared type with an optional size, e.g. VARCHAR(255).
var typeRe = regexp.MustCompile(`^\s*([a-zA-Z][a-zA-Z ]*?)\s*(?:\(\s*(\d+)\s*(?:,\s*\d+\s*)?\))?\s*$`)

// parseDeclared maps a declared SQL type back to its TypeInfo. Unknown
// types are kept as raw OtherType values.
func parseDeclared(decl string) field.TypeInfo {
	m := typeRe.FindStringSubmatch(decl)
	if m == nil {
		return field.OtherType(decl)
	}
	name := strings.ToUpper(m[1])
	switch name {
	case "INTEGER", "INT", "BIGINT", "SMALLINT":
		return field.IntType
	case "FLOAT", "REAL", "DOUBLE", "DOUBLE PRECISION":
		return field.FloatType
	case "VARCHAR", "CHARACTER VARYING":
		if n, err := strconv.Atoi(m[2]); err == nil {
			return field.StringType(n)
		}
		return field.OtherType(decl)
	case "TEXT":
		return field.TextType
	case "DATE":
		return field.DateType
	case "TIMESTAMP", "DATETIME", "TIMESTAMP WITHOUT TIME ZONE":
		return field.TimeType
	case "BOOLEAN", "BOOL":
		return field.BoolType
	default:
		return field.OtherType(decl)
	}
}

// typeName renders the common DDL spelling of a type.
func typeName(t field.TypeInfo) (string, error) {
	if !t.Type.Valid() {
		return "", fmt.Errorf("dialect/sql/schema: invalid column type %q", t.Type)
	}
	if t.Type == field.TypeString && t.Size <= 0 {
		return "", fmt.Errorf("dialect/sql/schema: invalid VARCHAR size %d", t.Size)
	}
	if t.Type == field.TypeOther && t.Raw == "" {
		return "", fmt.Errorf("dialect/sql/schema: missing raw type")
	}
	return t.String(), nil
}

// addConstraint renders ALTER TABLE ... ADD CONSTRAINT for unique, primary
// and foreign keys.
func addConstraint(table string, c *Column, x field.Constraint) (*sql.Fragment, error) {
	var clause *sql.Fragment
	switch x.Kind {
	case field.Unique:
		clause = sql.MustExpr("UNIQUE ({col})", sql.Args{"col": sql.MustIdent(c.Name)})
	case field.PrimaryKey:
		clause = sql.MustExpr("PRIMARY KEY ({col})", sql.Args{"col": sql.MustIdent(c.Name)})
	case field.ForeignKey:
		ref, err := sql.Ident(x.RefTable)
		if err != nil {
			return nil, err
		}
		refCol, err := sql.Ident(x.RefColumn)
		if err != nil {
			return nil, err
		}
		clause = sql.MustExpr("FOREIGN KEY ({col}) REFERENCES {ref}({ref_col})", sql.Args{
			"col":     sql.MustIdent(c.Name),
			"ref":     ref,
			"ref_col": refCol,
		})
	default:
		return nil, fmt.Errorf("dialect/sql/schema: unexpected constraint %s", x.Kind)
	}
	t, err := sql.Ident(table)
	if err != nil {
		return nil, err
	}
	return sql.Expr("ALTER TABLE {table} ADD CONSTRAINT {name} {clause}", sql.Args{
		"table":  t,
		"name":   sql.MustIdent(constraintName(c.Name, x.Kind)),
		"clause": clause,
	})
}

// alterColumn renders a statement on a single column of a table.
func alterColumn(template, table string, c *Column, args sql.Args) (*sql.Fragment, error) {
	t, err := sql.Ident(table)
	if err != nil {
		return nil, err
	}
	col, err := sql.Ident(c.Name)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = sql.Args{}
	}
	args["table"], args["col"] = t, col
	return sql.Expr(template, args)
}

// SQLite is the adapter of SQLite databases. SQLite cannot add constraints
// to existing columns, so AddConstraint is a no-op there.
type SQLite struct{}

// Dialect implements Adapter.
func (SQLite) Dialect() string { return dialect.SQLite }

// TableExists implements Adapter.
func (SQLite) TableExists(ctx context.Context, cur *sql.Cursor, table string) (bool, error) {
	return exists(ctx, cur, sql.MustExpr(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = {name}",
		sql.Args{"name": table},
	))
}

// Tables implements Adapter.
func (SQLite) Tables(ctx context.Context, cur *sql.Cursor) ([]string, error) {
	rows, err := fetchAll(ctx, cur, sql.Raw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
	))
	if err != nil {
		return nil, err
	}
	return names(rows), nil
}

// Columns implements Adapter.
func (SQLite) Columns(ctx context.Context, cur *sql.Cursor, table string) ([]*Column, error) {
	rows, err := fetchAll(ctx, cur, sql.MustExpr(
		`SELECT name, type, "notnull", pk FROM pragma_table_info({name}) ORDER BY cid`,
		sql.Args{"name": table},
	))
	if err != nil {
		return nil, err
	}
	columns := make([]*Column, 0, len(rows))
	for _, r := range rows {
		c := &Column{Name: asString(r[0]), Type: parseDeclared(asString(r[1]))}
		if asBool(r[2]) {
			c.Constraints = append(c.Constraints, field.Constraint{Kind: field.NotNull})
		}
		if asBool(r[3]) {
			c.Constraints = append(c.Constraints, field.Constraint{Kind: field.PrimaryKey})
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// TypeName implements Adapter.
func (SQLite) TypeName(t field.TypeInfo) (string, error) {
	return typeName(t)
}

// AddConstraint implements Adapter.
func (SQLite) AddConstraint(context.Context, *sql.Cursor, string, *Column, field.Constraint) error {
	return nil
}

// Postgres is the adapter of PostgreSQL databases. Tables are looked up in
// the current schema.
type Postgres struct{}

// Dialect implements Adapter.
func (Postgres) Dialect() string { return dialect.Postgres }

// TableExists implements Adapter.
func (Postgres) TableExists(ctx context.Context, cur *sql.Cursor, table string) (bool, error) {
	return exists(ctx, cur, sql.MustExpr(
		"SELECT tablename FROM pg_tables WHERE schemaname = current_schema() AND tablename = {name}",
		sql.Args{"name": table},
	))
}

// Tables implements Adapter.
func (Postgres) Tables(ctx context.Context, cur *sql.Cursor) ([]string, error) {
	rows, err := fetchAll(ctx, cur, sql.Raw(
		"SELECT tablename FROM pg_tables WHERE schemaname = current_schema() ORDER BY tablename",
	))
	if err != nil {
		return nil, err
	}
	return names(rows), nil
}

// Columns implements Adapter.
func (Postgres) Columns(ctx context.Context, cur *sql.Cursor, table string) ([]*Column, error) {
	rows, err := fetchAll(ctx, cur, sql.MustExpr(
		"SELECT column_name, data_type, character_maximum_length, is_nullable FROM information_schema.columns "+
			"WHERE table_schema = current_schema() AND table_name = {name} ORDER BY ordinal_position",
		sql.Args{"name": table},
	))
	if err != nil {
		return nil, err
	}
	columns := make([]*Column, 0, len(rows))
	for _, r := range rows {
		decl := asString(r[1])
		if n, ok := asInt(r[2]); ok && strings.EqualFold(decl, "character varying") {
			decl = fmt.Sprintf("%s(%d)", decl, n)
		}
		c := &Column{Name: asString(r[0]), Type: parseDeclared(decl)}
		if !asBool(r[3]) {
			c.Constraints = append(c.Constraints, field.Constraint{Kind: field.NotNull})
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// TypeName implements Adapter.
func (Postgres) TypeName(t field.TypeInfo) (string, error) {
	if t.Type == field.TypeFloat {
		return "DOUBLE PRECISION", nil
	}
	return typeName(t)
}

// AddConstraint implements Adapter.
func (Postgres) AddConstraint(ctx context.Context, cur *sql.Cursor, table string, c *Column, x field.Constraint) error {
	var (
		stmt *sql.Fragment
		err  error
	)
	if x.Kind == field.NotNull {
		stmt, err = alterColumn("ALTER TABLE {table} ALTER COLUMN {col} SET NOT NULL", table, c, nil)
	} else {
		stmt, err = addConstraint(table, c, x)
	}
	if err != nil {
		return err
	}
	_, err = cur.Exec(ctx, stmt)
	return err
}

// MySQL is the adapter of MySQL databases. Tables are looked up in the
// database of the connection.
type MySQL struct{}

// Dialect implements Adapter.
func (MySQL) Dialect() string { return dialect.MySQL }

// TableExists implements Adapter.
func (MySQL) TableExists(ctx context.Context, cur *sql.Cursor, table string) (bool, error) {
	return exists(ctx, cur, sql.MustExpr(
		"SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = {name}",
		sql.Args{"name": table},
	))
}

// Tables implements Adapter.
func (MySQL) Tables(ctx context.Context, cur *sql.Cursor) ([]string, error) {
	rows, err := fetchAll(ctx, cur, sql.Raw(
		"SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME",
	))
	if err != nil {
		return nil, err
	}
	return names(rows), nil
}

// Columns implements Adapter.
func (MySQL) Columns(ctx context.Context, cur *sql.Cursor, table string) ([]*Column, error) {
	rows, err := fetchAll(ctx, cur, sql.MustExpr(
		"SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY FROM information_schema.COLUMNS "+
			"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = {name} ORDER BY ORDINAL_POSITION",
		sql.Args{"name": table},
	))
	if err != nil {
		return nil, err
	}
	columns := make([]*Column, 0, len(rows))
	for _, r := range rows {
		c := &Column{Name: asString(r[0]), Type: mysqlType(asString(r[1]))}
		if !asBool(r[2]) {
			c.Constraints = append(c.Constraints, field.Constraint{Kind: field.NotNull})
		}
		switch asString(r[3]) {
		case "PRI":
			c.Constraints = append(c.Constraints, field.Constraint{Kind: field.PrimaryKey})
		case "UNI":
			c.Constraints = append(c.Constraints, field.Constraint{Kind: field.Unique})
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// mysqlType maps a MySQL COLUMN_TYPE to its TypeInfo.
func mysqlType(decl string) field.TypeInfo {
	switch d := strings.ToLower(decl); {
	case d == "tinyint(1)":
		return field.BoolType
	case strings.HasPrefix(d, "int"):
		return field.IntType
	case d == "double", d == "float":
		return field.FloatType
	}
	return parseDeclared(decl)
}

// TypeName implements Adapter.
func (MySQL) TypeName(t field.TypeInfo) (string, error) {
	switch t.Type {
	case field.TypeFloat:
		return "DOUBLE", nil
	case field.TypeTime:
		return "DATETIME", nil
	}
	return typeName(t)
}

// AddConstraint implements Adapter.
func (a MySQL) AddConstraint(ctx context.Context, cur *sql.Cursor, table string, c *Column, x field.Constraint) error {
	var (
		stmt *sql.Fragment
		err  error
	)
	if x.Kind == field.NotNull {
		var typ string
		if typ, err = a.TypeName(c.Type); err != nil {
			return err
		}
		stmt, err = alterColumn("ALTER TABLE {table} MODIFY COLUMN {col} {type} NOT NULL", table, c, sql.Args{
			"type": sql.Raw(typ),
		})
	} else {
		stmt, err = addConstraint(table, c, x)
	}
	if err != nil {
		return err
	}
	_, err = cur.Exec(ctx, stmt)
	return err
}

