// Package sql provides the SQL fragment builder and the database driver
// used by every other component of the engine.
//
// # Fragments
//
// A Fragment is an immutable piece of SQL text. Fragments are built from a
// template with named placeholders and a map of values; every value goes
// through a single typed escaping path:
//
//	f, err := sql.Expr("SELECT * FROM {table} WHERE {col} = {val}", sql.Args{
//	    "table": sql.MustIdent("sale_order"),
//	    "col":   sql.MustIdent("name"),
//	    "val":   "it's",
//	})
//	f.Render(dialect.Postgres) // SELECT * FROM "sale_order" WHERE "name" = 'it''s'
//
// Identifiers enter SQL only through Ident, which validates the name
// against ^[a-zA-Z_][a-zA-Z0-9_@#]*$ and quotes it for the target dialect.
// Nested fragments are inlined verbatim and never re-escaped.
//
// # Values
//
// The following Go values are accepted by Expr and Value:
//
//   - string: quote-escaped literal (backslashes are doubled on MySQL)
//   - signed/unsigned integers, float32/float64: numeric literal
//   - bool: TRUE / FALSE
//   - time.Time: timestamp literal
//   - nil: NULL
//   - driver.Valuer: the result of Value() (e.g. field.Date)
//   - *Fragment: inlined as-is
//
// Any other type is rejected at construction time.
//
// # Cursor
//
// A Cursor executes fragments over a dialect.Driver inside a lazily started
// transaction and exposes FetchAll / FetchOne / Commit / Rollback:
//
//	cur := sql.NewCursor(drv)
//	defer cur.Close()
//	if err := cur.Query(ctx, f); err != nil {
//	    return err
//	}
//	rows, err := cur.FetchAll()
//
// # Drivers
//
// Driver wraps database/sql. StatsDriver, DebugDriver and MetricsDriver
// decorate it with query statistics, statement logging and Prometheus
// metrics respectively.
package sql
