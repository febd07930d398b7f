package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/silo"
	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/schema/field"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Policy selects what the engine does when the declared and the live
// schema disagree.
type Policy uint8

// List of reconciliation policies.
const (
	// CheckOnly never changes the database and fails on any mismatch.
	CheckOnly Policy = iota
	// Enforce creates missing tables and drops, adds and constrains
	// columns until the table matches its declaration.
	Enforce
	// Safe applies the schema only if every change adds a table.
	Safe
	// Ignore skips reconciliation altogether.
	Ignore
)

var policyNames = [...]string{
	CheckOnly: "check_only",
	Enforce:   "enforce",
	Safe:      "safe",
	Ignore:    "ignore",
}

// String returns the configuration name of the policy.
func (p Policy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("Policy(%d)", p)
}

// ParsePolicy parses a policy name. Matching ignores case and the
// separators in names like "check_only", "checkOnly" or "check-only".
func ParsePolicy(s string) (Policy, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(cases.Fold().String(strings.TrimSpace(s)))
	for p, name := range policyNames {
		if strings.ReplaceAll(name, "_", "") == norm {
			return Policy(p), nil
		}
	}
	return 0, fmt.Errorf("dialect/sql/schema: unknown policy %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Migrate reconciles declared tables with a live database.
type Migrate struct {
	drv     dialect.Driver
	adapter Adapter
	logger  *slog.Logger
}

// MigrateOption allows configuring Migrate using functional arguments.
type MigrateOption func(*Migrate)

// WithLogger sets the logger of the engine. Defaults to slog.Default().
func WithLogger(l *slog.Logger) MigrateOption {
	return func(m *Migrate) {
		m.logger = l
	}
}

// WithAdapter overrides the adapter selected from the driver dialect.
func WithAdapter(a Adapter) MigrateOption {
	return func(m *Migrate) {
		m.adapter = a
	}
}

// NewMigrate creates a new engine over the driver.
func NewMigrate(drv dialect.Driver, opts ...MigrateOption) (*Migrate, error) {
	m := &Migrate{drv: drv}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.adapter == nil {
		a, err := NewAdapter(drv.Dialect())
		if err != nil {
			return nil, err
		}
		m.adapter = a
	}
	return m, nil
}

// Adapter returns the dialect adapter of the engine.
func (m *Migrate) Adapter() Adapter {
	return m.adapter
}

// EnsureTable reconciles a single table under the given policy and
// commits on success. Under Safe, only this table is compared.
func (m *Migrate) EnsureTable(ctx context.Context, t *Table, policy Policy) error {
	return m.ensure(ctx, t, policy, m.logger.With("policy", policy.String()))
}

func (m *Migrate) ensure(ctx context.Context, t *Table, policy Policy, logger *slog.Logger) error {
	if err := validate(t); err != nil {
		return err
	}
	logger = logger.With("table", t.Name)
	if policy == Ignore {
		logger.Debug("reconciliation skipped")
		return nil
	}
	cur := sql.NewCursor(m.drv)
	defer cur.Close()
	if policy == Safe {
		live, err := m.inspectTable(ctx, cur, t.Name)
		if err != nil {
			return silo.NewBackendError("ensure_table", t.Name, err)
		}
		if err := m.applySafe(ctx, cur, []*Table{t}, DiffTable(live, t), logger); err != nil {
			return err
		}
	} else if err := m.ensureTable(ctx, cur, t, policy, logger); err != nil {
		return err
	}
	if err := cur.Commit(); err != nil {
		return silo.NewBackendError("ensure_table", t.Name, err)
	}
	return nil
}

// Apply reconciles all tables under the given policy. Tables are handled
// in foreign key dependency order and committed one by one. Under
// CheckOnly every table is checked and the policy errors are aggregated.
func (m *Migrate) Apply(ctx context.Context, tables []*Table, policy Policy) error {
	if err := ValidateSchema(tables).Err(); err != nil {
		return silo.NewDeclarationError("migrate", err.Error())
	}
	logger := m.logger.With("run_id", uuid.NewString(), "policy", policy.String())
	switch policy {
	case Ignore:
		logger.Info("reconciliation skipped", "tables", len(tables))
		return nil
	case Safe:
		cur := sql.NewCursor(m.drv)
		defer cur.Close()
		changes, err := m.diff(ctx, cur, tables)
		if err != nil {
			return silo.NewBackendError("migrate", "", err)
		}
		if err := m.applySafe(ctx, cur, tables, changes, logger); err != nil {
			return err
		}
		if err := cur.Commit(); err != nil {
			return silo.NewBackendError("migrate", "", err)
		}
		return nil
	}
	var errs []error
	for _, t := range dependencyOrder(tables) {
		err := m.ensure(ctx, t, policy, logger)
		switch {
		case err == nil:
		case policy == CheckOnly && silo.IsPolicy(err):
			errs = append(errs, err)
		default:
			return err
		}
	}
	if err := silo.NewAggregateError(errs...); err != nil {
		return err
	}
	logger.Info("schema reconciled", "tables", len(tables))
	return nil
}

// applySafe creates the added tables if the changes hold nothing else.
func (m *Migrate) applySafe(ctx context.Context, cur *sql.Cursor, tables []*Table, changes Changes, logger *slog.Logger) error {
	if len(changes) == 0 {
		logger.Debug("schema is up to date")
		return nil
	}
	if changes.Kinds() != AddTable {
		return silo.NewDiffPolicyError(`the database schema differs and policy "safe" only allows adding tables`, changes.Strings())
	}
	added := make(map[string]bool, len(changes))
	for _, c := range changes {
		added[c.Table] = true
	}
	for _, t := range dependencyOrder(tables) {
		if !added[t.Name] {
			continue
		}
		if err := m.createTable(ctx, cur, t); err != nil {
			return silo.NewBackendError("migrate", t.Name, err)
		}
		logger.Info("table created", "table", t.Name)
	}
	return nil
}

// ensureTable runs the CheckOnly and Enforce algorithm on a single table.
func (m *Migrate) ensureTable(ctx context.Context, cur *sql.Cursor, t *Table, policy Policy, logger *slog.Logger) error {
	exists, err := m.adapter.TableExists(ctx, cur, t.Name)
	if err != nil {
		return silo.NewBackendError("ensure_table", t.Name, err)
	}
	if !exists {
		if policy == CheckOnly {
			return silo.NewPolicyError(t.Name, "table does not exist, would need to create columns", describe(t.Columns))
		}
		if err := m.createTable(ctx, cur, t); err != nil {
			return silo.NewBackendError("ensure_table", t.Name, err)
		}
		logger.Info("table created", "columns", len(t.Columns))
		return nil
	}
	live, err := m.adapter.Columns(ctx, cur, t.Name)
	if err != nil {
		return silo.NewBackendError("ensure_table", t.Name, err)
	}
	toAdd, toRemove := diffColumns(live, t.Columns)
	if policy == CheckOnly {
		if len(toRemove) > 0 {
			return silo.NewPolicyError(t.Name, "would need to remove columns", describe(toRemove))
		}
		if len(toAdd) > 0 {
			return silo.NewPolicyError(t.Name, "would need to add columns", describe(toAdd))
		}
		logger.Debug("table is up to date")
		return nil
	}
	for _, c := range toRemove {
		if err := m.dropColumn(ctx, cur, t.Name, c); err != nil {
			return silo.NewBackendError("ensure_table", t.Name, err)
		}
		logger.Info("column dropped", "column", c.Name, "type", c.Type.String())
	}
	for _, c := range toAdd {
		if err := m.addColumn(ctx, cur, t.Name, c); err != nil {
			return silo.NewBackendError("ensure_table", t.Name, err)
		}
		logger.Info("column added", "column", c.Name, "type", c.Type.String())
	}
	for _, c := range toAdd {
		for _, x := range c.Constraints {
			if err := m.adapter.AddConstraint(ctx, cur, t.Name, c, x); err != nil {
				return silo.NewBackendError("ensure_table", t.Name, err)
			}
		}
	}
	return nil
}

// CreateTableStmt returns the CREATE TABLE statement of the table: typed
// columns with inline NOT NULL, followed by the primary key, foreign key
// and unique clauses.
func (m *Migrate) CreateTableStmt(t *Table) (*sql.Fragment, error) {
	name, err := sql.Ident(t.Name)
	if err != nil {
		return nil, err
	}
	defs := make([]*sql.Fragment, 0, len(t.Columns)+2)
	for _, c := range t.Columns {
		def, err := m.columnDef(c, true)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if pk := t.PrimaryKey(); len(pk) > 0 {
		cols := make([]string, len(pk))
		for i, c := range pk {
			cols[i] = c.Name
		}
		idents, err := sql.Idents(cols...)
		if err != nil {
			return nil, err
		}
		defs = append(defs, sql.MustExpr("PRIMARY KEY ({cols})", sql.Args{"cols": idents}))
	}
	for _, fk := range t.ForeignKeys() {
		def, err := foreignKeyDef(fk)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	for _, c := range t.Columns {
		if c.Has(field.Unique) {
			defs = append(defs, sql.MustExpr("UNIQUE ({col})", sql.Args{"col": sql.MustIdent(c.Name)}))
		}
	}
	return sql.Expr("CREATE TABLE {table} ({defs})", sql.Args{
		"table": name,
		"defs":  sql.Join(", ", defs...),
	})
}

func (m *Migrate) createTable(ctx context.Context, cur *sql.Cursor, t *Table) error {
	stmt, err := m.CreateTableStmt(t)
	if err != nil {
		return err
	}
	_, err = cur.Exec(ctx, stmt)
	return err
}

func (m *Migrate) dropColumn(ctx context.Context, cur *sql.Cursor, table string, c *Column) error {
	stmt, err := alterColumn("ALTER TABLE {table} DROP COLUMN {col}", table, c, nil)
	if err != nil {
		return err
	}
	_, err = cur.Exec(ctx, stmt)
	return err
}

// addColumn adds the column without constraints; they are applied
// separately through the adapter.
func (m *Migrate) addColumn(ctx context.Context, cur *sql.Cursor, table string, c *Column) error {
	def, err := m.columnDef(c, false)
	if err != nil {
		return err
	}
	t, err := sql.Ident(table)
	if err != nil {
		return err
	}
	_, err = cur.Exec(ctx, sql.MustExpr("ALTER TABLE {table} ADD COLUMN {def}", sql.Args{"table": t, "def": def}))
	return err
}

// columnDef renders `"name" TYPE`, with NOT NULL if inline is set.
func (m *Migrate) columnDef(c *Column, inline bool) (*sql.Fragment, error) {
	name, err := sql.Ident(c.Name)
	if err != nil {
		return nil, err
	}
	typ, err := m.adapter.TypeName(c.Type)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", c.Name, err)
	}
	def := sql.Join(" ", name, sql.Raw(typ))
	if inline && c.Has(field.NotNull) {
		def = def.Append(sql.Raw(" NOT NULL"))
	}
	return def, nil
}

func foreignKeyDef(fk ForeignKey) (*sql.Fragment, error) {
	col, err := sql.Ident(fk.Column)
	if err != nil {
		return nil, err
	}
	ref, err := sql.Ident(fk.RefTable)
	if err != nil {
		return nil, err
	}
	refCol, err := sql.Ident(fk.RefColumn)
	if err != nil {
		return nil, err
	}
	return sql.MustExpr("FOREIGN KEY ({col}) REFERENCES {ref}({ref_col})", sql.Args{
		"col":     col,
		"ref":     ref,
		"ref_col": refCol,
	}), nil
}

// Inspect returns the live tables of the database, sorted by name.
func (m *Migrate) Inspect(ctx context.Context) ([]*Table, error) {
	cur := sql.NewCursor(m.drv)
	defer cur.Close()
	return m.inspect(ctx, cur)
}

func (m *Migrate) inspect(ctx context.Context, cur *sql.Cursor) ([]*Table, error) {
	names, err := m.adapter.Tables(ctx, cur)
	if err != nil {
		return nil, err
	}
	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		columns, err := m.adapter.Columns(ctx, cur, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, NewTable(name, columns...))
	}
	return tables, nil
}

// inspectTable returns the live table, or nil if it does not exist.
func (m *Migrate) inspectTable(ctx context.Context, cur *sql.Cursor, name string) (*Table, error) {
	ok, err := m.adapter.TableExists(ctx, cur, name)
	if err != nil || !ok {
		return nil, err
	}
	columns, err := m.adapter.Columns(ctx, cur, name)
	if err != nil {
		return nil, err
	}
	return NewTable(name, columns...), nil
}

// Diff returns the structural changes between the live database and the
// declared tables. Live tables that are not declared are reported as
// dropped.
func (m *Migrate) Diff(ctx context.Context, tables []*Table) (Changes, error) {
	cur := sql.NewCursor(m.drv)
	defer cur.Close()
	return m.diff(ctx, cur, tables)
}

func (m *Migrate) diff(ctx context.Context, cur *sql.Cursor, tables []*Table) (Changes, error) {
	live, err := m.inspect(ctx, cur)
	if err != nil {
		return nil, err
	}
	return DiffTables(live, tables), nil
}

func validate(t *Table) error {
	if err := ValidateTable(t).Err(); err != nil {
		e := silo.NewDeclarationError("ensure_table", err.Error())
		e.Table = t.Name
		return e
	}
	return nil
}
