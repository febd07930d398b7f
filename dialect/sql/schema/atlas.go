package schema

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/schema/field"
)

// Atlas plans versioned migrations of the declared tables using the Atlas
// engine. Where Migrate applies changes in place, Atlas writes them as
// migration files for review.
type Atlas struct {
	drv     migrate.Driver
	dialect string
	fmt     migrate.Formatter
}

// AtlasOption allows configuring Atlas using functional arguments.
type AtlasOption func(*Atlas)

// WithFormatter sets the formatter of written migration files.
func WithFormatter(f migrate.Formatter) AtlasOption {
	return func(a *Atlas) {
		a.fmt = f
	}
}

// NewAtlas opens an Atlas driver on the database.
func NewAtlas(db *stdsql.DB, name string, opts ...AtlasOption) (*Atlas, error) {
	a := &Atlas{dialect: name}
	for _, opt := range opts {
		opt(a)
	}
	var err error
	switch name {
	case dialect.SQLite:
		a.drv, err = sqlite.Open(db)
	case dialect.Postgres:
		a.drv, err = postgres.Open(db)
	case dialect.MySQL:
		a.drv, err = mysql.Open(db)
	default:
		return nil, fmt.Errorf("dialect/sql/schema: unsupported dialect %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: open atlas driver: %w", err)
	}
	return a, nil
}

// Inspect returns the live schema of the connection.
func (a *Atlas) Inspect(ctx context.Context) (*schema.Schema, error) {
	return a.drv.InspectSchema(ctx, "", nil)
}

// StateOf returns the Atlas form of the declared tables in the named
// schema. Foreign keys to undeclared tables are left out.
func (a *Atlas) StateOf(name string, tables []*Table) (*schema.Schema, error) {
	s := schema.New(name)
	byName := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		at := schema.NewTable(t.Name)
		var pk []*schema.Column
		for _, c := range t.Columns {
			typ, err := a.columnType(c.Type)
			if err != nil {
				return nil, fmt.Errorf("dialect/sql/schema: column %s.%s: %w", t.Name, c.Name, err)
			}
			col := schema.NewColumn(c.Name).SetType(typ).SetNull(!c.Has(field.NotNull))
			at.AddColumns(col)
			if c.Has(field.PrimaryKey) {
				pk = append(pk, col)
			}
			if c.Has(field.Unique) {
				at.AddIndexes(schema.NewUniqueIndex(constraintName(c.Name, field.Unique)).AddColumns(col))
			}
		}
		if len(pk) > 0 {
			at.SetPrimaryKey(schema.NewPrimaryKey(pk...))
		}
		s.AddTables(at)
		byName[t.Name] = at
	}
	for _, t := range tables {
		at := byName[t.Name]
		for _, fk := range t.ForeignKeys() {
			ref, ok := byName[fk.RefTable]
			if !ok {
				continue
			}
			col, ok1 := at.Column(fk.Column)
			refCol, ok2 := ref.Column(fk.RefColumn)
			if !ok1 || !ok2 {
				continue
			}
			at.AddForeignKeys(schema.NewForeignKey(constraintName(fk.Column, field.ForeignKey)).
				AddColumns(col).
				SetRefTable(ref).
				AddRefColumns(refCol))
		}
	}
	return s, nil
}

// columnType maps a logical type to the Atlas type of the dialect.
func (a *Atlas) columnType(t field.TypeInfo) (schema.Type, error) {
	switch t.Type {
	case field.TypeInt:
		if a.dialect == dialect.MySQL {
			return &schema.IntegerType{T: "int"}, nil
		}
		return &schema.IntegerType{T: "integer"}, nil
	case field.TypeFloat:
		switch a.dialect {
		case dialect.Postgres:
			return &schema.FloatType{T: "double precision"}, nil
		case dialect.MySQL:
			return &schema.FloatType{T: "double"}, nil
		}
		return &schema.FloatType{T: "float"}, nil
	case field.TypeString:
		if a.dialect == dialect.Postgres {
			return &schema.StringType{T: "character varying", Size: t.Size}, nil
		}
		return &schema.StringType{T: "varchar", Size: t.Size}, nil
	case field.TypeText:
		return &schema.StringType{T: "text"}, nil
	case field.TypeDate:
		return &schema.TimeType{T: "date"}, nil
	case field.TypeTime:
		switch a.dialect {
		case dialect.Postgres:
			return &schema.TimeType{T: "timestamp without time zone"}, nil
		case dialect.MySQL:
			return &schema.TimeType{T: "datetime"}, nil
		}
		return &schema.TimeType{T: "timestamp"}, nil
	case field.TypeBool:
		if a.dialect == dialect.MySQL {
			return &schema.BoolType{T: "bool"}, nil
		}
		return &schema.BoolType{T: "boolean"}, nil
	case field.TypeOther:
		return &schema.UnsupportedType{T: t.Raw}, nil
	default:
		return nil, fmt.Errorf("invalid type %q", t.Type)
	}
}

// Diff returns the Atlas changes from the live schema to the declared
// tables.
func (a *Atlas) Diff(ctx context.Context, tables []*Table) ([]schema.Change, error) {
	current, err := a.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	desired, err := a.StateOf(current.Name, tables)
	if err != nil {
		return nil, err
	}
	return a.drv.SchemaDiff(current, desired)
}

// Plan returns the SQL plan that brings the live schema to the declared
// tables. It returns migrate.ErrNoPlan if nothing changes.
func (a *Atlas) Plan(ctx context.Context, name string, tables []*Table) (*migrate.Plan, error) {
	changes, err := a.Diff(ctx, tables)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, migrate.ErrNoPlan
	}
	return a.drv.PlanChanges(ctx, name, changes)
}

// WriteMigration plans the changes and writes them as a new versioned
// migration file into the directory, updating its checksum file.
func (a *Atlas) WriteMigration(ctx context.Context, dir migrate.Dir, name string, tables []*Table) error {
	plan, err := a.Plan(ctx, name, tables)
	if err != nil {
		return err
	}
	var opts []migrate.PlannerOption
	if a.fmt != nil {
		opts = append(opts, migrate.PlanFormat(a.fmt))
	}
	return migrate.NewPlanner(a.drv, dir, opts...).WritePlan(plan)
}
