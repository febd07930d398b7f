package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syssam/silo"
	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/dialect/sql/schema"
	"github.com/syssam/silo/model"
)

// Environment binds a model registry to a database session.
type Environment struct {
	reg        *model.Registry
	drv        dialect.Driver
	cur        *sql.Cursor
	logger     *slog.Logger
	autoCommit bool
}

// Option allows configuring the Environment using functional arguments.
type Option func(*Environment)

// WithLogger sets the logger of the environment.
func WithLogger(l *slog.Logger) Option {
	return func(env *Environment) {
		env.logger = l
	}
}

// WithAutoCommit sets whether every operation commits its transaction.
// It is enabled by default. When disabled, the caller commits or rolls
// back through the environment.
func WithAutoCommit(b bool) Option {
	return func(env *Environment) {
		env.autoCommit = b
	}
}

// NewEnvironment returns an environment over the registry and driver.
func NewEnvironment(reg *model.Registry, drv dialect.Driver, opts ...Option) *Environment {
	env := &Environment{
		reg:        reg,
		drv:        drv,
		cur:        sql.NewCursor(drv),
		logger:     slog.Default(),
		autoCommit: true,
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// Registry returns the model registry of the environment.
func (env *Environment) Registry() *model.Registry { return env.reg }

// Driver returns the database driver of the environment.
func (env *Environment) Driver() dialect.Driver { return env.drv }

// Model returns an empty recordset of the named model.
func (env *Environment) Model(name string) (*Recordset, error) {
	m, err := env.reg.Get(name)
	if err != nil {
		return nil, err
	}
	if m.Abstract() {
		return nil, silo.NewDeclarationError("model", fmt.Sprintf("model %q is abstract", name), name)
	}
	return &Recordset{env: env, model: m}, nil
}

// MustModel is like Model but panics on error.
func (env *Environment) MustModel(name string) *Recordset {
	rs, err := env.Model(name)
	if err != nil {
		panic(err)
	}
	return rs
}

// Migrate resolves the registry if needed and reconciles the tables of
// every model with the database under the given policy.
func (env *Environment) Migrate(ctx context.Context, policy schema.Policy) error {
	if env.cur.InTx() {
		return errors.New("record: migrate: the environment has uncommitted work")
	}
	if !env.reg.Resolved() {
		if err := env.reg.Resolve(); err != nil {
			return err
		}
	}
	tables, err := env.reg.Tables()
	if err != nil {
		return err
	}
	m, err := schema.NewMigrate(env.drv, schema.WithLogger(env.logger))
	if err != nil {
		return err
	}
	return m.Apply(ctx, tables, policy)
}

// Commit commits the open transaction.
func (env *Environment) Commit() error {
	return env.cur.Commit()
}

// Rollback rolls back the open transaction.
func (env *Environment) Rollback() error {
	return env.cur.Rollback()
}

// Close rolls back uncommitted work. The driver is left open.
func (env *Environment) Close() error {
	return env.cur.Close()
}

// managed runs fn with the environment cursor. With auto-commit the
// transaction is committed on success and rolled back on failure.
// Errors that are not *silo.Error are reported as backend errors.
func (env *Environment) managed(op, table string, fn func(*sql.Cursor) error) error {
	if err := fn(env.cur); err != nil {
		if env.autoCommit {
			err = errors.Join(err, env.cur.Rollback())
		}
		return wrap(op, table, err)
	}
	if env.autoCommit {
		if err := env.cur.Commit(); err != nil {
			return wrap(op, table, err)
		}
	}
	return nil
}

func wrap(op, table string, err error) error {
	var serr *silo.Error
	if errors.As(err, &serr) {
		return err
	}
	return silo.NewBackendError(op, table, err)
}
