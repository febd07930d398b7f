package sql

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/silo/dialect"
)

// Cursor executes fragments over a driver. The first statement starts a
// transaction that lasts until Commit or Rollback. A Cursor is a session
// object: it must not be shared between goroutines.
type Cursor struct {
	drv     dialect.Driver
	tx      dialect.Tx
	rows    *Rows
	columns []string
}

// NewCursor returns a cursor over the driver.
func NewCursor(drv dialect.Driver) *Cursor {
	return &Cursor{drv: drv}
}

// Dialect returns the dialect of the underlying driver.
func (c *Cursor) Dialect() string {
	return c.drv.Dialect()
}

// Driver returns the underlying driver.
func (c *Cursor) Driver() dialect.Driver {
	return c.drv
}

// InTx reports whether the cursor holds an open transaction.
func (c *Cursor) InTx() bool {
	return c.tx != nil
}

func (c *Cursor) begin(ctx context.Context) (dialect.Tx, error) {
	if err := c.closeRows(); err != nil {
		return nil, err
	}
	if c.tx == nil {
		tx, err := c.drv.Tx(ctx)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: begin: %w", err)
		}
		c.tx = tx
	}
	return c.tx, nil
}

// Exec executes a statement that returns no rows.
func (c *Cursor) Exec(ctx context.Context, f *Fragment) (Result, error) {
	if f.IsEmpty() {
		return nil, errors.New("dialect/sql: exec: empty statement")
	}
	tx, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	var res Result
	if err := tx.Exec(ctx, f.Render(c.Dialect()), []any{}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Query executes a statement that returns rows. The rows are consumed
// with FetchOne / FetchAll and released by the next statement.
func (c *Cursor) Query(ctx context.Context, f *Fragment) error {
	if f.IsEmpty() {
		return errors.New("dialect/sql: query: empty statement")
	}
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	rows := &Rows{}
	if err := tx.Query(ctx, f.Render(c.Dialect()), []any{}, rows); err != nil {
		return err
	}
	columns, err := rows.Columns()
	if err != nil {
		return errors.Join(err, rows.Close())
	}
	c.rows, c.columns = rows, columns
	return nil
}

// Columns returns the column names of the last query.
func (c *Cursor) Columns() []string {
	return c.columns
}

// FetchOne returns the next row of the last query, or nil when the rows
// are exhausted.
func (c *Cursor) FetchOne() ([]any, error) {
	if c.rows == nil {
		return nil, nil
	}
	if !c.rows.Next() {
		return nil, c.closeRows()
	}
	vals, err := ScanValues(c.rows, len(c.columns))
	if err != nil {
		return nil, errors.Join(err, c.closeRows())
	}
	return vals, nil
}

// FetchAll returns the remaining rows of the last query.
func (c *Cursor) FetchAll() ([][]any, error) {
	var all [][]any
	for {
		row, err := c.FetchOne()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return all, nil
		}
		all = append(all, row)
	}
}

func (c *Cursor) closeRows() error {
	if c.rows == nil {
		return nil
	}
	rows := c.rows
	c.rows = nil
	return errors.Join(rows.Err(), rows.Close())
}

// Commit commits the open transaction, if any.
func (c *Cursor) Commit() error {
	if err := c.closeRows(); err != nil {
		return err
	}
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	return tx.Commit()
}

// Rollback rolls back the open transaction, if any.
func (c *Cursor) Rollback() error {
	err := c.closeRows()
	if c.tx == nil {
		return err
	}
	tx := c.tx
	c.tx = nil
	return errors.Join(err, tx.Rollback())
}

// Close releases pending rows and rolls back any uncommitted work.
func (c *Cursor) Close() error {
	return c.Rollback()
}
