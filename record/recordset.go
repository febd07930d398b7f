package record

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/silo"
	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/domain"
	"github.com/syssam/silo/model"
	"github.com/syssam/silo/schema/field"
)

// Recordset is an ordered set of records of one model. Recordsets are
// values: operations that select records return a new recordset.
type Recordset struct {
	env   *Environment
	model *model.Resolved
	ids   []int64
}

// Env returns the environment of the recordset.
func (rs *Recordset) Env() *Environment { return rs.env }

// Model returns the resolved model of the recordset.
func (rs *Recordset) Model() *model.Resolved { return rs.model }

// Name returns the model name.
func (rs *Recordset) Name() string { return rs.model.Name() }

// IDs returns a copy of the record ids.
func (rs *Recordset) IDs() []int64 { return slices.Clone(rs.ids) }

// Len returns the number of records.
func (rs *Recordset) Len() int { return len(rs.ids) }

// IsEmpty reports whether the recordset holds no record.
func (rs *Recordset) IsEmpty() bool { return len(rs.ids) == 0 }

// String implements the fmt.Stringer interface.
func (rs *Recordset) String() string {
	ids := make([]string, len(rs.ids))
	for i, id := range rs.ids {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s[%s]", rs.model.Name(), strings.Join(ids, ", "))
}

// Records returns a singleton recordset per record.
func (rs *Recordset) Records() []*Recordset {
	out := make([]*Recordset, len(rs.ids))
	for i, id := range rs.ids {
		out[i] = rs.with(id)
	}
	return out
}

// EnsureOne returns an error unless the recordset holds exactly one record.
func (rs *Recordset) EnsureOne() error {
	if len(rs.ids) != 1 {
		return silo.NewNotSingularError(rs.model.Name(), len(rs.ids))
	}
	return nil
}

// ID returns the id of a singleton recordset. It implements
// field.Identifier, so singletons can be assigned to Many2one fields.
func (rs *Recordset) ID() (int64, error) {
	if err := rs.EnsureOne(); err != nil {
		return 0, err
	}
	return rs.ids[0], nil
}

func (rs *Recordset) with(ids ...int64) *Recordset {
	return &Recordset{env: rs.env, model: rs.model, ids: ids}
}

func (rs *Recordset) table() *sql.Fragment {
	return sql.MustIdent(rs.model.Table().Name)
}

// idIn returns the `"id" IN (...)` condition of the recordset.
func idIn(ids []int64) (*sql.Fragment, error) {
	vs := make([]any, len(ids))
	for i, id := range ids {
		vs[i] = id
	}
	list, err := sql.Values(vs...)
	if err != nil {
		return nil, err
	}
	return sql.Expr("{id} IN ({ids})", sql.Args{"id": sql.MustIdent(model.IDField), "ids": list})
}

// Browse returns the recordset of the given ids that exist, in the order
// given. It fails with a not-found error if none of them exist.
func (rs *Recordset) Browse(ctx context.Context, ids ...int64) (*Recordset, error) {
	ids = unique(ids)
	if len(ids) == 0 {
		return rs.with(), nil
	}
	var found []int64
	err := rs.env.managed("browse", rs.model.Table().Name, func(cur *sql.Cursor) error {
		cond, err := idIn(ids)
		if err != nil {
			return err
		}
		q, err := sql.Expr("SELECT {id} FROM {table} WHERE {cond}", sql.Args{
			"id":    sql.MustIdent(model.IDField),
			"table": rs.table(),
			"cond":  cond,
		})
		if err != nil {
			return err
		}
		if found, err = fetchIDs(ctx, cur, q); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, silo.NewNotFoundError(rs.model.Name(), ids...)
	}
	exists := make(map[int64]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}
	return rs.with(slices.DeleteFunc(ids, func(id int64) bool { return !exists[id] })...), nil
}

// Create inserts a record and returns it as a singleton recordset. The
// record id is one past the largest id of the table.
func (rs *Recordset) Create(ctx context.Context, vals Values) (*Recordset, error) {
	vals, err := rs.hook(ctx, model.PrepareCreate, clone(vals))
	if err != nil {
		return nil, err
	}
	cols, err := storage(rs.model, vals)
	if err != nil {
		return nil, err
	}
	if err := missing(rs.model, vals); err != nil {
		return nil, err
	}
	var id int64
	err = rs.env.managed("create", rs.model.Table().Name, func(cur *sql.Cursor) error {
		q, err := sql.Expr("SELECT MAX({id}) FROM {table}", sql.Args{"id": sql.MustIdent(model.IDField), "table": rs.table()})
		if err != nil {
			return err
		}
		if err := cur.Query(ctx, q); err != nil {
			return err
		}
		row, err := cur.FetchOne()
		if err != nil {
			return err
		}
		var last any
		if row != nil {
			if last, err = field.ID().FromStorage(row[0]); err != nil {
				return err
			}
		}
		if n, ok := last.(int64); ok {
			id = n + 1
		} else {
			id = 1
		}
		names := []string{model.IDField}
		values := []any{id}
		for _, c := range cols {
			names = append(names, c.name)
			values = append(values, c.value)
		}
		idents, err := sql.Idents(names...)
		if err != nil {
			return err
		}
		list, err := sql.Values(values...)
		if err != nil {
			return err
		}
		ins, err := sql.Expr("INSERT INTO {table} ({cols}) VALUES ({vals})", sql.Args{"table": rs.table(), "cols": idents, "vals": list})
		if err != nil {
			return err
		}
		_, err = cur.Exec(ctx, ins)
		return err
	})
	if err != nil {
		return nil, err
	}
	rs.env.logger.Debug("record created", "model", rs.model.Name(), "id", id)
	return rs.with(id), nil
}

// Read returns the values of the named stored fields, one map per record
// in recordset order. Without names, every stored field is read.
// Records that no longer exist are skipped.
func (rs *Recordset) Read(ctx context.Context, names ...string) ([]Values, error) {
	fs, err := stored(rs.model, names)
	if err != nil {
		return nil, err
	}
	if len(rs.ids) == 0 {
		return nil, nil
	}
	var rows [][]any
	err = rs.env.managed("read", rs.model.Table().Name, func(cur *sql.Cursor) error {
		cols := make([]string, len(fs))
		for i, f := range fs {
			cols[i] = f.Descriptor().Name
		}
		idents, err := sql.Idents(cols...)
		if err != nil {
			return err
		}
		cond, err := idIn(rs.ids)
		if err != nil {
			return err
		}
		q, err := sql.Expr("SELECT {cols} FROM {table} WHERE {cond}", sql.Args{"cols": idents, "table": rs.table(), "cond": cond})
		if err != nil {
			return err
		}
		if len(rs.ids) > 1 {
			order, err := orderByIDs(rs.ids)
			if err != nil {
				return err
			}
			q = sql.Concat(q, sql.Raw(" ORDER BY "), order)
		}
		if err := cur.Query(ctx, q); err != nil {
			return err
		}
		rows, err = cur.FetchAll()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]Values, 0, len(rows))
	for _, row := range rows {
		v := make(Values, len(fs))
		for i, f := range fs {
			name := f.Descriptor().Name
			if v[name], err = f.FromStorage(row[i]); err != nil {
				e := silo.NewValidationError(rs.model.Name(), name, fmt.Sprintf("cannot read field %q", name))
				e.Err = err
				return nil, e
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// orderByIDs returns a CASE expression that sorts rows in the given id
// order.
func orderByIDs(ids []int64) (*sql.Fragment, error) {
	whens := make([]*sql.Fragment, len(ids))
	for i, id := range ids {
		w, err := sql.Expr("WHEN {id} THEN {pos}", sql.Args{"id": id, "pos": i})
		if err != nil {
			return nil, err
		}
		whens[i] = w
	}
	return sql.Expr("CASE {col} {whens} END", sql.Args{"col": sql.MustIdent(model.IDField), "whens": sql.Join(" ", whens...)})
}

// Get returns the value of a field of a singleton recordset. Many2one
// fields return a recordset of the target model, empty when unset.
// One2many fields return the target records whose inverse field points
// to the record.
func (rs *Recordset) Get(ctx context.Context, name string) (any, error) {
	if err := rs.EnsureOne(); err != nil {
		return nil, err
	}
	f, ok := rs.model.Field(name)
	if !ok {
		return nil, silo.NewValidationError(rs.model.Name(), name, fmt.Sprintf("unknown field %q", name))
	}
	d := f.Descriptor()
	if d.Kind == field.KindOne2many {
		target, err := rs.env.Model(d.Target)
		if err != nil {
			return nil, err
		}
		return target.Search(ctx, domain.Domain{domain.T(d.Inverse, domain.EQ, rs.ids[0])})
	}
	vals, err := rs.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, silo.NewNotFoundError(rs.model.Name(), rs.ids...)
	}
	v := vals[0][name]
	if d.Kind == field.KindMany2one {
		target, err := rs.env.Model(d.Target)
		if err != nil {
			return nil, err
		}
		if id, ok := v.(int64); ok {
			return target.with(id), nil
		}
		return target.with(), nil
	}
	return v, nil
}

// Set writes a single field of the recordset.
func (rs *Recordset) Set(ctx context.Context, name string, v any) error {
	return rs.Write(ctx, Values{name: v})
}

// Write updates the records of the recordset with vals.
func (rs *Recordset) Write(ctx context.Context, vals Values) error {
	vals, err := rs.hook(ctx, model.PrepareWrite, clone(vals))
	if err != nil {
		return err
	}
	cols, err := storage(rs.model, vals)
	if err != nil {
		return err
	}
	if len(cols) == 0 || len(rs.ids) == 0 {
		return nil
	}
	return rs.env.managed("write", rs.model.Table().Name, func(cur *sql.Cursor) error {
		names := make([]string, len(cols))
		values := make([]any, len(cols))
		for i, c := range cols {
			names[i], values[i] = c.name, c.value
		}
		set, err := sql.Set(names, values)
		if err != nil {
			return err
		}
		cond, err := idIn(rs.ids)
		if err != nil {
			return err
		}
		q, err := sql.Expr("UPDATE {table} SET {set} WHERE {cond}", sql.Args{"table": rs.table(), "set": set, "cond": cond})
		if err != nil {
			return err
		}
		_, err = cur.Exec(ctx, q)
		return err
	})
}

// Delete deletes the records of the recordset.
func (rs *Recordset) Delete(ctx context.Context) error {
	if len(rs.ids) == 0 {
		return nil
	}
	err := rs.env.managed("delete", rs.model.Table().Name, func(cur *sql.Cursor) error {
		cond, err := idIn(rs.ids)
		if err != nil {
			return err
		}
		q, err := sql.Expr("DELETE FROM {table} WHERE {cond}", sql.Args{"table": rs.table(), "cond": cond})
		if err != nil {
			return err
		}
		_, err = cur.Exec(ctx, q)
		return err
	})
	if err != nil {
		return err
	}
	rs.env.logger.Debug("records deleted", "model", rs.model.Name(), "ids", rs.ids)
	return nil
}

// Call invokes the named method of the model with the recordset as
// receiver.
func (rs *Recordset) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := rs.model.Method(name)
	if !ok {
		return nil, silo.NewDeclarationError("call", fmt.Sprintf("model has no method %q", name), rs.model.Name())
	}
	return fn(ctx, rs, args...)
}

// SearchOptions holds the ordering and paging of a search.
type SearchOptions struct {
	OrderBy string
	Desc    bool
	Offset  int
	Limit   int
}

// SearchOption configures a search.
type SearchOption func(*SearchOptions)

// OrderBy orders the results by the named stored field.
func OrderBy(name string) SearchOption {
	return func(o *SearchOptions) {
		o.OrderBy = name
	}
}

// Desc orders the results in descending order.
func Desc() SearchOption {
	return func(o *SearchOptions) {
		o.Desc = true
	}
}

// Offset skips the first n results.
func Offset(n int) SearchOption {
	return func(o *SearchOptions) {
		o.Offset = n
	}
}

// Limit returns at most n results.
func Limit(n int) SearchOption {
	return func(o *SearchOptions) {
		o.Limit = n
	}
}

// where compiles the domain against the model fields.
func (rs *Recordset) where(d domain.Domain) (*sql.Fragment, error) {
	return domain.CompileDomain(d,
		domain.WithDialect(rs.env.drv.Dialect()),
		domain.WithResolver(rs.model.Field),
	)
}

// Search returns the records of the model matching the domain. An empty
// domain matches every record.
func (rs *Recordset) Search(ctx context.Context, d domain.Domain, opts ...SearchOption) (*Recordset, error) {
	var o SearchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.Offset < 0 || o.Limit < 0 {
		return nil, silo.NewValidationError(rs.model.Name(), "", "offset and limit must not be negative")
	}
	cond, err := rs.where(d)
	if err != nil {
		return nil, err
	}
	q, err := sql.Expr("SELECT {id} FROM {table}", sql.Args{"id": sql.MustIdent(model.IDField), "table": rs.table()})
	if err != nil {
		return nil, err
	}
	if cond != nil {
		q = sql.Concat(q, sql.Raw(" WHERE "), cond)
	}
	if o.OrderBy != "" {
		f, ok := rs.model.Field(o.OrderBy)
		if !ok || !f.Descriptor().Materialized() {
			return nil, silo.NewValidationError(rs.model.Name(), o.OrderBy, fmt.Sprintf("cannot order by field %q", o.OrderBy))
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		q = sql.Concat(q, sql.Raw(" ORDER BY "), sql.MustIdent(o.OrderBy), sql.Raw(dir))
	}
	q = sql.Concat(q, paging(rs.env.drv.Dialect(), o.Offset, o.Limit))
	var ids []int64
	err = rs.env.managed("search", rs.model.Table().Name, func(cur *sql.Cursor) error {
		ids, err = fetchIDs(ctx, cur, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rs.with(ids...), nil
}

// paging returns the LIMIT/OFFSET clause. SQLite and MySQL do not accept
// an OFFSET without a LIMIT.
func paging(name string, offset, limit int) *sql.Fragment {
	var b strings.Builder
	switch {
	case limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", limit)
	case offset > 0 && name == dialect.SQLite:
		b.WriteString(" LIMIT -1")
	case offset > 0 && name == dialect.MySQL:
		b.WriteString(" LIMIT 18446744073709551615")
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return sql.Raw(b.String())
}

// SearchCount returns the number of records matching the domain.
func (rs *Recordset) SearchCount(ctx context.Context, d domain.Domain) (int64, error) {
	cond, err := rs.where(d)
	if err != nil {
		return 0, err
	}
	q, err := sql.Expr("SELECT COUNT(*) FROM {table}", sql.Args{"table": rs.table()})
	if err != nil {
		return 0, err
	}
	if cond != nil {
		q = sql.Concat(q, sql.Raw(" WHERE "), cond)
	}
	var n int64
	err = rs.env.managed("search_count", rs.model.Table().Name, func(cur *sql.Cursor) error {
		if err := cur.Query(ctx, q); err != nil {
			return err
		}
		row, err := cur.FetchOne()
		if err != nil || row == nil {
			return err
		}
		v, err := field.ID().FromStorage(row[0])
		if err != nil {
			return err
		}
		n, _ = v.(int64)
		return nil
	})
	return n, err
}

func fetchIDs(ctx context.Context, cur *sql.Cursor, q *sql.Fragment) ([]int64, error) {
	if err := cur.Query(ctx, q); err != nil {
		return nil, err
	}
	rows, err := cur.FetchAll()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		v, err := field.ID().FromStorage(row[0])
		if err != nil {
			return nil, err
		}
		if id, ok := v.(int64); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func clone(vals Values) Values {
	if vals == nil {
		return Values{}
	}
	return maps.Clone(vals)
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

var _ field.Identifier = (*Recordset)(nil)
