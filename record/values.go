package record

import (
	"context"
	"fmt"

	"github.com/syssam/silo"
	"github.com/syssam/silo/model"
	"github.com/syssam/silo/schema/field"
)

// Values maps field names to application values.
type Values = map[string]any

// column is a converted assignment of a stored field.
type column struct {
	name  string
	value any
}

// storage checks and converts vals for writing to the model table.
// The columns follow the field order of the model.
func storage(m *model.Resolved, vals Values) ([]column, error) {
	for name := range vals {
		f, ok := m.Field(name)
		if !ok {
			return nil, silo.NewValidationError(m.Name(), name, fmt.Sprintf("unknown field %q", name))
		}
		if name == model.IDField {
			return nil, silo.NewValidationError(m.Name(), name, "record ids are assigned by the database")
		}
		if f.Descriptor().Virtual {
			return nil, silo.NewValidationError(m.Name(), name, fmt.Sprintf("field %q is not stored and cannot be written", name))
		}
	}
	cols := make([]column, 0, len(vals))
	for _, f := range m.Fields() {
		d := f.Descriptor()
		v, ok := vals[d.Name]
		if !ok {
			continue
		}
		if v == nil && d.Required {
			return nil, silo.NewValidationError(m.Name(), d.Name, fmt.Sprintf("attempted to set required field %q to nil", d.Name))
		}
		sv, err := f.ToStorage(v)
		if err != nil {
			e := silo.NewValidationError(m.Name(), d.Name, fmt.Sprintf("invalid value for field %q", d.Name))
			e.Err = err
			return nil, e
		}
		cols = append(cols, column{name: d.Name, value: sv})
	}
	return cols, nil
}

// missing returns the first required stored field without a value.
func missing(m *model.Resolved, vals Values) error {
	for _, f := range m.Fields() {
		d := f.Descriptor()
		if !d.Required || !d.Materialized() || d.Name == model.IDField {
			continue
		}
		if v, ok := vals[d.Name]; !ok || v == nil {
			return silo.NewValidationError(m.Name(), d.Name, fmt.Sprintf("required field %q has no value", d.Name))
		}
	}
	return nil
}

// stored returns the stored fields of the model named by names, or all of
// them when names is empty.
func stored(m *model.Resolved, names []string) ([]field.Field, error) {
	if len(names) == 0 {
		var fs []field.Field
		for _, f := range m.Fields() {
			if f.Descriptor().Materialized() {
				fs = append(fs, f)
			}
		}
		return fs, nil
	}
	fs := make([]field.Field, 0, len(names))
	for _, name := range names {
		f, ok := m.Field(name)
		if !ok {
			return nil, silo.NewValidationError(m.Name(), name, fmt.Sprintf("unknown field %q", name))
		}
		if !f.Descriptor().Materialized() {
			return nil, silo.NewValidationError(m.Name(), name, fmt.Sprintf("field %q is not stored and cannot be read", name))
		}
		fs = append(fs, f)
	}
	return fs, nil
}

// hook runs the named value hook of the model, if any.
func (rs *Recordset) hook(ctx context.Context, name string, vals Values) (Values, error) {
	fn, ok := rs.model.Method(name)
	if !ok {
		return vals, nil
	}
	out, err := fn(ctx, rs, vals)
	if err != nil {
		return nil, err
	}
	v, ok := out.(map[string]any)
	if !ok {
		return nil, silo.NewDeclarationError("call", fmt.Sprintf("method %q returned %T, want values", name, out), rs.model.Name())
	}
	return v, nil
}
