package model

import (
	"context"

	"github.com/syssam/silo/schema/field"
)

// Declaration is one unit of registration.
type Declaration struct {
	// Name of the model introduced by the declaration.
	Name string
	// Extends names the model the declaration adds to. When both are set
	// they must be equal.
	Extends string
	// Inherits lists the models whose fields and methods are merged in
	// before the declaration's own.
	Inherits []string
	// Fields in declaration order.
	Fields []field.Field
	// Methods by name.
	Methods map[string]Method
	// Abstract models are not materialized into tables. Mixins are
	// registered as abstract models.
	Abstract bool
}

// New returns a declaration introducing the named model.
func New(name string, fields ...field.Field) *Declaration {
	return &Declaration{Name: name, Fields: fields}
}

// Extend returns a declaration adding to the named model.
func Extend(name string, fields ...field.Field) *Declaration {
	return &Declaration{Extends: name, Fields: fields}
}

// Inherit appends models to the inherits list.
func (d *Declaration) Inherit(names ...string) *Declaration {
	d.Inherits = append(d.Inherits, names...)
	return d
}

// Field appends fields to the declaration.
func (d *Declaration) Field(fields ...field.Field) *Declaration {
	d.Fields = append(d.Fields, fields...)
	return d
}

// Method sets a method of the declaration.
func (d *Declaration) Method(name string, fn Method) *Declaration {
	if d.Methods == nil {
		d.Methods = make(map[string]Method)
	}
	d.Methods[name] = fn
	return d
}

// AsAbstract marks the declared model as abstract.
func (d *Declaration) AsAbstract() *Declaration {
	d.Abstract = true
	return d
}

// model returns the name of the model the declaration registers under.
func (d *Declaration) model() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Extends
}

// Hook methods called by the record layer. Both receive the values being
// written as a map[string]any and return the values to write.
const (
	PrepareCreate = "prepare_create"
	PrepareWrite  = "prepare_write"
)

// Method is a model behavior. self is the receiver the method is called
// on (a recordset in the record package) and next is the implementation
// contributed before this one, or nil.
type Method func(ctx context.Context, self any, next Next, args ...any) (any, error)

// Next calls an implementation of a method.
type Next func(ctx context.Context, self any, args ...any) (any, error)

// Call calls n. Calling a nil Next returns (nil, nil), so methods may call
// next unconditionally.
func (n Next) Call(ctx context.Context, self any, args ...any) (any, error) {
	if n == nil {
		return nil, nil
	}
	return n(ctx, self, args...)
}

// impl is a method implementation and the declaration contributing it.
type impl struct {
	owner *Declaration
	fn    Method
}

// chain composes the implementations, first contributed innermost.
func chain(impls []impl) Next {
	var next Next
	for _, im := range impls {
		fn, prev := im.fn, next
		next = func(ctx context.Context, self any, args ...any) (any, error) {
			return fn(ctx, self, prev, args...)
		}
	}
	return next
}
