package mixin

import (
	"context"
	"fmt"
	"time"

	"github.com/syssam/silo/model"
	"github.com/syssam/silo/schema/field"
)

// Mixin is a reusable set of fields and methods. Mixins are registered as
// abstract models and pulled into concrete models through inherits.
type Mixin interface {
	// Name is the model name the mixin registers under.
	Name() string
	Fields() []field.Field
	Methods() map[string]model.Method
}

// Schema is the default implementation of the field and method sets of a
// Mixin. It should be embedded in all custom mixin definitions.
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Name() string { return "audit" }
//
//	func (Audit) Fields() []field.Field {
//	    return []field.Field{
//	        field.String("created_by"),
//	    }
//	}
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []field.Field { return nil }

// Methods returns the methods of the mixin.
func (Schema) Methods() map[string]model.Method { return nil }

// Declaration returns the abstract declaration of the mixin.
func Declaration(m Mixin) *model.Declaration {
	return &model.Declaration{
		Name:     m.Name(),
		Fields:   m.Fields(),
		Methods:  m.Methods(),
		Abstract: true,
	}
}

// Declarations returns the abstract declarations of the mixins.
func Declarations(ms ...Mixin) []*model.Declaration {
	decls := make([]*model.Declaration, len(ms))
	for i, m := range ms {
		decls[i] = Declaration(m)
	}
	return decls
}

// Time adds created_at and updated_at timestamps. created_at is set on
// creation, updated_at on creation and on every write.
//
//	reg.Register(mixin.Declaration(mixin.Time{}))
//	reg.Register(model.New("sale_order").Inherit(mixin.Time{}.Name()))
type Time struct {
	Schema
	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time
}

// Name implements the Mixin interface.
func (Time) Name() string { return "time_mixin" }

// Fields returns the time tracking fields.
func (Time) Fields() []field.Field {
	return []field.Field{
		field.Datetime("created_at"),
		field.Datetime("updated_at"),
	}
}

// Methods returns the hooks filling the timestamps.
func (m Time) Methods() map[string]model.Method {
	return map[string]model.Method{
		model.PrepareCreate: stamp(m.Now, "created_at", "updated_at"),
		model.PrepareWrite:  stamp(m.Now, "updated_at"),
	}
}

// CreateTime adds only the created_at timestamp.
type CreateTime struct {
	Schema
	Now func() time.Time
}

// Name implements the Mixin interface.
func (CreateTime) Name() string { return "create_time_mixin" }

// Fields returns the created_at field.
func (CreateTime) Fields() []field.Field {
	return []field.Field{field.Datetime("created_at")}
}

// Methods returns the hook filling created_at.
func (m CreateTime) Methods() map[string]model.Method {
	return map[string]model.Method{
		model.PrepareCreate: stamp(m.Now, "created_at"),
	}
}

// UpdateTime adds only the updated_at timestamp.
type UpdateTime struct {
	Schema
	Now func() time.Time
}

// Name implements the Mixin interface.
func (UpdateTime) Name() string { return "update_time_mixin" }

// Fields returns the updated_at field.
func (UpdateTime) Fields() []field.Field {
	return []field.Field{field.Datetime("updated_at")}
}

// Methods returns the hooks filling updated_at.
func (m UpdateTime) Methods() map[string]model.Method {
	return map[string]model.Method{
		model.PrepareCreate: stamp(m.Now, "updated_at"),
		model.PrepareWrite:  stamp(m.Now, "updated_at"),
	}
}

// Named adds a required name field.
type Named struct {
	Schema
	// Size of the name column. It defaults to field.DefaultStringSize.
	Size int
}

// Name implements the Mixin interface.
func (Named) Name() string { return "named_mixin" }

// Fields returns the name field.
func (m Named) Fields() []field.Field {
	f := field.String("name").Required()
	if m.Size > 0 {
		f.Size(m.Size)
	}
	return []field.Field{f}
}

// stamp returns a prepare hook setting the given fields to the current
// time unless the values already hold them.
func stamp(now func() time.Time, fields ...string) model.Method {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, self any, next model.Next, args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("mixin: prepare hook called without values")
		}
		vals, ok := args[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("mixin: prepare hook expects map[string]any, got %T", args[0])
		}
		out, err := next.Call(ctx, self, vals)
		if err != nil {
			return nil, err
		}
		if out != nil {
			vals = out.(map[string]any)
		}
		t := now()
		for _, name := range fields {
			if _, ok := vals[name]; !ok {
				vals[name] = t
			}
		}
		return vals, nil
	}
}

// Interface compliance checks.
var (
	_ Mixin = Time{}
	_ Mixin = CreateTime{}
	_ Mixin = UpdateTime{}
	_ Mixin = Named{}
)
