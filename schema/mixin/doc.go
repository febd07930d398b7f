// Package mixin provides reusable model components.
//
// A mixin is a set of fields and methods shared by several models. It is
// registered once as an abstract model and inherited by name:
//
//	reg.Register(mixin.Declarations(mixin.Time{}, mixin.Named{Size: 64})...)
//	reg.Register(model.New("res_partner").Inherit("named_mixin", "time_mixin"))
//
// # Built-in Mixins
//
//	// Time: created_at and updated_at, filled on create and write
//	mixin.Time{}
//
//	// CreateTime / UpdateTime: only one of the two timestamps
//	mixin.CreateTime{}
//	mixin.UpdateTime{}
//
//	// Named: a required name string
//	mixin.Named{}
//
// # Mixin Order
//
// Mixins are merged in the order they are inherited. A later mixin
// overrides the fields of an earlier one with the same name, and the model
// itself overrides both.
//
// # Hooks
//
// The timestamp mixins implement the model.PrepareCreate and
// model.PrepareWrite methods. Models that define them as well should call
// next so that the timestamps are still filled:
//
//	model.New("sale_order").Method(model.PrepareCreate,
//		func(ctx context.Context, self any, next model.Next, args ...any) (any, error) {
//			vals := args[0].(map[string]any)
//			vals["state"] = "draft"
//			return next.Call(ctx, self, vals)
//		})
package mixin
