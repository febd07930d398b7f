// Package model declares models and resolves their inheritance.
//
// A model is assembled from one or more declarations registered under the
// same name. A declaration either introduces a new model (Name) or adds to
// an existing one (Extends), and may pull in the fields and methods of other
// models or mixins through Inherits:
//
//	reg := model.NewRegistry()
//	reg.Register(
//		model.New("res_partner", field.String("name").Required()),
//		model.Extend("res_partner", field.String("email").Size(128)),
//		model.New("sale_order", field.Many2one("partner_id", "res_partner")).
//			Inherit("mail_thread"),
//	)
//	if err := reg.Resolve(); err != nil {
//		return err
//	}
//	partner, _ := reg.Get("res_partner")
//
// Resolution is deterministic. The contributors of a model are merged in the
// order they were registered: a later field replaces an earlier one of the
// same name but keeps its position, and a later method wraps the earlier
// implementation, which it may call through next.
//
// Every model gets an implicit integer primary key named id, unless one of
// its contributors declares a field with that name.
package model
