// Package field provides the field types of model declarations and the
// logical type and constraint taxonomy of columns.
//
// Fields are declared with fluent builders:
//
//	field.String("name").Size(64).Required()
//	field.Integer("line_count")
//	field.Float("amount")
//	field.Text("notes")
//	field.Date("order_date")
//	field.Datetime("confirmed_at").In(loc)
//	field.Boolean("active")
//	field.Selection("state", "draft", "sale", "cancel")
//	field.Many2one("partner_id", "res_partner")
//	field.One2many("line_ids", "sale_order_line", "order_id")
//
// Every field implements the Field interface: its Descriptor carries the
// metadata (column type, constraints, relational target), and ToStorage /
// FromStorage convert values between the application and the database.
// Relational One2many fields are virtual: they are part of a model but
// are not backed by a column.
//
// # Types
//
// A TypeInfo is the logical type of a column. Two TypeInfo values are
// equal iff their tag and parameters match:
//
//	field.StringType(255).Equal(field.StringType(255)) // true
//	field.StringType(255).Equal(field.StringType(123)) // false
//	field.IntType.String()                             // INTEGER
//
// # Constraints
//
// Constraints attach to columns: NOT NULL for required fields, PRIMARY KEY
// for the id field, UNIQUE, and FOREIGN KEY for Many2one fields.
package field
