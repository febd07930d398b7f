// Package domain parses and compiles search domains.
//
// A domain is a flat list of comparison terms and logical tokens written
// in infix order, where a connective is placed between the operands it
// combines:
//
//	domain.Domain{
//		domain.T("state", "=", "draft"),
//		domain.OpAnd,
//		domain.T("amount", ">", 100),
//		domain.OpOr,
//		domain.T("partner_id", "=", nil),
//	}
//
// Connectives bind by precedence, ! (3) before & (2) before | (1), and are
// left-associative, so the domain above reads (state = 'draft' AND
// amount > 100) OR partner_id IS NULL. Parentheses override precedence.
//
// On the wire a domain is a JSON array of [field, operator, value] triples
// and connective strings:
//
//	[["state", "=", "draft"], "&", ["amount", ">", 100]]
//
// Parse turns a domain into an expression tree and Compile turns the tree
// into a WHERE condition built with the dialect/sql statement builder, so
// values are always escaped and field names always pass the identifier
// allow-list.
package domain
