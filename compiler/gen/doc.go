// Package gen generates typed domain helpers for resolved models.
//
// Every non-abstract model gets a package named after it (sale_order
// becomes saleorder) holding its field names and a typed term builder per
// searchable field:
//
//	rs.Search(ctx, domain.AllOf(
//		saleorder.NameField.ILike("SO"),
//		saleorder.StateField.EQ(saleorder.StateDraft),
//	))
//
// Files are rendered with jennifer and formatted with goimports:
//
//	g, err := gen.NewGraph(reg, gen.WithTarget("internal/models"))
//	if err != nil {
//		return err
//	}
//	err = gen.NewGenerator(g).Generate(ctx)
package gen
