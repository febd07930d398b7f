// Package record reads and writes the records of resolved models.
//
// An Environment binds a resolved model registry to a database driver and
// hands out recordsets, ordered sets of record ids of one model:
//
//	env := record.NewEnvironment(reg, drv)
//	if err := env.Migrate(ctx, schema.Enforce); err != nil {
//		return err
//	}
//	partners := env.MustModel("res_partner")
//	p, err := partners.Create(ctx, record.Values{"name": "ACME"})
//	...
//	found, err := partners.Search(ctx, domain.Domain{domain.T("name", "ilike", "acme")},
//		record.OrderBy("name"), record.Limit(10))
//
// Values are checked and converted by the model fields before they reach
// the database; a failure is reported as a validation error. Every
// operation runs in the transaction of the environment cursor, which is
// committed on success and rolled back on failure unless auto-commit is
// disabled with WithAutoCommit(false).
//
// An Environment is a session object and must not be shared between
// goroutines.
package record
