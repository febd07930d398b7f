package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/domain"
	"github.com/syssam/silo/model"
	"github.com/syssam/silo/record"
)

// DomainResult is the JSON payload of the domain command.
type DomainResult struct {
	Model string  `json:"model"`
	Tree  string  `json:"tree"`
	SQL   string  `json:"sql"`
	IDs   []int64 `json:"ids,omitempty"`
}

type domainOptions struct {
	run bool
}

// NewDomainCommand creates the domain command.
func NewDomainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &domainOptions{}
	cmd := &cobra.Command{
		Use:   "domain <model> <domain>",
		Short: "Compile a search domain into SQL",
		Long: `Compile a JSON search domain of a model into the SELECT statement
that finds the matching records. Pass - to read the domain from stdin.

  silo domain sale_order '[["state", "=", "draft"], "|", ["amount", ">", 100]]'

With --run the search is executed and the matching ids are printed.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd); err != nil {
				return err
			}
			return runDomain(cmd, rootOpts, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.run, "run", false, "execute the search against the database")

	return cmd
}

func runDomain(cmd *cobra.Command, rootOpts *RootOptions, opts *domainOptions, name, src string) error {
	out := rootOpts.formatter(cmd)
	if src == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return out.Fail(WrapExitError(ExitCommandError, "cannot read domain", err))
		}
		src = string(b)
	}
	var d domain.Domain
	if err := json.Unmarshal([]byte(src), &d); err != nil {
		return out.Fail(WrapExitError(ExitFailure, "invalid domain", err))
	}

	reg, err := rootOpts.registry()
	if err != nil {
		return out.Fail(err)
	}
	m, err := reg.Get(name)
	if err != nil {
		return out.Fail(WrapExitError(ExitFailure, "unknown model", err))
	}
	if m.Abstract() {
		return out.Fail(NewExitError(ExitFailure, fmt.Sprintf("model %q is abstract and has no table", name)))
	}
	res, err := compileSearch(m, d, rootOpts.cfg.Database.Dialect)
	if err != nil {
		return out.Fail(WrapExitError(ExitFailure, "cannot compile domain", err))
	}
	out.VerboseLog("domain tree: %s", res.Tree)

	if opts.run {
		db, err := rootOpts.open(nil)
		if err != nil {
			return out.Fail(err)
		}
		defer db.Close()
		env := record.NewEnvironment(reg, db.drv, record.WithLogger(rootOpts.logger))
		rs, err := env.Model(name)
		if err != nil {
			return out.Fail(WrapExitError(ExitFailure, "unknown model", err))
		}
		found, err := rs.Search(contextOf(cmd), d)
		if err != nil {
			return out.Fail(WrapExitError(ExitFailure, "search failed", err))
		}
		res.IDs = found.IDs()
		return out.Success(fmt.Sprintf("%s\n%s", res.SQL, found), res)
	}
	return out.Success(res.SQL, res)
}

// compileSearch renders the SELECT statement of a search on m.
func compileSearch(m *model.Resolved, d domain.Domain, dialect string) (*DomainResult, error) {
	tree, err := domain.Parse(d)
	if err != nil {
		return nil, err
	}
	res := &DomainResult{Model: m.Name()}
	if tree != nil {
		res.Tree = fmt.Sprint(tree)
	}
	cond, err := domain.Compile(tree, domain.WithDialect(dialect), domain.WithResolver(m.Field))
	if err != nil {
		return nil, err
	}
	q, err := sql.Expr("SELECT {id} FROM {table}", sql.Args{
		"id":    sql.MustIdent(model.IDField),
		"table": sql.MustIdent(m.Table().Name),
	})
	if err != nil {
		return nil, err
	}
	if cond != nil {
		q = sql.Concat(q, sql.Raw(" WHERE "), cond)
	}
	res.SQL = q.Render(dialect)
	return res, nil
}
