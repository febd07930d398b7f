package cli

import (
	"errors"
	"fmt"
	"os"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/sqltool"
	"github.com/spf13/cobra"

	"github.com/syssam/silo/dialect/sql/schema"
)

// formatters are the migration file layouts of the diff command.
var formatters = map[string]migrate.Formatter{
	"atlas":          migrate.DefaultFormatter,
	"goose":          sqltool.GooseFormatter,
	"golang-migrate": sqltool.GolangMigrateFormatter,
	"flyway":         sqltool.FlywayFormatter,
	"dbmate":         sqltool.DBMateFormatter,
}

// DiffResult is the JSON payload of the diff command.
type DiffResult struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files,omitempty"`
}

type diffOptions struct {
	dir    string
	layout string
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &diffOptions{}
	cmd := &cobra.Command{
		Use:   "diff <name>",
		Short: "Write a versioned migration from the database to the models",
		Long: `Compare the live database with the declared models and write the
statements that reconcile them as a new versioned migration file.
Nothing is applied to the database.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd); err != nil {
				return err
			}
			return runDiff(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "", "migration directory; defaults to migrate.dir")
	cmd.Flags().StringVar(&opts.layout, "layout", "atlas", "migration file layout (atlas|goose|golang-migrate|flyway|dbmate)")

	return cmd
}

func runDiff(cmd *cobra.Command, rootOpts *RootOptions, opts *diffOptions, name string) error {
	out := rootOpts.formatter(cmd)
	f, ok := formatters[opts.layout]
	if !ok {
		return out.Fail(NewExitError(ExitCommandError, fmt.Sprintf("unknown layout %q", opts.layout)))
	}
	path := opts.dir
	if path == "" {
		path = rootOpts.cfg.Migrate.Dir
	}

	reg, err := rootOpts.registry()
	if err != nil {
		return out.Fail(err)
	}
	tables, err := reg.Tables()
	if err != nil {
		return out.Fail(WrapExitError(ExitFailure, "invalid models", err))
	}
	db, err := rootOpts.open(nil)
	if err != nil {
		return out.Fail(err)
	}
	defer db.Close()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "cannot create migration directory", err))
	}
	dir, err := migrate.NewLocalDir(path)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "cannot open migration directory", err))
	}
	before, err := dir.Files()
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "cannot read migration directory", err))
	}
	a, err := schema.NewAtlas(db.raw.DB(), db.raw.Dialect(), schema.WithFormatter(f))
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "cannot plan migration", err))
	}
	err = a.WriteMigration(contextOf(cmd), dir, name, tables)
	res := &DiffResult{Dir: path}
	switch {
	case errors.Is(err, migrate.ErrNoPlan):
		return out.Success("✓ database is up to date, no migration written", res)
	case err != nil:
		return out.Fail(WrapExitError(ExitFailure, "cannot write migration", err))
	}
	after, err := dir.Files()
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "cannot read migration directory", err))
	}
	res.Files = added(before, after)
	text := fmt.Sprintf("✓ migration written to %s", path)
	for _, f := range res.Files {
		text += "\n  " + f
	}
	return out.Success(text, res)
}

// added returns the names of the files in after that are not in before.
func added(before, after []migrate.File) []string {
	seen := make(map[string]bool, len(before))
	for _, f := range before {
		seen[f.Name()] = true
	}
	var names []string
	for _, f := range after {
		if !seen[f.Name()] {
			names = append(names, f.Name())
		}
	}
	return names
}
