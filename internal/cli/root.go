package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/syssam/silo/config"
	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/model"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Models     []string
	Verbose    bool
	Format     string // "json" | "text"

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the silo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "silo",
		Short: "silo - declarative models over SQL databases",
		Long: `Declare models in YAML, JSON or CUE files, reconcile the database
tables with them and compile search domains into SQL.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: silo.yaml in ./configs or .)")
	cmd.PersistentFlags().StringSliceVarP(&opts.Models, "models", "m", nil, "declaration files or directories (overrides models.paths)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output, logs every statement")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewDomainCommand(opts))
	cmd.AddCommand(NewGenCommand(opts))
	cmd.AddCommand(NewModelsCommand(opts))

	return cmd
}

// setup loads the configuration once and applies the flag overrides.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if o.cfg != nil {
		return nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot load configuration", err)
	}
	if len(o.Models) > 0 {
		cfg.Models.Paths = o.Models
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	o.cfg = cfg
	o.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// registry loads and resolves the declarations of the configured paths.
func (o *RootOptions) registry() (*model.Registry, error) {
	decls, err := model.Load(o.cfg.Models.Paths...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot load declarations", err)
	}
	reg := model.NewRegistry(model.WithLogger(o.logger))
	if err := reg.Register(decls...); err != nil {
		return nil, WrapExitError(ExitFailure, "invalid declarations", err)
	}
	if err := reg.Resolve(); err != nil {
		return nil, WrapExitError(ExitFailure, "cannot resolve models", err)
	}
	return reg, nil
}

// database is an open connection and the driver stack wrapped around it.
type database struct {
	raw   *sql.Driver
	drv   dialect.Driver
	stats *sql.StatsDriver
}

func (d *database) Close() error { return d.raw.Close() }

// open connects to the configured database. With metrics enabled the
// driver records statistics, logs slow statements and reports to reg.
func (o *RootOptions) open(reg prometheus.Registerer) (*database, error) {
	raw, err := sql.Open(o.cfg.Database.Dialect, o.cfg.Database.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot open database", err)
	}
	if n := o.cfg.Database.MaxOpenConns; n > 0 {
		raw.DB().SetMaxOpenConns(n)
	}
	db := &database{raw: raw, drv: raw}
	if o.Verbose {
		db.drv = sql.NewDebugDriver(db.drv, o.logger)
	}
	if o.cfg.Metrics.Enabled {
		db.stats = sql.NewStatsDriver(db.drv,
			sql.WithSlowThreshold(o.cfg.Metrics.SlowThreshold),
			sql.WithSlowQueryLog(o.logger),
		)
		db.drv = db.stats
		if reg != nil {
			db.drv = sql.NewMetricsDriver(db.drv, sql.NewMetrics(reg))
		}
	}
	return db, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
