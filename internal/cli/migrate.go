package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/syssam/silo/dialect/sql/schema"
	"github.com/syssam/silo/record"
)

// MigrateResult is the JSON payload of the migrate command.
type MigrateResult struct {
	Policy  string   `json:"policy"`
	Tables  []string `json:"tables"`
	Changes []string `json:"changes,omitempty"`
	DryRun  bool     `json:"dry_run,omitempty"`
}

type migrateOptions struct {
	policy string
	dryRun bool
	watch  bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Reconcile the database tables with the models",
		Long: `Reconcile the database tables with the declared models.

The policy decides what happens when a table differs from its model:
  check_only  report the differences and fail
  enforce     create, add, modify and drop columns until the table matches
  safe        only create missing tables
  ignore      do nothing

With --watch the migration runs again whenever a declaration file changes.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd); err != nil {
				return err
			}
			return runMigrate(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.policy, "policy", "", "migration policy (check_only|enforce|safe|ignore); defaults to migrate.policy")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the changes without applying them")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "migrate again when declaration files change")

	return cmd
}

func runMigrate(cmd *cobra.Command, rootOpts *RootOptions, opts *migrateOptions) error {
	out := rootOpts.formatter(cmd)
	policy, err := rootOpts.cfg.Policy()
	if opts.policy != "" {
		policy, err = schema.ParsePolicy(opts.policy)
	}
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "invalid policy", err))
	}

	metrics := prometheus.NewRegistry()
	db, err := rootOpts.open(metrics)
	if err != nil {
		return out.Fail(err)
	}
	defer db.Close()

	once := func(ctx context.Context) error {
		res, err := migrateOnce(ctx, rootOpts, db, policy, opts.dryRun)
		if err != nil {
			return out.Fail(err)
		}
		if db.stats != nil {
			out.VerboseLog("%s", db.stats.QueryStats().Stats())
		}
		return out.Success(res.text(), res)
	}
	if !opts.watch {
		return once(contextOf(cmd))
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if rootOpts.cfg.Metrics.Enabled {
		srv := serveMetrics(rootOpts, metrics)
		defer srv.Close()
	}
	w, err := newWatcher(rootOpts.cfg.Models.Paths, rootOpts.logger)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "cannot watch declarations", err))
	}
	// A failed first run keeps watching so the declarations can be fixed.
	_ = once(ctx)
	rootOpts.logger.Info("watching declarations", "paths", rootOpts.cfg.Models.Paths)
	return w.run(ctx, once)
}

// migrateOnce loads the declarations and reconciles the tables, or only
// computes the changes when dryRun is set.
func migrateOnce(ctx context.Context, rootOpts *RootOptions, db *database, policy schema.Policy, dryRun bool) (*MigrateResult, error) {
	reg, err := rootOpts.registry()
	if err != nil {
		return nil, err
	}
	tables, err := reg.Tables()
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid models", err)
	}
	res := &MigrateResult{Policy: policy.String(), DryRun: dryRun}
	for _, t := range tables {
		res.Tables = append(res.Tables, t.Name)
	}
	if dryRun {
		m, err := schema.NewMigrate(db.drv, schema.WithLogger(rootOpts.logger))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot migrate", err)
		}
		changes, err := m.Diff(ctx, tables)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot inspect database", err)
		}
		res.Changes = changes.Strings()
		return res, nil
	}
	env := record.NewEnvironment(reg, db.drv, record.WithLogger(rootOpts.logger))
	if err := env.Migrate(ctx, policy); err != nil {
		return nil, WrapExitError(ExitFailure, "migration failed", err)
	}
	return res, nil
}

func (r *MigrateResult) text() string {
	if !r.DryRun {
		return fmt.Sprintf("✓ %d tables reconciled (policy %s)", len(r.Tables), r.Policy)
	}
	if len(r.Changes) == 0 {
		return "✓ database is up to date"
	}
	return fmt.Sprintf("%d pending changes:\n  %s", len(r.Changes), strings.Join(r.Changes, "\n  "))
}

// serveMetrics exposes the registry on the configured address until the
// returned server is closed.
func serveMetrics(rootOpts *RootOptions, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              rootOpts.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rootOpts.logger.Error("metrics server failed", "error", err)
		}
	}()
	rootOpts.logger.Info("serving metrics", "addr", srv.Addr)
	return srv
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
