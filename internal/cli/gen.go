package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/syssam/silo/compiler/gen"
)

// GenResult is the JSON payload of the gen command.
type GenResult struct {
	Target   string   `json:"target"`
	Packages []string `json:"packages"`
}

type genOptions struct {
	target  string
	header  string
	workers int
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &genOptions{}
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate typed domain helpers for the models",
		Long: `Generate one Go package per concrete model holding its field name
constants, selection values and typed domain term builders.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd); err != nil {
				return err
			}
			return runGen(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.target, "target", "t", "silomodel", "output directory")
	cmd.Flags().StringVar(&opts.header, "header", gen.DefaultHeader, "comment written at the top of every file")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "number of models rendered in parallel")

	return cmd
}

func runGen(cmd *cobra.Command, rootOpts *RootOptions, opts *genOptions) error {
	out := rootOpts.formatter(cmd)
	reg, err := rootOpts.registry()
	if err != nil {
		return out.Fail(err)
	}
	g, err := gen.NewGraph(reg,
		gen.WithTarget(opts.target),
		gen.WithHeader(opts.header),
		gen.WithWorkers(opts.workers),
	)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "invalid generator options", err))
	}
	if err := gen.NewGenerator(g).Generate(contextOf(cmd)); err != nil {
		return out.Fail(WrapExitError(ExitFailure, "generation failed", err))
	}
	res := &GenResult{Target: opts.target}
	text := fmt.Sprintf("✓ generated %d packages in %s", len(g.Nodes), opts.target)
	for _, t := range g.Nodes {
		res.Packages = append(res.Packages, t.Package)
		out.VerboseLog("  %s -> %s", t.Name, filepath.Join(opts.target, t.Package))
	}
	return out.Success(text, res)
}
