package cli

import (
	"bytes"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/silo/model"
)

// ModelInfo describes a resolved model.
type ModelInfo struct {
	Name     string      `json:"name" yaml:"name"`
	Abstract bool        `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Lineage  []string    `json:"lineage,omitempty" yaml:"lineage,omitempty"`
	Table    string      `json:"table,omitempty" yaml:"table,omitempty"`
	Fields   []FieldInfo `json:"fields" yaml:"fields"`
	Methods  []string    `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// FieldInfo describes a field of a resolved model.
type FieldInfo struct {
	Name     string   `json:"name" yaml:"name"`
	Kind     string   `json:"kind" yaml:"kind"`
	Column   string   `json:"column,omitempty" yaml:"column,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Unique   bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty,flow"`
	Target   string   `json:"target,omitempty" yaml:"target,omitempty"`
	Inverse  string   `json:"inverse,omitempty" yaml:"inverse,omitempty"`
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	var abstract bool
	cmd := &cobra.Command{
		Use:   "models [name...]",
		Short: "Print the resolved models",
		Long: `Load and resolve the declarations and print the resulting models
with their merged fields, lineage and table. Text output is YAML.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd); err != nil {
				return err
			}
			return runModels(cmd, rootOpts, args, abstract)
		},
	}

	cmd.Flags().BoolVar(&abstract, "abstract", false, "include abstract models")

	return cmd
}

func runModels(cmd *cobra.Command, rootOpts *RootOptions, names []string, abstract bool) error {
	out := rootOpts.formatter(cmd)
	reg, err := rootOpts.registry()
	if err != nil {
		return out.Fail(err)
	}
	var models []*model.Resolved
	if len(names) == 0 {
		for _, m := range reg.Models() {
			if abstract || !m.Abstract() {
				models = append(models, m)
			}
		}
	} else {
		for _, name := range names {
			m, err := reg.Get(name)
			if err != nil {
				return out.Fail(WrapExitError(ExitFailure, "unknown model", err))
			}
			models = append(models, m)
		}
	}
	infos := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, describe(m))
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(infos); err != nil {
		return out.Fail(WrapExitError(ExitFailure, "cannot encode models", err))
	}
	if err := enc.Close(); err != nil {
		return out.Fail(WrapExitError(ExitFailure, "cannot encode models", err))
	}
	return out.Success(strings.TrimSuffix(buf.String(), "\n"), infos)
}

func describe(m *model.Resolved) ModelInfo {
	info := ModelInfo{
		Name:     m.Name(),
		Abstract: m.Abstract(),
		Lineage:  m.Lineage(),
		Methods:  m.MethodNames(),
	}
	if !m.Abstract() {
		info.Table = m.Table().Name
	}
	for _, f := range m.Fields() {
		d := f.Descriptor()
		fi := FieldInfo{
			Name:     d.Name,
			Kind:     d.Kind,
			Required: d.Required,
			Unique:   d.Unique,
			Options:  d.Options,
			Target:   d.Target,
			Inverse:  d.Inverse,
		}
		if d.Materialized() {
			fi.Column = d.Info.String()
		}
		info.Fields = append(info.Fields, fi)
	}
	return info
}
