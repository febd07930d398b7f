package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/syssam/silo/schema/field"
)

const domainPkg = "github.com/syssam/silo/domain"

// Generator writes the helper packages of a graph.
type Generator struct {
	graph *Graph
}

// NewGenerator returns a generator for the graph.
func NewGenerator(g *Graph) *Generator {
	return &Generator{graph: g}
}

// File is a generated file. Path is relative to the target directory.
type File struct {
	Path    string
	Content []byte
}

// Generate renders and writes the files of every model in parallel.
func (g *Generator) Generate(ctx context.Context) error {
	if err := os.MkdirAll(g.graph.Target, 0o755); err != nil {
		return fmt.Errorf("gen: create output directory: %w", err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.graph.Workers)
	for _, t := range g.graph.Nodes {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files, err := g.Render(t)
			if err != nil {
				return err
			}
			for _, f := range files {
				if err := g.write(t, f); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// Render renders the files of a model.
func (g *Generator) Render(t *Type) ([]File, error) {
	if err := checkNames(t); err != nil {
		return nil, err
	}
	var files []File
	for _, r := range []struct {
		name string
		fn   func(*Type) *jen.File
	}{
		{t.Package + ".go", g.genPackage},
		{"where.go", g.genWhere},
	} {
		path := filepath.Join(t.Package, r.name)
		var buf bytes.Buffer
		if err := r.fn(t).Render(&buf); err != nil {
			return nil, &GenerationError{Model: t.Name, File: path, Cause: err}
		}
		out, err := imports.Process(path, buf.Bytes(), nil)
		if err != nil {
			return nil, &GenerationError{Model: t.Name, File: path, Cause: err}
		}
		files = append(files, File{Path: path, Content: out})
	}
	return files, nil
}

func (g *Generator) write(t *Type, f File) error {
	path := filepath.Join(g.graph.Target, f.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &GenerationError{Model: t.Name, File: f.Path, Cause: err}
	}
	if err := os.WriteFile(path, f.Content, 0o644); err != nil {
		return &GenerationError{Model: t.Name, File: f.Path, Cause: err}
	}
	return nil
}

func (g *Generator) newFile(pkg string) *jen.File {
	f := jen.NewFile(pkg)
	if g.graph.Header != "" {
		f.HeaderComment(g.graph.Header)
	}
	return f
}

// genPackage generates the model name, field names and selection types.
func (g *Generator) genPackage(t *Type) *jen.File {
	f := g.newFile(t.Package)
	f.PackageComment(fmt.Sprintf("Package %s holds the field names and typed terms of the %s model.", t.Package, t.Name))

	f.Const().DefsFunc(func(grp *jen.Group) {
		grp.Comment("Model is the name of the model.")
		grp.Id("Model").Op("=").Lit(t.Name)
		for _, fd := range t.Fields {
			grp.Commentf("%s holds the name of the %q field.", fd.Constant(), fd.Name)
			grp.Id(fd.Constant()).Op("=").Lit(fd.Name)
		}
	})
	f.Line()

	f.Comment("Columns holds the stored fields of the model.")
	f.Var().Id("Columns").Op("=").Index().String().ValuesFunc(func(grp *jen.Group) {
		for _, fd := range t.Fields {
			if !fd.Virtual {
				grp.Id(fd.Constant())
			}
		}
	})
	f.Line()

	for _, fd := range t.Fields {
		if !fd.IsEnum() {
			continue
		}
		enum := fd.EnumName()
		f.Commentf("%s is the value type of the %q field.", enum, fd.Name)
		f.Type().Id(enum).String()
		f.Line()
		f.Const().DefsFunc(func(grp *jen.Group) {
			for _, v := range fd.Options {
				grp.Commentf("%s is the %q value of the %q field.", fd.EnumConst(v), v, fd.Name)
				grp.Id(fd.EnumConst(v)).Id(enum).Op("=").Lit(v)
			}
		})
		f.Line()
		f.Commentf("%sValues returns the values of the %q field.", enum, fd.Name)
		f.Func().Id(enum + "Values").Params().Index().Id(enum).Block(
			jen.Return(jen.Index().Id(enum).ValuesFunc(func(grp *jen.Group) {
				for _, v := range fd.Options {
					grp.Id(fd.EnumConst(v))
				}
			})),
		)
		f.Line()
	}
	return f
}

// termType returns the domain type building the terms of a field, or nil
// for fields that cannot be searched.
func termType(fd *Field) *jen.Statement {
	switch fd.Kind {
	case field.KindInteger, field.KindID:
		return jen.Qual(domainPkg, "IntField")
	case field.KindFloat:
		return jen.Qual(domainPkg, "FloatField")
	case field.KindString, field.KindText:
		return jen.Qual(domainPkg, "StringField")
	case field.KindSelection:
		return jen.Qual(domainPkg, "EnumField").Types(jen.Id(fd.EnumName()))
	case field.KindDate:
		return jen.Qual(domainPkg, "DateField")
	case field.KindDatetime:
		return jen.Qual(domainPkg, "TimeField")
	case field.KindBoolean:
		return jen.Qual(domainPkg, "BoolField")
	case field.KindMany2one:
		return jen.Qual(domainPkg, "RefField")
	default:
		return nil
	}
}

// genWhere generates the typed term builders and the connectives.
func (g *Generator) genWhere(t *Type) *jen.File {
	f := g.newFile(t.Package)
	f.ImportName(domainPkg, "domain")
	f.Var().DefsFunc(func(grp *jen.Group) {
		for _, fd := range t.Fields {
			typ := termType(fd)
			if typ == nil || !fd.Searchable() {
				continue
			}
			grp.Commentf("%sField builds terms on the %q field.", fd.StructField(), fd.Name)
			grp.Id(fd.StructField() + "Field").Op("=").Add(typ).Call(jen.Id(fd.Constant()))
		}
	})
	f.Line()

	for _, c := range []struct{ name, fn, doc string }{
		{"And", "AllOf", "And groups the parts with the AND operator between them."},
		{"Or", "AnyOf", "Or groups the parts with the OR operator between them."},
	} {
		f.Comment(c.doc)
		f.Func().Id(c.name).Params(
			jen.Id("parts").Op("...").Qual(domainPkg, "Part"),
		).Qual(domainPkg, "Domain").Block(
			jen.Return(jen.Qual(domainPkg, c.fn).Call(jen.Id("parts").Op("..."))),
		)
		f.Line()
	}
	f.Comment("Not negates the part.")
	f.Func().Id("Not").Params(
		jen.Id("p").Qual(domainPkg, "Part"),
	).Qual(domainPkg, "Domain").Block(
		jen.Return(jen.Qual(domainPkg, "Negate").Call(jen.Id("p"))),
	)
	return f
}

// checkNames reports identifiers that would be declared twice in the
// package of the model.
func checkNames(t *Type) error {
	seen := map[string]string{
		"Model": "model name", "Columns": "columns",
		"And": "connective", "Or": "connective", "Not": "connective",
	}
	declare := func(id, what string) error {
		if prev, ok := seen[id]; ok {
			return &GenerationError{Model: t.Name, Cause: fmt.Errorf("identifier %s of %s conflicts with %s", id, what, prev)}
		}
		seen[id] = what
		return nil
	}
	for _, fd := range t.Fields {
		what := fmt.Sprintf("field %q", fd.Name)
		if err := declare(fd.Constant(), what); err != nil {
			return err
		}
		if termType(fd) != nil && fd.Searchable() {
			if err := declare(fd.StructField()+"Field", what); err != nil {
				return err
			}
		}
		if !fd.IsEnum() {
			continue
		}
		if err := declare(fd.EnumName(), what); err != nil {
			return err
		}
		if err := declare(fd.EnumName()+"Values", what); err != nil {
			return err
		}
		for _, v := range fd.Options {
			if err := declare(fd.EnumConst(v), fmt.Sprintf("value %q of field %q", v, fd.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}
