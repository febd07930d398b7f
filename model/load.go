package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/syssam/silo/schema/field"
)

// Extensions lists the declaration file extensions read by LoadDir.
var Extensions = []string{".yaml", ".yml", ".json", ".cue"}

// File is the document form of a declaration file:
//
//	models:
//	  - name: res_partner
//	    inherits: [mail_thread]
//	    fields:
//	      - {name: name, kind: string, size: 64, required: true}
//	      - {name: state, kind: selection, options: [draft, done]}
//	  - extends: res_partner
//	    fields:
//	      - {name: parent_id, kind: many2one, target: res_partner}
type File struct {
	Models []DeclarationSpec `json:"models" yaml:"models"`
}

// DeclarationSpec is the document form of a Declaration.
type DeclarationSpec struct {
	Name     string      `json:"name,omitempty" yaml:"name,omitempty"`
	Extends  string      `json:"extends,omitempty" yaml:"extends,omitempty"`
	Inherits []string    `json:"inherits,omitempty" yaml:"inherits,omitempty"`
	Abstract bool        `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Fields   []FieldSpec `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// FieldSpec is the document form of a field.
type FieldSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Kind     string   `json:"kind" yaml:"kind"`
	Size     int      `json:"size,omitempty" yaml:"size,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Unique   bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Target   string   `json:"target,omitempty" yaml:"target,omitempty"`
	Inverse  string   `json:"inverse,omitempty" yaml:"inverse,omitempty"`
}

// Field builds the field declared by s.
func (s FieldSpec) Field() (field.Field, error) {
	switch s.Kind {
	case field.KindInteger:
		f := field.Integer(s.Name)
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindFloat:
		f := field.Float(s.Name)
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindString, "":
		f := field.String(s.Name)
		if s.Size > 0 {
			f.Size(s.Size)
		}
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindText:
		f := field.Text(s.Name)
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindSelection:
		if len(s.Options) == 0 {
			return nil, fmt.Errorf("selection field %q has no options", s.Name)
		}
		f := field.Selection(s.Name, s.Options...)
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindDate:
		f := field.Date(s.Name)
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindDatetime:
		f := field.Datetime(s.Name)
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindBoolean:
		f := field.Boolean(s.Name)
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindID:
		return field.ID(), nil
	case field.KindMany2one:
		if s.Target == "" {
			return nil, fmt.Errorf("many2one field %q has no target", s.Name)
		}
		f := field.Many2one(s.Name, s.Target)
		applyOptions(f.Descriptor(), s)
		return f, nil
	case field.KindOne2many:
		if s.Target == "" || s.Inverse == "" {
			return nil, fmt.Errorf("one2many field %q needs a target and an inverse", s.Name)
		}
		return field.One2many(s.Name, s.Target, s.Inverse), nil
	default:
		return nil, fmt.Errorf("field %q has unknown kind %q", s.Name, s.Kind)
	}
}

func applyOptions(d *field.Descriptor, s FieldSpec) {
	d.Required = d.Required || s.Required
	d.Unique = d.Unique || s.Unique
}

// Declaration builds the model declaration of s.
func (s DeclarationSpec) Declaration() (*Declaration, error) {
	d := &Declaration{
		Name:     s.Name,
		Extends:  s.Extends,
		Inherits: s.Inherits,
		Abstract: s.Abstract,
	}
	for _, fs := range s.Fields {
		f, err := fs.Field()
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", d.model(), err)
		}
		d.Fields = append(d.Fields, f)
	}
	return d, nil
}

// Parse decodes declarations from data in the format given by the file
// extension.
func Parse(ext string, data []byte) ([]*Declaration, error) {
	var file File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, err
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, err
		}
	case ".cue":
		v := cuecontext.New().CompileBytes(data)
		if err := v.Err(); err != nil {
			return nil, err
		}
		if err := v.LookupPath(cue.ParsePath("models")).Decode(&file.Models); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported declaration file extension %q", ext)
	}
	decls := make([]*Declaration, 0, len(file.Models))
	for _, s := range file.Models {
		d, err := s.Declaration()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

// LoadFile reads the declarations of a file.
func LoadFile(path string) ([]*Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decls, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("model: load %s: %w", path, err)
	}
	return decls, nil
}

// LoadDir reads the declarations of every declaration file under dir,
// walking it in lexical order.
func LoadDir(dir string) ([]*Declaration, error) {
	var decls []*Declaration
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		ds, err := LoadFile(path)
		if err != nil {
			return err
		}
		decls = append(decls, ds...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decls, nil
}

// Load reads declarations from files and directories.
func Load(paths ...string) ([]*Declaration, error) {
	var decls []*Declaration
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		var ds []*Declaration
		if info.IsDir() {
			ds, err = LoadDir(p)
		} else {
			ds, err = LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
		decls = append(decls, ds...)
	}
	return decls, nil
}
