package model

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/syssam/silo"
	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/dialect/sql/schema"
	"github.com/syssam/silo/schema/field"
)

// Registry holds model declarations and their resolved form.
// It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	// raw holds the contributor list of every registered model.
	raw map[string][]contributor
	// base holds the declaration introducing every model.
	base     map[string]*Declaration
	order    []string
	resolved map[string]*Resolved
	logger   *slog.Logger
}

// Option allows configuring the Registry using functional arguments.
type Option func(*Registry)

// WithLogger sets the logger of the registry.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		raw:    make(map[string][]contributor),
		base:   make(map[string]*Declaration),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds declarations to the registry, stopping at the first one
// that is rejected. Registering drops the resolved state.
func (r *Registry) Register(decls ...*Declaration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range decls {
		if err := r.register(d); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(decls ...*Declaration) {
	if err := r.Register(decls...); err != nil {
		panic(err)
	}
}

func (r *Registry) register(d *Declaration) error {
	if d == nil {
		return silo.NewDeclarationError("register", "nil declaration")
	}
	if d.Name == "" && d.Extends == "" {
		return silo.NewDeclarationError("register", "cannot register a model without name or extends")
	}
	if d.Extends != "" && d.Name != "" && d.Name != d.Extends {
		return silo.NewDeclarationError("register",
			fmt.Sprintf("name %q must be equal to extends %q", d.Name, d.Extends), d.Name, d.Extends)
	}
	name := d.model()
	if !sql.IsValidIdentifier(name) {
		return silo.NewDeclarationError("register", fmt.Sprintf("invalid model name %q", name), name)
	}
	if err := checkFields(name, d.Fields); err != nil {
		return err
	}
	entry := make([]contributor, 0, len(d.Inherits)+1)
	for _, ref := range d.Inherits {
		entry = append(entry, contributor{ref: ref})
	}
	entry = append(entry, contributor{decl: d})
	_, exists := r.raw[name]
	switch {
	case d.Extends != "" && !exists:
		return silo.NewDeclarationError("register",
			fmt.Sprintf("cannot extend model %q: model does not exist", name), name)
	case d.Extends != "":
		r.raw[name] = append(r.raw[name], entry...)
	case exists:
		return silo.NewDeclarationError("register", fmt.Sprintf("cannot register model %q twice", name), name)
	default:
		r.raw[name] = entry
		r.base[name] = d
		r.order = append(r.order, name)
	}
	r.resolved = nil
	r.logger.Debug("model registered", "model", name, "extends", d.Extends != "", "inherits", d.Inherits)
	return nil
}

// checkFields validates the fields of a single declaration.
func checkFields(model string, fields []field.Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == nil || f.Descriptor() == nil {
			return silo.NewDeclarationError("register", "nil field", model)
		}
		d := f.Descriptor()
		switch {
		case !sql.IsValidIdentifier(d.Name):
			return silo.NewDeclarationError("register", fmt.Sprintf("invalid field name %q", d.Name), model)
		case seen[d.Name]:
			return silo.NewDeclarationError("register", fmt.Sprintf("field %q declared twice", d.Name), model)
		case (d.Kind == field.KindMany2one || d.Kind == field.KindOne2many) && d.Target == "":
			return silo.NewDeclarationError("register", fmt.Sprintf("relational field %q has no target", d.Name), model)
		}
		seen[d.Name] = true
	}
	return nil
}

// Resolve resolves every registered model. On error the previous
// resolved state is kept.
func (r *Registry) Resolve() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	done := make(map[string]*Resolved, len(r.raw))
	for _, name := range slices.Sorted(maps.Keys(r.raw)) {
		if _, err := r.resolve(name, done, make(map[string]bool)); err != nil {
			return err
		}
	}
	if err := checkRelations(done); err != nil {
		return err
	}
	r.resolved = done
	return nil
}

// resolve resolves the named model, memoizing the result in done.
// resolving holds the models whose resolution is in progress.
func (r *Registry) resolve(name string, done map[string]*Resolved, resolving map[string]bool) (*Resolved, error) {
	if m, ok := done[name]; ok {
		return m, nil
	}
	if resolving[name] {
		return nil, silo.NewCycleError(name, slices.Sorted(maps.Keys(resolving)))
	}
	resolving[name] = true
	defer delete(resolving, name)

	raw := r.raw[name]
	list := make([]contributor, len(raw))
	for i, c := range raw {
		if c.decl != nil {
			list[i] = c
			continue
		}
		if _, ok := r.raw[c.ref]; !ok {
			return nil, silo.NewDeclarationError("resolve",
				fmt.Sprintf("model %q inherits unregistered model %q", name, c.ref), name, c.ref)
		}
		res, err := r.resolve(c.ref, done, resolving)
		if err != nil {
			return nil, err
		}
		list[i] = contributor{res: res}
	}
	m := build(name, r.base[name].Abstract, dedupe(list))
	done[name] = m
	r.logger.Debug("model resolved", "model", name, "lineage", m.lineage, "fields", len(m.fields))
	return m, nil
}

// checkRelations validates the targets of relational fields.
func checkRelations(models map[string]*Resolved) error {
	for _, name := range slices.Sorted(maps.Keys(models)) {
		m := models[name]
		for _, f := range m.fields {
			d := f.Descriptor()
			if d.Kind != field.KindMany2one && d.Kind != field.KindOne2many {
				continue
			}
			target, ok := models[d.Target]
			if !ok {
				return silo.NewDeclarationError("resolve",
					fmt.Sprintf("field %q references unknown model %q", d.Name, d.Target), name)
			}
			if d.Kind == field.KindMany2one && target.abstract && !m.abstract {
				return silo.NewDeclarationError("resolve",
					fmt.Sprintf("field %q references abstract model %q", d.Name, d.Target), name)
			}
			if d.Kind != field.KindOne2many {
				continue
			}
			inv, ok := target.Field(d.Inverse)
			if !ok || inv.Descriptor().Kind != field.KindMany2one {
				return silo.NewDeclarationError("resolve",
					fmt.Sprintf("field %q: %q is not a many2one field of %q", d.Name, d.Inverse, d.Target), name)
			}
		}
	}
	return nil
}

// Resolved reports whether the registry holds a resolved state.
func (r *Registry) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved != nil
}

// Get returns the named resolved model.
func (r *Registry) Get(name string) (*Resolved, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.resolved == nil {
		return nil, silo.NewDeclarationError("get", "registry is not resolved")
	}
	m, ok := r.resolved[name]
	if !ok {
		return nil, silo.NewDeclarationError("get", fmt.Sprintf("model %q is not registered", name), name)
	}
	return m, nil
}

// Models returns the resolved models sorted by name, or nil if the
// registry is not resolved.
func (r *Registry) Models() []*Resolved {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.resolved == nil {
		return nil
	}
	models := make([]*Resolved, 0, len(r.resolved))
	for _, name := range slices.Sorted(maps.Keys(r.resolved)) {
		models = append(models, r.resolved[name])
	}
	return models
}

// Names returns the registered model names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Tables returns the tables of the resolved non-abstract models, sorted
// by name.
func (r *Registry) Tables() ([]*schema.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.resolved == nil {
		return nil, silo.NewDeclarationError("tables", "registry is not resolved")
	}
	var tables []*schema.Table
	for _, name := range slices.Sorted(maps.Keys(r.resolved)) {
		if m := r.resolved[name]; !m.abstract {
			tables = append(tables, m.Table())
		}
	}
	return tables, nil
}

// Reset drops the resolved state. Registrations are kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = nil
}

// ResetFull drops registrations and resolved state.
func (r *Registry) ResetFull() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = make(map[string][]contributor)
	r.base = make(map[string]*Declaration)
	r.order = nil
	r.resolved = nil
}
