package schema

import (
	"fmt"
	"slices"
	"strings"
)

// ChangeKind describes the kind of a schema change. Kinds are flags and
// can be combined.
type ChangeKind uint

// List of change kinds.
const (
	NoChange  ChangeKind = 0
	AddTable  ChangeKind = 1 << (iota - 1)
	DropTable
	AddColumn
	DropColumn
	ModifyColumn
)

// Is reports whether k contains the given change kind.
func (k ChangeKind) Is(c ChangeKind) bool {
	return k == c || k&c != 0
}

// String returns the kind in lower words, e.g. "add table".
func (k ChangeKind) String() string {
	var out []string
	for _, n := range []struct {
		k ChangeKind
		s string
	}{
		{AddTable, "add table"},
		{DropTable, "drop table"},
		{AddColumn, "add column"},
		{DropColumn, "drop column"},
		{ModifyColumn, "modify column"},
	} {
		if k&n.k != 0 {
			out = append(out, n.s)
		}
	}
	if len(out) == 0 {
		return "no change"
	}
	return strings.Join(out, "|")
}

// Change is a single structural difference between the live database and
// the declared tables.
type Change struct {
	Kind  ChangeKind
	Table string
	// Column is the added or dropped column, or the desired column of a
	// modification.
	Column *Column
	// From is the live column of a modification.
	From *Column
}

// String returns a human readable form of the change.
func (c Change) String() string {
	switch c.Kind {
	case AddTable, DropTable:
		return fmt.Sprintf("%s %q", c.Kind, c.Table)
	case ModifyColumn:
		return fmt.Sprintf("%s %q.%q: %s -> %s", c.Kind, c.Table, c.Column.Name, c.From.Type, c.Column.Type)
	default:
		return fmt.Sprintf("%s %q.%q %s", c.Kind, c.Table, c.Column.Name, c.Column.Type)
	}
}

// Changes is a list of changes.
type Changes []Change

// Kinds returns the union of the change kinds.
func (cs Changes) Kinds() ChangeKind {
	var k ChangeKind
	for _, c := range cs {
		k |= c.Kind
	}
	return k
}

// Filter returns the changes that are of the given kinds.
func (cs Changes) Filter(k ChangeKind) Changes {
	var out Changes
	for _, c := range cs {
		if c.Kind.Is(k) {
			out = append(out, c)
		}
	}
	return out
}

// Strings returns the string form of every change.
func (cs Changes) Strings() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// DiffTable returns the changes needed to turn current into desired. A nil
// current table yields a single AddTable change. Columns are matched by
// name and type only; a column whose type changed is a ModifyColumn.
func DiffTable(current, desired *Table) Changes {
	if current == nil {
		return Changes{{Kind: AddTable, Table: desired.Name}}
	}
	var changes Changes
	for _, c := range current.Columns {
		if _, ok := desired.Column(c.Name); !ok {
			changes = append(changes, Change{Kind: DropColumn, Table: desired.Name, Column: c})
		}
	}
	for _, c := range desired.Columns {
		from, ok := current.Column(c.Name)
		switch {
		case !ok:
			changes = append(changes, Change{Kind: AddColumn, Table: desired.Name, Column: c})
		case !from.Type.Equal(c.Type):
			changes = append(changes, Change{Kind: ModifyColumn, Table: desired.Name, Column: c, From: from})
		}
	}
	return changes
}

// DiffTables returns the changes needed to turn the current tables into
// the desired ones. Current tables that are not desired are dropped.
// Changes are ordered by table name.
func DiffTables(current, desired []*Table) Changes {
	byName := make(map[string]*Table, len(current))
	for _, t := range current {
		byName[t.Name] = t
	}
	var changes Changes
	seen := make(map[string]bool, len(desired))
	for _, t := range sortedTables(desired) {
		seen[t.Name] = true
		changes = append(changes, DiffTable(byName[t.Name], t)...)
	}
	for _, t := range sortedTables(current) {
		if !seen[t.Name] {
			changes = append(changes, Change{Kind: DropTable, Table: t.Name})
		}
	}
	return changes
}

func sortedTables(tables []*Table) []*Table {
	out := slices.Clone(tables)
	slices.SortStableFunc(out, func(a, b *Table) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// dependencyOrder orders tables so that foreign key targets precede the
// tables referencing them. References to undeclared tables are ignored
// and cycles are broken at the first table visited.
func dependencyOrder(tables []*Table) []*Table {
	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	var (
		out     = make([]*Table, 0, len(tables))
		visited = make(map[string]bool, len(tables))
		visit   func(*Table)
	)
	visit = func(t *Table) {
		if visited[t.Name] {
			return
		}
		visited[t.Name] = true
		for _, fk := range t.ForeignKeys() {
			if ref, ok := byName[fk.RefTable]; ok {
				visit(ref)
			}
		}
		out = append(out, t)
	}
	for _, t := range tables {
		visit(t)
	}
	return out
}
