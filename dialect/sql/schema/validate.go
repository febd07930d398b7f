package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/silo/dialect/sql"
	"github.com/syssam/silo/schema/field"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking reports whether applying the change loses data.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			if w.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn   bool
	allowDropTable    bool
	allowModifyColumn bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowModifyColumn allows column type changes without error. A type change
// is applied as a drop followed by an add, and loses the column data.
func AllowModifyColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowModifyColumn = true
	}
}

// ValidateDiff validates the difference between current and desired schema.
// It returns validation errors for breaking changes and warnings for potentially
// dangerous operations.
//
// Example:
//
//	result := schema.ValidateDiff(current, desired)
//	if result.HasBreakingChanges() {
//	    log.Fatal("Breaking changes detected:", result)
//	}
//	if result.HasWarnings() {
//	    log.Println("Warnings:", result)
//	}
func ValidateDiff(current, desired []*Table, opts ...ValidateOption) *ValidationResult {
	return ValidateChanges(DiffTables(current, desired), opts...)
}

// ValidateChanges classifies a list of changes into errors and warnings.
func ValidateChanges(changes Changes, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	add := func(allowed bool, err *ValidationError) {
		if allowed {
			result.Warnings = append(result.Warnings, err)
		} else {
			result.Errors = append(result.Errors, err)
		}
	}
	for _, c := range changes {
		switch c.Kind {
		case DropTable:
			add(cfg.allowDropTable, &ValidationError{
				Table:    c.Table,
				Message:  "table will be dropped",
				Breaking: true,
			})
		case DropColumn:
			add(cfg.allowDropColumn, &ValidationError{
				Table:    c.Table,
				Column:   c.Column.Name,
				Message:  "column will be dropped",
				Breaking: true,
			})
		case ModifyColumn:
			add(cfg.allowModifyColumn, &ValidationError{
				Table:    c.Table,
				Column:   c.Column.Name,
				Message:  fmt.Sprintf("column type changing from %s to %s drops its data", c.From.Type, c.Column.Type),
				Breaking: true,
			})
		case AddColumn:
			if c.Column.Has(field.NotNull) {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   c.Table,
					Column:  c.Column.Name,
					Message: "new NOT NULL column may fail if table has data",
				})
			}
			if c.Column.Has(field.Unique) {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   c.Table,
					Column:  c.Column.Name,
					Message: "adding UNIQUE constraint may fail if duplicate values exist",
				})
			}
		}
	}
	return result
}

// ValidateTable validates a single table definition.
func ValidateTable(t *Table) *ValidationResult {
	result := &ValidationResult{}
	if !sql.IsValidIdentifier(t.Name) {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   t.Name,
			Message: "invalid table name",
		})
	}
	if len(t.Columns) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   t.Name,
			Message: "table has no columns",
		})
	}
	if len(t.PrimaryKey()) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   t.Name,
			Message: "table has no primary key",
		})
	}

	colNames := make(map[string]bool)
	for _, c := range t.Columns {
		switch {
		case colNames[c.Name]:
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "duplicate column name",
			})
		case !sql.IsValidIdentifier(c.Name):
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "invalid column name",
			})
		case !c.Type.Type.Valid():
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "invalid column type",
			})
		}
		colNames[c.Name] = true
	}

	for _, fk := range t.ForeignKeys() {
		if !sql.IsValidIdentifier(fk.RefTable) || !sql.IsValidIdentifier(fk.RefColumn) {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  fk.Column,
				Message: fmt.Sprintf("invalid foreign key reference %s(%s)", fk.RefTable, fk.RefColumn),
			})
		}
	}
	return result
}

// ValidateSchema validates all tables in a schema. Foreign keys to tables
// outside of the schema are reported as warnings, since the target may
// already exist in the database.
func ValidateSchema(tables []*Table) *ValidationResult {
	result := &ValidationResult{}

	tableNames := make(map[string]bool)
	for _, t := range tables {
		if tableNames[t.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: "duplicate table name",
			})
		}
		tableNames[t.Name] = true

		tableResult := ValidateTable(t)
		result.Errors = append(result.Errors, tableResult.Errors...)
		result.Warnings = append(result.Warnings, tableResult.Warnings...)
	}

	for _, t := range tables {
		for _, fk := range t.ForeignKeys() {
			if !tableNames[fk.RefTable] {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   t.Name,
					Column:  fk.Column,
					Message: fmt.Sprintf("foreign key references undeclared table %q", fk.RefTable),
				})
			}
		}
	}
	return result
}

// Err returns the validation errors as a single error, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("dialect/sql/schema: invalid schema: %s", strings.Join(msgs, "; "))
}
