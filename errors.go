package silo

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an engine error for programmatic handling.
type Kind uint8

// Error kinds.
const (
	// KindUnknown is reported by KindOf for errors that did not originate in the engine.
	KindUnknown Kind = iota
	// KindDeclaration covers invalid or contradictory model declarations,
	// unknown inheritance targets and inheritance cycles. Raised by
	// register/resolve before any database I/O.
	KindDeclaration
	// KindPolicy covers schema policy violations (checkOnly, safe). No
	// mutation has happened when such an error is returned.
	KindPolicy
	// KindDomain covers domain syntax errors: unbalanced parentheses,
	// leftover tokens, unknown operators.
	KindDomain
	// KindBackend wraps errors returned by the database.
	KindBackend
	// KindValidation covers value pre-checks done before reaching the
	// database, e.g. required fields set to nil.
	KindValidation
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindDeclaration:
		return "declaration"
	case KindPolicy:
		return "policy"
	case KindDomain:
		return "domain"
	case KindBackend:
		return "backend"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Sentinel errors. Every *Error matches the sentinel of its kind with errors.Is.
var (
	// ErrDeclaration is matched by all declaration errors.
	ErrDeclaration = errors.New("silo: invalid model declaration")

	// ErrCycle is matched by circular inheritance errors (in addition to ErrDeclaration).
	ErrCycle = errors.New("silo: circular dependency in model inheritance")

	// ErrPolicy is matched by all schema policy violations.
	ErrPolicy = errors.New("silo: schema policy violation")

	// ErrDomain is matched by all domain syntax errors.
	ErrDomain = errors.New("silo: invalid domain")

	// ErrBackend is matched by all wrapped database errors.
	ErrBackend = errors.New("silo: backend error")

	// ErrValidation is matched by all value validation errors.
	ErrValidation = errors.New("silo: validation failed")

	// ErrNotFound is returned when browsed records do not exist.
	ErrNotFound = errors.New("silo: record not found")

	// ErrNotSingular is returned when an operation expecting exactly one
	// record gets zero or many.
	ErrNotSingular = errors.New("silo: record not singular")
)

func (k Kind) sentinel() error {
	switch k {
	case KindDeclaration:
		return ErrDeclaration
	case KindPolicy:
		return ErrPolicy
	case KindDomain:
		return ErrDomain
	case KindBackend:
		return ErrBackend
	case KindValidation:
		return ErrValidation
	default:
		return nil
	}
}

// Error is the single error type returned by the engine. The structured
// fields carry enough detail to pinpoint the cause without verbose logging.
type Error struct {
	Kind    Kind
	Op      string   // Operation, e.g. "register", "ensure_table", "compile".
	Models  []string // Models involved (declaration errors).
	Table   string   // Table involved (policy errors).
	Columns []string // Columns that would change (policy errors).
	Diffs   []string // Structural diffs (safe-mode policy errors).
	Field   string   // Field involved (validation errors).
	Msg     string
	Err     error // Underlying error, if any.

	sub error // Optional sub-sentinel, e.g. ErrCycle.
}

// Error returns the error string.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("silo: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Table != "" {
		fmt.Fprintf(&b, "table %q: ", e.Table)
	}
	b.WriteString(e.Msg)
	if len(e.Columns) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Columns, ", "))
	}
	if len(e.Diffs) > 0 {
		fmt.Fprintf(&b, " - diffs: [%s]", strings.Join(e.Diffs, "; "))
	}
	if len(e.Models) > 0 {
		fmt.Fprintf(&b, " (models: %s)", strings.Join(e.Models, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target is the sentinel of the error kind,
// or its sub-sentinel (e.g. ErrCycle).
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	return target == e.Kind.sentinel() || (e.sub != nil && target == e.sub)
}

// NewDeclarationError returns a declaration error for the given models.
func NewDeclarationError(op, msg string, models ...string) *Error {
	return &Error{Kind: KindDeclaration, Op: op, Msg: msg, Models: models}
}

// NewCycleError returns a declaration error for an inheritance cycle
// discovered while resolving the model name. Involved models are reported
// in the given order.
func NewCycleError(name string, involved []string) *Error {
	return &Error{
		Kind:   KindDeclaration,
		Op:     "resolve",
		Msg:    fmt.Sprintf("circular dependency in model inheritance: %q", name),
		Models: involved,
		sub:    ErrCycle,
	}
}

// NewPolicyError returns a policy error for the given table and the
// columns that would need to change.
func NewPolicyError(table, msg string, columns []string) *Error {
	return &Error{Kind: KindPolicy, Op: "ensure_table", Table: table, Msg: msg, Columns: columns}
}

// NewDiffPolicyError returns a policy error for a structural diff the
// active policy is not allowed to apply.
func NewDiffPolicyError(msg string, diffs []string) *Error {
	return &Error{Kind: KindPolicy, Op: "migrate", Msg: msg, Diffs: diffs}
}

// NewDomainError returns a domain syntax error.
func NewDomainError(op, msg string) *Error {
	return &Error{Kind: KindDomain, Op: op, Msg: msg}
}

// NewBackendError wraps a database error. The original error stays
// reachable through errors.As/errors.Is.
func NewBackendError(op, table string, err error) *Error {
	return &Error{Kind: KindBackend, Op: op, Table: table, Msg: "database error", Err: err}
}

// NewValidationError returns a validation error for a model field.
func NewValidationError(model, field, msg string) *Error {
	return &Error{Kind: KindValidation, Op: "validate", Models: nonEmpty(model), Field: field, Msg: msg}
}

// NewNotFoundError returns an error for records of the model that do not exist.
func NewNotFoundError(model string, ids ...int64) *Error {
	msg := "record not found"
	if len(ids) > 0 {
		msg = fmt.Sprintf("record not found (ids=%v)", ids)
	}
	return &Error{Kind: KindValidation, Op: "browse", Models: nonEmpty(model), Msg: msg, sub: ErrNotFound}
}

// NewNotSingularError returns an error for a recordset of the model that
// does not hold exactly one record.
func NewNotSingularError(model string, count int) *Error {
	return &Error{
		Kind:   KindValidation,
		Op:     "ensure_one",
		Models: nonEmpty(model),
		Msg:    fmt.Sprintf("expected singleton, got %d records", count),
		sub:    ErrNotSingular,
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// KindOf returns the kind of the first *Error in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsDeclaration returns true if the error is a declaration error.
func IsDeclaration(err error) bool {
	return err != nil && errors.Is(err, ErrDeclaration)
}

// IsCycle returns true if the error is an inheritance cycle error.
func IsCycle(err error) bool {
	return err != nil && errors.Is(err, ErrCycle)
}

// IsPolicy returns true if the error is a schema policy violation.
func IsPolicy(err error) bool {
	return err != nil && errors.Is(err, ErrPolicy)
}

// IsDomain returns true if the error is a domain syntax error.
func IsDomain(err error) bool {
	return err != nil && errors.Is(err, ErrDomain)
}

// IsBackend returns true if the error wraps a database error.
func IsBackend(err error) bool {
	return err != nil && errors.Is(err, ErrBackend)
}

// IsValidation returns true if the error is a validation error.
func IsValidation(err error) bool {
	return err != nil && errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error reports missing records.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// IsNotSingular returns true if the error reports a non-singleton recordset.
func IsNotSingular(err error) bool {
	return err != nil && errors.Is(err, ErrNotSingular)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "silo: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("silo: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
