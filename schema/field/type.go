package field

import (
	"fmt"
	"strings"
)

// A Type represents the logical type of a column, independent of any
// database dialect.
type Type uint8

// List of field types.
const (
	TypeInvalid Type = iota
	TypeInt
	TypeFloat
	TypeString // fixed-length string, TypeInfo.Size holds the length
	TypeText
	TypeDate
	TypeTime // timestamp
	TypeBool
	TypeOther // live type unknown to the engine, TypeInfo.Raw holds its name
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeText:    "text",
	TypeDate:    "date",
	TypeTime:    "time",
	TypeBool:    "bool",
	TypeOther:   "other",
}

// String returns the string representation of a type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// TypeInfo holds the logical type of a column with its parameters.
type TypeInfo struct {
	Type Type
	Size int    // length of TypeString
	Raw  string // name of a TypeOther as reported by the database
}

// Constructors of the logical types.
var (
	IntType   = TypeInfo{Type: TypeInt}
	FloatType = TypeInfo{Type: TypeFloat}
	TextType  = TypeInfo{Type: TypeText}
	DateType  = TypeInfo{Type: TypeDate}
	TimeType  = TypeInfo{Type: TypeTime}
	BoolType  = TypeInfo{Type: TypeBool}
)

// StringType returns the fixed-length string type of the given size.
func StringType(size int) TypeInfo {
	return TypeInfo{Type: TypeString, Size: size}
}

// OtherType returns the type of a live column the engine does not model.
func OtherType(raw string) TypeInfo {
	return TypeInfo{Type: TypeOther, Raw: raw}
}

// Equal reports whether the two types have the same tag and parameters.
func (t TypeInfo) Equal(o TypeInfo) bool {
	if t.Type != o.Type {
		return false
	}
	switch t.Type {
	case TypeString:
		return t.Size == o.Size
	case TypeOther:
		return strings.EqualFold(t.Raw, o.Raw)
	default:
		return true
	}
}

// String returns the ANSI name of the type, e.g. VARCHAR(255).
func (t TypeInfo) String() string {
	switch t.Type {
	case TypeInt:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeString:
		return fmt.Sprintf("VARCHAR(%d)", t.Size)
	case TypeText:
		return "TEXT"
	case TypeDate:
		return "DATE"
	case TypeTime:
		return "TIMESTAMP"
	case TypeBool:
		return "BOOLEAN"
	case TypeOther:
		return strings.ToUpper(t.Raw)
	default:
		return "INVALID"
	}
}

// ConstraintKind is the kind of a column constraint.
type ConstraintKind uint8

// Constraint kinds.
const (
	NotNull ConstraintKind = iota + 1
	Unique
	PrimaryKey
	ForeignKey
)

// String returns the SQL keyword of the constraint kind.
func (k ConstraintKind) String() string {
	switch k {
	case NotNull:
		return "NOT NULL"
	case Unique:
		return "UNIQUE"
	case PrimaryKey:
		return "PRIMARY KEY"
	case ForeignKey:
		return "FOREIGN KEY"
	default:
		return "INVALID"
	}
}

// Constraint is a constraint attached to a column. RefTable and RefColumn
// are set for foreign keys only.
type Constraint struct {
	Kind      ConstraintKind
	RefTable  string
	RefColumn string
}

// String returns a readable form of the constraint.
func (c Constraint) String() string {
	if c.Kind == ForeignKey {
		return fmt.Sprintf("FOREIGN KEY -> %s(%s)", c.RefTable, c.RefColumn)
	}
	return c.Kind.String()
}
