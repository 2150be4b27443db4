// Package schema builds and caches the per-row-type column descriptor used
// by the table engine: which field is the primary key, whether it
// auto-increments, which fields are required, and which carry a foreign key
// to another row type. Descriptors are derived once per Go type via struct
// tag reflection and cached per Go type and tag so reflection never runs on the
// hot insert/update/delete path.
package schema

import "github.com/shopspring/decimal"

// LogicalType is the column's domain type, independent of its Go
// representation.
type LogicalType uint8

const (
	Integer LogicalType = iota
	Long
	Decimal
	Bool
	DateTime
	String
	UUID
	Bytes
)

func (t LogicalType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Long:
		return "long"
	case Decimal:
		return "decimal"
	case Bool:
		return "bool"
	case DateTime:
		return "date/time"
	case String:
		return "string"
	case UUID:
		return "uuid"
	case Bytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Column is one field of a row type.
type Column struct {
	Name          string
	FieldName     string // Go struct field name, for reflective get/set
	Type          LogicalType
	PrimaryKey    bool
	AutoIncrement bool
	Required      bool
	ForeignKey    bool
	References    string // row type tag this column references, if ForeignKey
}

// zeroDecimal is the zero (unset) decimal.Decimal value.
var zeroDecimal = decimal.Decimal{}
