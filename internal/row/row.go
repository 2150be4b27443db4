// Package row defines the abstract row interface shared by the typed and
// dynamic table paths: get a column by name, set a column by name, clone.
// Table[T] reads and writes rows exclusively through this interface so its
// insert/update/delete algorithms do not care whether T is a generated
// struct or a metadata-driven dynamic row.
package row

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// Row is the storage-level representation every table keeps internally.
// Dynamic is the sole implementation; StructToDynamic/DynamicToStruct (in
// typed.go) convert at the boundary of a generic Table[T] whose T is a
// caller-defined struct, so a metadata-driven dynamic table and a compiled
// struct table share the exact same insert/update/delete code path.
type Row interface {
	Get(column string) (any, bool)
	Set(column string, value any) error
	Clone() Row
}

// IsEmpty reports whether v is the "absent" value for a required-field
// check: nil, an empty string, a zero UUID, or a zero decimal. Numeric and
// bool columns are never "empty" in this sense.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case string:
		return x == ""
	case decimal.Decimal:
		return x.IsZero() && x.Exponent() == 0
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Array && rv.Type().Name() == "UUID" {
			return rv.IsZero()
		}
		return false
	}
}

// Resolve looks up a column on a Row, resolving qualified names the caller
// has already stripped down to the bare column part.
func Resolve(r Row, column string) (any, bool) {
	return r.Get(column)
}
