package row

import (
	"strings"

	"github.com/memrel/memrel/internal/schema"
)

// Dynamic is a schema-plus-dictionary row, fed by the metadata-table
// bootstrap: tables built from a JSON column descriptor rather than a
// compiled Go struct share the exact same Table[T] operations via this Row
// implementation, with T = *Dynamic.
type Dynamic struct {
	Schema *schema.Schema
	Values map[string]any // keyed by lowercased column name
}

// NewDynamic builds an empty Dynamic row for the given schema.
func NewDynamic(s *schema.Schema) *Dynamic {
	return &Dynamic{Schema: s, Values: make(map[string]any, len(s.Columns))}
}

// NewDynamicFromMap builds a Dynamic row from a column-name-keyed map,
// normalizing keys to the schema's case-insensitive lookup form. Used by
// the SQL executor and the snapshot codec, neither of which knows a
// caller's Go struct type.
func NewDynamicFromMap(s *schema.Schema, values map[string]any) *Dynamic {
	d := NewDynamic(s)
	for k, v := range values {
		d.Values[key(k)] = v
	}
	return d
}

// ToMap renders a Dynamic row as a map keyed by each column's canonical
// (schema-declared) name.
func (d *Dynamic) ToMap() map[string]any {
	out := make(map[string]any, len(d.Schema.Columns))
	for _, col := range d.Schema.Columns {
		if v, ok := d.Values[key(col.Name)]; ok {
			out[col.Name] = v
		} else {
			out[col.Name] = nil
		}
	}
	return out
}

func key(column string) string { return strings.ToLower(strings.TrimSpace(column)) }

func (d *Dynamic) Get(column string) (any, bool) {
	v, ok := d.Values[key(column)]
	return v, ok
}

func (d *Dynamic) Set(column string, value any) error {
	d.Values[key(column)] = value
	return nil
}

func (d *Dynamic) Clone() Row {
	cp := make(map[string]any, len(d.Values))
	for k, v := range d.Values {
		cp[k] = v
	}
	return &Dynamic{Schema: d.Schema, Values: cp}
}
