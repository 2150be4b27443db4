package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/memrel/memrel/internal/kernelerr"
)

// Schema is the immutable descriptor for one row type. Once a row type has
// been observed by any table, its Schema must not change.
type Schema struct {
	Tag        string // stable row-type tag; what snapshots embed
	GoType     reflect.Type
	Columns    []Column
	byName     map[string]int // lowercased column name -> index into Columns
	PrimaryKey int            // index into Columns, -1 if none
}

// ColumnByName resolves a column case-insensitively.
func (s *Schema) ColumnByName(name string) (Column, bool) {
	i, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Column{}, false
	}
	return s.Columns[i], true
}

// HasPrimaryKey reports whether this row type declares a primary key.
func (s *Schema) HasPrimaryKey() bool { return s.PrimaryKey >= 0 }

// PK returns the primary key column descriptor. Panics if HasPrimaryKey is
// false; callers must check first.
func (s *Schema) PK() Column { return s.Columns[s.PrimaryKey] }

// cacheKey identifies a cached Schema: the same Go type registered under
// two tags gets two descriptors, each carrying its own Tag.
type cacheKey struct {
	t   reflect.Type
	tag string
}

var cache sync.Map // cacheKey -> *Schema

// columnFromField parses one struct field's `db:"..."` tag into a Column, given
// the field's Go name and kind.
func columnFromField(f reflect.StructField) (Column, bool, error) {
	tagVal := f.Tag.Get("db")
	if tagVal == "-" {
		return Column{}, false, nil
	}

	parts := strings.Split(tagVal, ",")
	name := f.Name
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		name = strings.TrimSpace(parts[0])
	}

	col := Column{Name: name, FieldName: f.Name}

	lt, err := logicalTypeOf(f.Type)
	if err != nil {
		return Column{}, false, err
	}
	col.Type = lt

	for _, attr := range parts[1:] {
		attr = strings.TrimSpace(attr)
		switch {
		case attr == "":
			continue
		case attr == "pk":
			col.PrimaryKey = true
		case attr == "auto":
			col.AutoIncrement = true
		case attr == "required":
			col.Required = true
		case strings.HasPrefix(attr, "fk="):
			col.ForeignKey = true
			col.References = strings.TrimPrefix(attr, "fk=")
		default:
			return Column{}, false, kernelerr.New(kernelerr.SchemaInvalid,
				"unknown column attribute %q on field %s", attr, f.Name)
		}
	}

	if col.ForeignKey && col.References == "" {
		return Column{}, false, kernelerr.New(kernelerr.SchemaInvalid,
			"foreign-key column %s omits its target row type", col.Name)
	}

	return col, true, nil
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	decimalType  = reflect.TypeOf(decimal.Decimal{})
	bytesType    = reflect.TypeOf([]byte(nil))
)

func logicalTypeOf(t reflect.Type) (LogicalType, error) {
	switch {
	case t == timeType:
		return DateTime, nil
	case t == uuidType:
		return UUID, nil
	case t == decimalType:
		return Decimal, nil
	case t == bytesType:
		return Bytes, nil
	}
	switch t.Kind() {
	case reflect.Int32:
		return Integer, nil
	case reflect.Int, reflect.Int64:
		return Long, nil
	case reflect.Bool:
		return Bool, nil
	case reflect.String:
		return String, nil
	default:
		return 0, kernelerr.New(kernelerr.SchemaInvalid, "unsupported field type %s", t)
	}
}

// Build derives (or returns the cached) Schema for the given sample row
// value, registered under tag. Validation fails with SchemaInvalid if more
// than one auto-increment column is declared, an auto-increment column is
// not the primary key or is not of logical type integer, or a foreign-key
// column omits its target.
func Build(tag string, sample any) (*Schema, error) {
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, kernelerr.New(kernelerr.SchemaInvalid, "row type %s is not a struct", t)
	}

	if cached, ok := cache.Load(cacheKey{t, tag}); ok {
		return cached.(*Schema), nil
	}

	s := &Schema{Tag: tag, GoType: t, PrimaryKey: -1, byName: map[string]int{}}

	autoCount := 0
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		col, ok, err := columnFromField(f)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		idx := len(s.Columns)
		s.Columns = append(s.Columns, col)
		s.byName[strings.ToLower(col.Name)] = idx

		if col.PrimaryKey {
			if s.PrimaryKey >= 0 {
				return nil, kernelerr.New(kernelerr.SchemaInvalid,
					"row type %s declares more than one primary key", tag)
			}
			s.PrimaryKey = idx
		}
		if col.AutoIncrement {
			autoCount++
		}
	}

	if autoCount > 1 {
		return nil, kernelerr.New(kernelerr.SchemaInvalid,
			"row type %s declares more than one auto-increment column", tag)
	}
	if autoCount == 1 {
		if s.PrimaryKey < 0 || !s.Columns[s.PrimaryKey].AutoIncrement {
			return nil, kernelerr.New(kernelerr.SchemaInvalid,
				"row type %s: auto-increment column must be the primary key", tag)
		}
		pk := s.Columns[s.PrimaryKey]
		if pk.Type != Integer {
			return nil, kernelerr.New(kernelerr.SchemaInvalid,
				"row type %s: auto-increment primary key must be of logical type integer, got %s", tag, pk.Type)
		}
	}

	cache.Store(cacheKey{t, tag}, s)
	return s, nil
}

// MustBuild panics on a SchemaInvalid error; used by tests and by callers
// that already know their struct tags are well-formed.
func MustBuild(tag string, sample any) *Schema {
	s, err := Build(tag, sample)
	if err != nil {
		panic(fmt.Sprintf("schema.MustBuild(%s): %v", tag, err))
	}
	return s
}

// FromColumns builds a Schema directly from an explicit column list, for
// row types that have no backing Go struct: a metadata-table bootstrap
// describes a table entirely in JSON, so there is no reflect.Type to
// derive columns from. Validation rules are identical to Build's.
func FromColumns(tag string, columns []Column) (*Schema, error) {
	s := &Schema{Tag: tag, PrimaryKey: -1, byName: map[string]int{}}

	autoCount := 0
	for i, col := range columns {
		if col.ForeignKey && col.References == "" {
			return nil, kernelerr.New(kernelerr.SchemaInvalid,
				"foreign-key column %s omits its target row type", col.Name)
		}
		s.Columns = append(s.Columns, col)
		s.byName[strings.ToLower(col.Name)] = i
		if col.PrimaryKey {
			if s.PrimaryKey >= 0 {
				return nil, kernelerr.New(kernelerr.SchemaInvalid,
					"row type %s declares more than one primary key", tag)
			}
			s.PrimaryKey = i
		}
		if col.AutoIncrement {
			autoCount++
		}
	}

	if autoCount > 1 {
		return nil, kernelerr.New(kernelerr.SchemaInvalid,
			"row type %s declares more than one auto-increment column", tag)
	}
	if autoCount == 1 {
		if s.PrimaryKey < 0 || !s.Columns[s.PrimaryKey].AutoIncrement {
			return nil, kernelerr.New(kernelerr.SchemaInvalid,
				"row type %s: auto-increment column must be the primary key", tag)
		}
		pk := s.Columns[s.PrimaryKey]
		if pk.Type != Integer {
			return nil, kernelerr.New(kernelerr.SchemaInvalid,
				"row type %s: auto-increment primary key must be of logical type integer, got %s", tag, pk.Type)
		}
	}

	return s, nil
}
