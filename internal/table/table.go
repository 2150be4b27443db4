// Package table implements Table[T], the typed row store: primary-key
// indexing, auto-increment allocation, required-field and foreign-key
// validation, and reader/writer-locked query/insert/update/delete over an
// in-memory row slice rather than a disk-paged heap file — rows live for a
// process's lifetime, with no page cache or on-disk format underneath them.
package table

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/memrel/memrel/internal/catalog"
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/row"
	"github.com/memrel/memrel/internal/schema"
)

// Table stores rows of one row type T under a single reader/writer lock:
// the acting table locks itself first, and any foreign-key or referencing
// lookup into another table goes through that table's own Snapshot helper
// under its own read lock.
type Table[T any] struct {
	name      string
	tag       string
	schema    *schema.Schema
	cat       *catalog.Catalog
	transient bool

	mu       sync.RWMutex
	rows     []*dynamicRow
	pkIndex  map[any]int
	nextAuto int64
}

// dynamicRow is the row.Dynamic alias used throughout this package; every
// row a Table stores is one of these regardless of the caller-visible T.
type dynamicRow = row.Dynamic

// New builds a table for row type T, registering it with the catalog under
// tag. schemaOverride lets a caller supply a schema built from a JSON
// descriptor instead of reflecting over T (T is *row.Dynamic in that case);
// pass nil to derive the schema from T's struct tags.
func New[T any](name, tag string, cat *catalog.Catalog, transient bool, schemaOverride *schema.Schema) (*Table[T], error) {
	s := schemaOverride
	if s == nil {
		var zero T
		built, err := schema.Build(tag, zero)
		if err != nil {
			return nil, err
		}
		s = built
	}

	t := &Table[T]{
		name:      name,
		tag:       tag,
		schema:    s,
		cat:       cat,
		transient: transient,
		pkIndex:   map[any]int{},
		nextAuto:  1,
	}
	cat.Register(tag, t)
	return t, nil
}

func (t *Table[T]) Name() string          { return t.name }
func (t *Table[T]) Schema() *schema.Schema { return t.schema }
func (t *Table[T]) Transient() bool       { return t.transient }
func (t *Table[T]) Tag() string           { return t.tag }

// Close deregisters the table from its catalog. A released table must
// deregister itself so its tag can be reused and referencing tables stop
// finding it; if a newer table has since been registered under the same
// tag, that registration is left in place.
func (t *Table[T]) Close() {
	if h, ok := t.cat.Lookup(t.tag); ok && h == catalog.TableHandle(t) {
		t.cat.Deregister(t.tag)
	}
}

// --- conversion at the T <-> Dynamic boundary ---

func (t *Table[T]) toDynamic(v T) *row.Dynamic {
	if d, ok := any(v).(*row.Dynamic); ok {
		return d.Clone().(*row.Dynamic)
	}
	return row.StructToDynamic(t.schema, v)
}

func (t *Table[T]) fromDynamic(d *row.Dynamic) T {
	if v, ok := any(d).(T); ok {
		return v
	}
	return row.DynamicToStruct[T](t.schema, d)
}

// normalizeKey maps a raw column value to a canonical comparable map key.
func normalizeKey(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.UTC().UnixNano()
	default:
		return v
	}
}

func (t *Table[T]) removeAt(i int) {
	if t.schema.HasPrimaryKey() {
		delete(t.pkIndex, normalizeKey(mustGet(t.rows[i], t.schema.PK().Name)))
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	for k, idx := range t.pkIndex {
		if idx > i {
			t.pkIndex[k] = idx - 1
		}
	}
}

func mustGet(d *row.Dynamic, col string) any {
	v, _ := d.Get(col)
	return v
}

// validateRow checks required columns, foreign-key targets, and primary-key
// presence/uniqueness for d. excludeIdx is the row's own current slice
// index during an update (so its unchanged PK doesn't collide with itself);
// pass -1 for a brand-new row. batchSeen additionally rejects duplicate PKs
// within the same InsertRange call.
func (t *Table[T]) validateRow(d *row.Dynamic, excludeIdx int, batchSeen map[any]bool) error {
	for _, col := range t.schema.Columns {
		if !col.Required {
			continue
		}
		v, _ := d.Get(col.Name)
		if row.IsEmpty(v) {
			return kernelerr.New(kernelerr.RequiredMissing,
				"table %s: column %q is required", t.name, col.Name)
		}
	}

	for _, col := range t.schema.Columns {
		if !col.ForeignKey {
			continue
		}
		v, _ := d.Get(col.Name)
		if row.IsEmpty(v) {
			continue
		}
		handle, ok := t.cat.Lookup(col.References)
		if !ok {
			return kernelerr.New(kernelerr.ForeignKeyViolation,
				"table %s: column %q references unknown table %q", t.name, col.Name, col.References)
		}
		if !handle.ContainsPrimaryKey(v) {
			return kernelerr.New(kernelerr.ForeignKeyViolation,
				"table %s: column %q value %v not found in %q", t.name, col.Name, v, col.References)
		}
	}

	if t.schema.HasPrimaryKey() {
		pkCol := t.schema.PK()
		v, ok := d.Get(pkCol.Name)
		if !ok || row.IsEmpty(v) {
			return kernelerr.New(kernelerr.PrimaryKeyMissing,
				"table %s: primary key %q is missing", t.name, pkCol.Name)
		}
		key := normalizeKey(v)
		if idx, exists := t.pkIndex[key]; exists && idx != excludeIdx {
			return kernelerr.New(kernelerr.DuplicatePrimaryKey,
				"table %s: duplicate primary key %v", t.name, v)
		}
		if batchSeen != nil && batchSeen[key] {
			return kernelerr.New(kernelerr.DuplicatePrimaryKey,
				"table %s: duplicate primary key %v in insert batch", t.name, v)
		}
	}
	return nil
}

// isReferenced reports whether any table referencing this one currently
// holds a row whose foreign-key column equals pkValue.
func (t *Table[T]) isReferenced(pkValue any) bool {
	want := normalizeKey(pkValue)
	for _, h := range t.cat.ReferencingTables(t.tag) {
		s := h.Schema()
		rows := h.SnapshotRows()
		for _, col := range s.Columns {
			if !col.ForeignKey || !strings.EqualFold(col.References, t.tag) {
				continue
			}
			for _, r := range rows {
				v, ok := r.Get(col.Name)
				if !ok || row.IsEmpty(v) {
					continue
				}
				if normalizeKey(v) == want {
					return true
				}
			}
		}
	}
	return false
}

// --- catalog.TableHandle ---

func (t *Table[T]) ContainsPrimaryKey(key any) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.pkIndex[normalizeKey(key)]
	return ok
}

// SnapshotRows copies every row under this table's own read lock, so a
// cross-table referencing check never reaches directly into another
// table's private storage.
func (t *Table[T]) SnapshotRows() []row.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]row.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out
}
