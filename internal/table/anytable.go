package table

import (
	"github.com/memrel/memrel/internal/kernelerr"
	"github.com/memrel/memrel/internal/row"
	"github.com/memrel/memrel/internal/schema"
)

// AnyTable is the type-erased contract the SQL executor and the snapshot
// codec use: both resolve tables by name/tag at runtime and never know a
// concrete Go struct type T, so they operate purely in terms of
// map[string]any rows.
type AnyTable interface {
	Name() string
	Schema() *schema.Schema
	Transient() bool

	InsertMap(values map[string]any) (map[string]any, error)
	InsertMapRange(values []map[string]any) ([]map[string]any, error)
	AllRows() []map[string]any
	WhereMap(pred func(map[string]any) bool) []map[string]any
	FindByPrimaryKeyMap(key any) (map[string]any, bool)
	UpdateMap(pred func(map[string]any) bool, mutate func(map[string]any)) (int, error)
	DeleteMap(pred func(map[string]any) bool) (int, error)
	DeleteByPrimaryKey(key any) error
	Clear()
	Close()
}

var _ AnyTable = (*Table[*row.Dynamic])(nil)

func (t *Table[T]) InsertMap(values map[string]any) (map[string]any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := row.NewDynamicFromMap(t.schema, values)
	t.assignAutoIncrement(d)
	if err := t.validateRow(d, -1, nil); err != nil {
		return nil, err
	}
	t.rows = append(t.rows, d)
	if t.schema.HasPrimaryKey() {
		t.pkIndex[normalizeKey(mustGet(d, t.schema.PK().Name))] = len(t.rows) - 1
	}
	return d.ToMap(), nil
}

func (t *Table[T]) InsertMapRange(values []map[string]any) ([]map[string]any, error) {
	vals := make([]T, len(values))
	for i, m := range values {
		d := row.NewDynamicFromMap(t.schema, m)
		vals[i] = t.fromDynamic(d)
	}
	inserted, err := t.InsertRange(vals)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(inserted))
	for i, v := range inserted {
		out[i] = t.toDynamic(v).ToMap()
	}
	return out, nil
}

func (t *Table[T]) AllRows() []map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]map[string]any, len(t.rows))
	for i, d := range t.rows {
		out[i] = d.Clone().(*dynamicRow).ToMap()
	}
	return out
}

func (t *Table[T]) WhereMap(pred func(map[string]any) bool) []map[string]any {
	all := t.AllRows()
	out := make([]map[string]any, 0, len(all))
	for _, m := range all {
		if pred(m) {
			out = append(out, m)
		}
	}
	return out
}

func (t *Table[T]) FindByPrimaryKeyMap(key any) (map[string]any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.schema.HasPrimaryKey() {
		return nil, false
	}
	idx, ok := t.pkIndex[normalizeKey(key)]
	if !ok {
		return nil, false
	}
	return t.rows[idx].Clone().(*dynamicRow).ToMap(), true
}

func (t *Table[T]) UpdateMap(pred func(map[string]any) bool, mutate func(map[string]any)) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hasPK := t.schema.HasPrimaryKey()
	changed := 0
	for i := 0; i < len(t.rows); i++ {
		cur := t.rows[i].Clone().(*dynamicRow)
		curMap := cur.ToMap()
		if !pred(curMap) {
			continue
		}
		mutate(curMap)
		newRow := row.NewDynamicFromMap(t.schema, curMap)

		if err := t.validateRow(newRow, i, nil); err != nil {
			return changed, err
		}

		if hasPK {
			pkCol := t.schema.PK()
			oldVal := mustGet(t.rows[i], pkCol.Name)
			newVal := mustGet(newRow, pkCol.Name)
			oldKey, newKey := normalizeKey(oldVal), normalizeKey(newVal)
			if oldKey != newKey {
				if t.isReferenced(oldVal) {
					return changed, kernelerr.New(kernelerr.ReferentialIntegrity,
						"table %s: cannot change primary key %v: still referenced", t.name, oldVal)
				}
				delete(t.pkIndex, oldKey)
				t.pkIndex[newKey] = i
			}
		}

		t.rows[i] = newRow
		changed++
	}
	return changed, nil
}

func (t *Table[T]) DeleteMap(pred func(map[string]any) bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var candidates []int
	for i, d := range t.rows {
		if pred(d.Clone().(*dynamicRow).ToMap()) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	if t.schema.HasPrimaryKey() {
		pkName := t.schema.PK().Name
		for _, i := range candidates {
			if t.isReferenced(mustGet(t.rows[i], pkName)) {
				return 0, kernelerr.New(kernelerr.ReferentialIntegrity,
					"table %s: row %v is referenced by another table", t.name, mustGet(t.rows[i], pkName))
			}
		}
	}

	for k := len(candidates) - 1; k >= 0; k-- {
		t.removeAt(candidates[k])
	}
	return len(candidates), nil
}
