package table

import "github.com/memrel/memrel/internal/kernelerr"

// Insert copies value, assigns an auto-increment primary key if needed,
// validates required/foreign-key/uniqueness constraints, and appends the
// row.
func (t *Table[T]) Insert(value T) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	d := t.toDynamic(value)
	t.assignAutoIncrement(d)

	if err := t.validateRow(d, -1, nil); err != nil {
		return zero, err
	}

	t.rows = append(t.rows, d)
	if t.schema.HasPrimaryKey() {
		key := normalizeKey(mustGet(d, t.schema.PK().Name))
		t.pkIndex[key] = len(t.rows) - 1
	}
	return t.fromDynamic(d), nil
}

// assignAutoIncrement mutates d in place for an auto-increment primary key:
// a positive preset advances nextAuto past itself; an absent/non-positive
// preset (0 or negative is treated as absent) is replaced by the next
// assigned value.
func (t *Table[T]) assignAutoIncrement(d *dynamicRow) {
	if !t.schema.HasPrimaryKey() {
		return
	}
	pkCol := t.schema.PK()
	if !pkCol.AutoIncrement {
		return
	}
	preset, _ := mustGet(d, pkCol.Name).(int32)
	if preset > 0 {
		if int64(preset)+1 > t.nextAuto {
			t.nextAuto = int64(preset) + 1
		}
		return
	}
	_ = d.Set(pkCol.Name, int32(t.nextAuto))
	t.nextAuto++
}

// InsertRange inserts every value in order, all-or-nothing: every row is
// validated (with an in-batch duplicate-PK check) before any row is
// appended, so a failure at any point leaves the table completely
// unchanged.
func (t *Table[T]) InsertRange(values []T) ([]T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dynRows := make([]*dynamicRow, len(values))
	for i, v := range values {
		dynRows[i] = t.toDynamic(v)
	}

	localNextAuto := t.nextAuto
	hasAutoPK := t.schema.HasPrimaryKey() && t.schema.PK().AutoIncrement
	if hasAutoPK {
		pkName := t.schema.PK().Name
		// Pass 1: advance nextAuto past every preset positive PK.
		for _, d := range dynRows {
			if preset, ok := mustGet(d, pkName).(int32); ok && preset > 0 {
				if int64(preset)+1 > localNextAuto {
					localNextAuto = int64(preset) + 1
				}
			}
		}
		// Pass 2: assign auto PKs to rows lacking one.
		for _, d := range dynRows {
			preset, _ := mustGet(d, pkName).(int32)
			if preset <= 0 {
				_ = d.Set(pkName, int32(localNextAuto))
				localNextAuto++
			}
		}
	}

	// Pass 3: validate every row before committing any of them.
	seen := map[any]bool{}
	for _, d := range dynRows {
		if err := t.validateRow(d, -1, seen); err != nil {
			return nil, err
		}
		if t.schema.HasPrimaryKey() {
			seen[normalizeKey(mustGet(d, t.schema.PK().Name))] = true
		}
	}

	results := make([]T, len(dynRows))
	for i, d := range dynRows {
		t.rows = append(t.rows, d)
		if t.schema.HasPrimaryKey() {
			t.pkIndex[normalizeKey(mustGet(d, t.schema.PK().Name))] = len(t.rows) - 1
		}
		results[i] = t.fromDynamic(d)
	}
	t.nextAuto = localNextAuto
	return results, nil
}

// FindByPrimaryKey returns an independent copy of the row with the given
// key, if present.
func (t *Table[T]) FindByPrimaryKey(key any) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var zero T
	if !t.schema.HasPrimaryKey() {
		return zero, false
	}
	idx, ok := t.pkIndex[normalizeKey(key)]
	if !ok {
		return zero, false
	}
	return t.fromDynamic(t.rows[idx].Clone().(*dynamicRow)), true
}

// AsSequence returns an independent copy of every row, in insertion order.
func (t *Table[T]) AsSequence() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, len(t.rows))
	for i, d := range t.rows {
		out[i] = t.fromDynamic(d.Clone().(*dynamicRow))
	}
	return out
}

// Where returns copies of every row matching pred.
func (t *Table[T]) Where(pred func(T) bool) []T {
	all := t.AsSequence()
	out := make([]T, 0, len(all))
	for _, v := range all {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Clear drops all rows and resets auto-increment to 1.
func (t *Table[T]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	t.pkIndex = map[any]int{}
	t.nextAuto = 1
}

// Update applies mutator to a clone of every row matching pred, then
// re-validates required/FK constraints and, if the primary key changed,
// re-checks uniqueness and refuses the change while the old key is still
// referenced. Returns the number of rows actually changed.
func (t *Table[T]) Update(pred func(T) bool, mutator func(*T)) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hasPK := t.schema.HasPrimaryKey()
	changed := 0
	for i := 0; i < len(t.rows); i++ {
		cur := t.fromDynamic(t.rows[i].Clone().(*dynamicRow))
		if !pred(cur) {
			continue
		}
		mutated := cur
		mutator(&mutated)
		newRow := t.toDynamic(mutated)

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

// Delete removes every row matching pred, all-or-nothing: if any matching
// row is currently referenced, the whole call fails with
// ReferentialIntegrity and no row is removed.
func (t *Table[T]) Delete(pred func(T) bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var candidates []int
	for i, d := range t.rows {
		if pred(t.fromDynamic(d.Clone().(*dynamicRow))) {
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

// DeleteByPrimaryKey removes the row with the given key, refusing if any
// referencing table still points at it. Deleting an absent key is a no-op.
func (t *Table[T]) DeleteByPrimaryKey(key any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.schema.HasPrimaryKey() {
		return kernelerr.New(kernelerr.InvalidArgument, "table %s: has no primary key", t.name)
	}
	idx, ok := t.pkIndex[normalizeKey(key)]
	if !ok {
		return nil
	}
	if t.isReferenced(key) {
		return kernelerr.New(kernelerr.ReferentialIntegrity,
			"table %s: row %v is referenced by another table", t.name, key)
	}
	t.removeAt(idx)
	return nil
}
