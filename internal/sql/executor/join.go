package executor

import "github.com/memrel/memrel/internal/sql/planner"

// joinRows extends each row in rows with one more table per the nested-
// loop join algorithm: for every left-side row, scan the joined table's
// rows for every match on the join key, emitting one combined row per
// match. An unmatched LEFT JOIN row is padded with an all-nil row on the
// joined side rather than dropped.
func joinRows(rows []ctxRow, j planner.JoinBinding) ([]ctxRow, error) {
	rightRows := j.Table.Table.AllRows()

	out := make([]ctxRow, 0, len(rows))
	for _, left := range rows {
		leftVal, err := resolveColumn(left, j.LeftKey)
		if err != nil {
			return nil, err
		}

		matched := false
		for _, rm := range rightRows {
			rightVal, ok := mapGetCI(rm, j.RightKey.Name)
			if !ok {
				continue
			}
			if leftVal == nil || rightVal == nil {
				continue
			}
			c, err := compareValues(leftVal, rightVal)
			if err != nil {
				return nil, err
			}
			if c != 0 {
				continue
			}
			merged := cloneCtx(left)
			merged[j.Table.Alias] = rm
			out = append(out, merged)
			matched = true
		}

		if !matched && j.Left {
			merged := cloneCtx(left)
			merged[j.Table.Alias] = nullRow(j.Table.Table)
			out = append(out, merged)
		}
	}
	return out, nil
}
