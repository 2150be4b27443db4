package executor

// Result is one statement's outcome: for a query, Columns/Rows hold the
// projected result set; for a mutation, AffectedRows counts inserted/
// updated/deleted rows. IsQuery distinguishes the two so a caller doesn't
// have to guess from a nil/empty Rows slice.
type Result struct {
	Columns      []string
	Rows         [][]any
	AffectedRows int64
	IsQuery      bool
}
