package wire

import "github.com/memrel/memrel/internal/sql/executor"

// ExecuteRequest is a single SQL command request. Database is optional: an
// empty value takes the gateway's default-database fallback.
type ExecuteRequest struct {
	ID       uint64 `json:"id"`
	Database string `json:"database,omitempty"`
	SQL      string `json:"sql"`
}

// ExecuteResponse is the response for a request ID.
type ExecuteResponse struct {
	ID     uint64           `json:"id"`
	Result *executor.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}
