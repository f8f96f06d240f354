// internal/functions/digest/models.go
package digest

// Input is the request body of the board-digest function. All fields are
// optional; a bare POST starts a fresh run at offset 0. A continuation
// request carries the runId of the chain head.
type Input struct {
	Offset    int    `json:"offset,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
	StartTime int64  `json:"startTime,omitempty"` // epoch milliseconds
	RunID     string `json:"runId,omitempty"`
}

// Output is the response body. Continuation responses nest recursively, so
// the chain head's response embeds every page that ran after it.
type Output struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message,omitempty"`
	Processed int     `json:"processed"`
	RunID     string  `json:"runId,omitempty"`
	NextBatch *Output `json:"nextBatch,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Cursor is the durable paging state, committed before each continuation
// call so a killed chain can be resumed under the same runId.
type Cursor struct {
	Offset    int   `json:"offset"`
	Iteration int   `json:"iteration"`
	StartTime int64 `json:"startTime"` // epoch milliseconds
}
