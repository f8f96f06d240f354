// internal/functions/digest/config.go
package digest

import "time"

type Config struct {
	BatchSize        int
	MaxIterations    int
	MaxExecutionTime time.Duration
	ActivityWindow   time.Duration

	// ContinuationURL is this service's own board-digest endpoint; each full
	// page posts the next cursor against it.
	ContinuationURL string

	// BoardsURL is the member-facing boards page linked from digest emails.
	BoardsURL string
}
