package progress

import (
	"context"
	"time"
)

// Result is a read-only handle to a job's result record.
type Result interface {
	// ID identifies the job.
	ID() string
	// State is the raw state tag.
	State() State
	// Info is the payload stored with the state: a return value, an error,
	// progress metadata, or nil when nothing has been stored.
	Info() any
	// Successful reports whether the job finished with SUCCESS.
	Successful() bool
	// Get returns the job's final value, or the error the job ended with.
	Get(ctx context.Context) (any, error)
	// Traceback is the free-text failure trace, if the backend kept one.
	Traceback() string
}

// RetryInfo describes when a job in RETRY will run again. FailedAt is the
// failure that scheduled the retry; the reported delay is When minus FailedAt.
type RetryInfo struct {
	When     time.Time
	FailedAt time.Time
	Message  string
}

// RetryDescriber is implemented by handles whose backend records retry times directly.
type RetryDescriber interface {
	RetryInfo() (RetryInfo, bool)
}

// Response is the normalized status document served to pollers.
type Response struct {
	State    State `json:"state"`
	Complete bool  `json:"complete"`
	Success  *bool `json:"success"`
	Progress any   `json:"progress"`
	Result   any   `json:"result,omitempty"`
}

// RetryResult is the Response result for jobs waiting to be retried.
// NextRetrySeconds holds an int, or "Unknown" when no delay could be found.
type RetryResult struct {
	When             string `json:"when,omitempty"`
	NextRetrySeconds any    `json:"next_retry_seconds"`
	Message          string `json:"message"`
}
