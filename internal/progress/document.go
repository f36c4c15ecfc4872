package progress

import "time"

// State is the raw job state tag reported by the task queue runtime.
type State string

const (
	StatePending  State = "PENDING"
	StateStarted  State = "STARTED"
	StateProgress State = "PROGRESS"
	StateRetry    State = "RETRY"
	StateRevoked  State = "REVOKED"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
	StateIgnored  State = "IGNORED"
)

// ReadyStates are the states after which a job will not run again.
var ReadyStates = []State{StateSuccess, StateFailure, StateRevoked}

// Ready reports whether s is one of ReadyStates.
func (s State) Ready() bool {
	for _, r := range ReadyStates {
		if s == r {
			return true
		}
	}
	return false
}

// Document is the progress snapshot written by a Recorder and returned to pollers.
// Field names are part of the wire contract consumed by polling clients.
type Document struct {
	Pending           bool       `json:"pending"`
	Current           int        `json:"current"`
	Total             int        `json:"total"`
	Percent           *float64   `json:"percent"`
	PercentInt        *int       `json:"percent_int"`
	Description       *string    `json:"description,omitempty"`
	StartTime         *time.Time `json:"start_time"`
	EstTimeRemainingS *int       `json:"est_time_remaining_s"`
}

// CompletedDocument is reported for every finished job.
func CompletedDocument() Document {
	return Document{
		Pending:           false,
		Current:           100,
		Total:             100,
		Percent:           float64Ptr(100.0),
		PercentInt:        intPtr(100),
		EstTimeRemainingS: intPtr(0),
	}
}

// UnknownDocument is reported when nothing is known about the job's progress.
func UnknownDocument() Document {
	return Document{
		Pending: false,
		Current: 0,
		Total:   100,
	}
}

// PendingDocument is reported for jobs that have not started reporting yet.
func PendingDocument() Document {
	return Document{
		Pending:           true,
		Current:           0,
		Total:             100,
		Percent:           float64Ptr(-1.0),
		PercentInt:        intPtr(-1),
		EstTimeRemainingS: intPtr(-1),
	}
}

func intPtr(v int) *int { return &v }

func float64Ptr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }
