package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Recorder reports how far a running job has got.
type Recorder interface {
	SetProgress(ctx context.Context, current, total int, description string) (State, Document, error)
}

// StateUpdater persists a job's state and metadata in its result record.
type StateUpdater interface {
	UpdateState(ctx context.Context, state State, meta any) error
}

// StateRecorder writes PROGRESS documents through a StateUpdater.
// Elapsed time for the estimate is always measured from construction.
type StateRecorder struct {
	updater   StateUpdater
	startTime time.Time
	now       func() time.Time
}

// NewRecorder returns a StateRecorder whose clock starts now.
func NewRecorder(updater StateUpdater) *StateRecorder {
	return newRecorder(updater, time.Now)
}

func newRecorder(updater StateUpdater, now func() time.Time) *StateRecorder {
	return &StateRecorder{
		updater:   updater,
		startTime: now(),
		now:       now,
	}
}

// StartTime returns the time the recorder was created.
func (r *StateRecorder) StartTime() time.Time {
	return r.startTime
}

// SetProgress builds a Document for current out of total and stores it as the
// job's PROGRESS state. A failed write is returned to the caller.
func (r *StateRecorder) SetProgress(ctx context.Context, current, total int, description string) (State, Document, error) {
	start := r.startTime
	doc := Document{
		Pending:           false,
		Current:           current,
		Total:             total,
		Percent:           float64Ptr(percentFloat(current, total)),
		PercentInt:        intPtr(percentInt(current, total)),
		Description:       &description,
		StartTime:         &start,
		EstTimeRemainingS: intPtr(estimateRemaining(current, total, r.now().Sub(start))),
	}

	if err := r.updater.UpdateState(ctx, StateProgress, doc); err != nil {
		return StateProgress, doc, fmt.Errorf("failed to record progress %d/%d: %w", current, total, err)
	}
	return StateProgress, doc, nil
}

// ConsoleRecorder prints progress lines instead of persisting state.
type ConsoleRecorder struct {
	out io.Writer
}

// NewConsoleRecorder writes to out, or to stdout when out is nil.
func NewConsoleRecorder(out io.Writer) *ConsoleRecorder {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleRecorder{out: out}
}

func (c *ConsoleRecorder) SetProgress(ctx context.Context, current, total int, description string) (State, Document, error) {
	doc := Document{
		Current:     current,
		Total:       total,
		Percent:     float64Ptr(percentFloat(current, total)),
		PercentInt:  intPtr(percentInt(current, total)),
		Description: &description,
	}
	if _, err := fmt.Fprintf(c.out, "processed %d items of %d. %s\n", current, total, description); err != nil {
		return StateProgress, doc, err
	}
	return StateProgress, doc, nil
}

func percentFloat(current, total int) float64 {
	if current == 0 || total == 0 {
		return 0.0
	}
	percent := roundHalfEven(float64(current)/float64(total)*100.0, 2)
	if percent == 0 && current > 0 {
		return 1.0
	}
	return percent
}

// roundHalfEven rounds the exact binary value of x to places decimals, ties to even.
func roundHalfEven(x float64, places int) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return rounded
}

func percentInt(current, total int) int {
	if current == 0 || total == 0 {
		return 0
	}
	percent := current * 100 / total
	if percent == 0 && current > 0 {
		return 1
	}
	return percent
}

// estimateRemaining projects the total duration from the share done so far.
// -1 means no rate has been established yet.
func estimateRemaining(current, total int, elapsed time.Duration) int {
	if current == 0 || total == 0 {
		return -1
	}
	percent := float64(current) / float64(total) * 100.0
	if percent == 0 {
		return -1
	}
	elapsedS := float64(elapsed / time.Second)
	totalS := elapsedS * (100.0 / percent)
	return int(totalS - elapsedS)
}
