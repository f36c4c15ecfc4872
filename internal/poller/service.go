package poller

import (
	"context"
	"time"

	"taskprogress/internal/progress"
)

// Service answers status requests from a Source.
type Service struct {
	source Source
	reader *progress.Reader
}

func NewService(source Source, reader *progress.Reader) *Service {
	return &Service{source: source, reader: reader}
}

// Status returns the current Response for taskID.
func (s *Service) Status(ctx context.Context, taskID string) (progress.Response, error) {
	res, err := s.source.Lookup(ctx, taskID)
	if err != nil {
		return progress.Response{}, err
	}
	return s.reader.GetInfo(ctx, res), nil
}

// Watch polls taskID every interval, calling onUpdate with each Response,
// until the task is complete or ctx is done.
func (s *Service) Watch(ctx context.Context, taskID string, interval time.Duration, onUpdate func(progress.Response)) (progress.Response, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		response, err := s.Status(ctx, taskID)
		if err != nil {
			return response, err
		}
		if onUpdate != nil {
			onUpdate(response)
		}
		if finished(response) {
			return response, nil
		}

		select {
		case <-ctx.Done():
			return response, ctx.Err()
		case <-ticker.C:
		}
	}
}

// finished treats a PENDING task with no record as not started yet rather than
// done, although its Response is marked complete.
func finished(r progress.Response) bool {
	if !r.Complete {
		return false
	}
	return !(r.State == progress.StatePending && r.Success == nil && r.Result == nil)
}
