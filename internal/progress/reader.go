package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	unknownRetryDelay = "Unknown"
	retryMessageLimit = 50
)

// retryDelayPattern matches the delay Celery puts in a Retry exception's traceback.
// Parsing it is a fallback for backends that do not expose RetryInfo.
var retryDelayPattern = regexp.MustCompile(`Retry in (\d+)s`)

// Reader turns result handles into Responses.
type Reader struct {
	log logrus.FieldLogger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger used for jobs in unrecognized states.
func WithLogger(log logrus.FieldLogger) ReaderOption {
	return func(r *Reader) {
		r.log = log
	}
}

func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetInfo classifies the current state of res. It never fails: anomalies are
// reported inside the Response.
func (r *Reader) GetInfo(ctx context.Context, res Result) Response {
	state := res.State()
	response := Response{State: state}

	// No payload at all is distinct from a known state with a payload.
	if res.Info() == nil {
		response.Complete = true
		response.Progress = UnknownDocument()
		return response
	}

	switch state {
	case StateSuccess, StateFailure:
		success := res.Successful()
		response.Complete = true
		response.Success = boolPtr(success)
		response.Progress = CompletedDocument()
		response.Result = allowJoin(func() (any, error) {
			if success {
				return res.Get(ctx)
			}
			return stringify(res.Info()), nil
		})

	case StateRetry:
		response.Complete = true
		response.Success = boolPtr(false)
		response.Progress = CompletedDocument()
		response.Result = r.retryResult(res)

	case StateRevoked:
		response.Complete = true
		response.Success = boolPtr(false)
		response.Progress = CompletedDocument()
		response.Result = "Task " + stringify(res.Info())

	case StateIgnored:
		response.Complete = true
		response.Progress = CompletedDocument()
		response.Result = stringify(res.Info())

	case StateProgress:
		response.Complete = false
		response.Progress = res.Info()

	case StatePending, StateStarted:
		response.Complete = false
		response.Progress = PendingDocument()

	default:
		r.log.WithFields(logrus.Fields{
			"task_id": res.ID(),
			"state":   state,
			"info":    stringify(res.Info()),
		}).Errorf("Task %s has unknown state %s", res.ID(), state)
		response.Complete = true
		response.Success = boolPtr(false)
		response.Progress = UnknownDocument()
		response.Result = fmt.Sprintf("Unknown state %s", state)
	}

	return response
}

func (r *Reader) retryResult(res Result) RetryResult {
	result := RetryResult{
		NextRetrySeconds: unknownRetryDelay,
		Message:          truncate(stringify(res.Info()), retryMessageLimit),
	}

	var info RetryInfo
	if d, ok := res.(RetryDescriber); ok {
		if described, ok := d.RetryInfo(); ok {
			info = described
		}
	}
	if !info.When.IsZero() {
		result.When = info.When.Format(time.RFC3339)
		if info.Message != "" {
			result.Message = truncate(info.Message, retryMessageLimit)
		}
		// The delay comes from stored timestamps only, so re-reading an
		// unchanged record gives the same answer.
		if !info.FailedAt.IsZero() {
			result.NextRetrySeconds = max(0, int(info.When.Sub(info.FailedAt)/time.Second))
			return result
		}
	}

	if m := retryDelayPattern.FindStringSubmatch(res.Traceback()); m != nil {
		if seconds, err := strconv.Atoi(m[1]); err == nil {
			result.NextRetrySeconds = seconds
		}
	}
	return result
}

// allowJoin runs fetch for a finished job. Errors and panics raised while
// materializing the value come back as strings.
func allowJoin(fetch func() (any, error)) (result any) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprint(r)
		}
	}()

	v, err := fetch()
	if err != nil {
		return err.Error()
	}
	return v
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case error:
		return t.Error()
	case string:
		return t
	case []byte:
		return string(t)
	case json.RawMessage:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(t)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
