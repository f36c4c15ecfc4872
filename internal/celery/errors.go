package celery

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBackendUnavailable wraps failures talking to the result backend.
var ErrBackendUnavailable = errors.New("celery result backend unavailable")

// TaskError is an exception stored by a Celery worker in a FAILURE, RETRY or
// REVOKED result, e.g. {"exc_type": "ValueError", "exc_message": ["boom"]}.
type TaskError struct {
	Type    string
	Message string
	Module  string
}

// Error returns the exception message alone, the way str(exc) renders it.
func (e *TaskError) Error() string {
	return e.Message
}

// decodeTaskError recognizes Celery's serialized exception mapping.
func decodeTaskError(v any) (*TaskError, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	excType, ok := m["exc_type"].(string)
	if !ok {
		return nil, false
	}
	taskErr := &TaskError{Type: excType, Message: excMessage(m["exc_message"])}
	if module, ok := m["exc_module"].(string); ok {
		taskErr.Module = module
	}
	return taskErr, true
}

func excMessage(v any) string {
	switch msg := v.(type) {
	case nil:
		return ""
	case string:
		return msg
	case []interface{}:
		if len(msg) == 1 {
			return excMessage(msg[0])
		}
		parts := make([]string, 0, len(msg))
		for _, part := range msg {
			parts = append(parts, excMessage(part))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprint(msg)
	}
}
