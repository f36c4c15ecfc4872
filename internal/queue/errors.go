package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

var (
	// ErrResultNotFound is returned when no task with the given id exists.
	ErrResultNotFound = errors.New("task result not found")
	// ErrInvalidResult is returned when a state payload cannot be encoded.
	ErrInvalidResult = errors.New("invalid task result")
)

// revokedPrefix marks the last error of tasks that stopped on a revoke request,
// which asynq otherwise reports as plain archived failures.
const revokedPrefix = "revoked: "

// Revoke wraps the reason a handler stopped itself. It must be returned while
// the task context is still live: asynq ignores handler errors after
// cancellation. The task is archived without retry and read back as REVOKED.
func Revoke(reason error) error {
	return fmt.Errorf("%s%w: %w", revokedPrefix, reason, asynq.SkipRetry)
}

func isRevoked(lastErr string) bool {
	return strings.HasPrefix(lastErr, revokedPrefix)
}
