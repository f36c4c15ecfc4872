package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	revokeKeyPrefix = "taskprogress:revoked:"
	// revokeTTL matches the retention of process_items tasks.
	revokeTTL = 24 * time.Hour
)

// ErrRevoked is the reason recorded for tasks stopped on request.
var ErrRevoked = errors.New("task revoked on request")

// Revocations stores revoke requests for running tasks. The handler polls
// them between items and stops itself, so asynq archives the task instead of
// scheduling a retry.
type Revocations struct {
	client redis.UniversalClient
}

func NewRevocations(client redis.UniversalClient) *Revocations {
	return &Revocations{client: client}
}

// NewRedisClient connects to the redis instance behind opt.
func NewRedisClient(opt asynq.RedisClientOpt) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})
}

// Request asks the handler running taskID to stop.
func (r *Revocations) Request(ctx context.Context, taskID string) error {
	if err := r.client.Set(ctx, revokeKeyPrefix+taskID, time.Now().UTC().Format(time.RFC3339), revokeTTL).Err(); err != nil {
		return fmt.Errorf("failed to request revoke of task %s: %w", taskID, err)
	}
	return nil
}

// Requested reports whether taskID has been asked to stop.
func (r *Revocations) Requested(ctx context.Context, taskID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokeKeyPrefix+taskID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoke of task %s: %w", taskID, err)
	}
	return n > 0, nil
}
