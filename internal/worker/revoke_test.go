package worker

import (
	"context"
	"testing"
	"time"

	"taskprogress/internal/progress"
	"taskprogress/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, inspector *asynq.Inspector, id string, state asynq.TaskState) *asynq.TaskInfo {
	t.Helper()
	var info *asynq.TaskInfo
	require.Eventually(t, func() bool {
		ti, err := inspector.GetTaskInfo(DefaultQueue, id)
		if err != nil {
			return false
		}
		info = ti
		return ti.State == state
	}, 15*time.Second, 20*time.Millisecond, "task %s never reached %s", id, state)
	return info
}

func TestRevokeRequestArchivesRunningTask(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an asynq server")
	}

	mr := miniredis.RunT(t)
	redisOpt := asynq.RedisClientOpt{Addr: mr.Addr()}

	redisClient := queue.NewRedisClient(redisOpt)
	defer redisClient.Close()
	revocations := queue.NewRevocations(redisClient)

	logger, _ := logtest.NewNullLogger()
	w := &Worker{
		mux:         asynq.NewServeMux(),
		log:         logger,
		revocations: revocations,
	}
	w.RegisterTasks()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{DefaultQueue: 1},
		Logger:      logger,
		LogLevel:    asynq.FatalLevel,
	})
	require.NoError(t, srv.Start(w.mux))
	defer srv.Shutdown()

	client := asynq.NewClient(redisOpt)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	task, err := NewProcessItemsTask(ProcessItemsRequest{Total: 1000, StepMS: 20}, DefaultQueue)
	require.NoError(t, err)
	enqueued, err := client.Enqueue(task)
	require.NoError(t, err)

	waitForState(t, inspector, enqueued.ID, asynq.TaskStateActive)
	require.NoError(t, revocations.Request(context.Background(), enqueued.ID))

	archived := waitForState(t, inspector, enqueued.ID, asynq.TaskStateArchived)
	res := queue.NewResult(archived)
	assert.Equal(t, progress.StateRevoked, res.State())

	response := progress.NewReader(progress.WithLogger(logger)).GetInfo(context.Background(), res)
	assert.True(t, response.Complete)
	assert.False(t, *response.Success)
	assert.Equal(t, "Task revoked", response.Result)
}

func TestRevocationsRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := queue.NewRedisClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer redisClient.Close()
	revocations := queue.NewRevocations(redisClient)
	ctx := context.Background()

	revoked, err := revocations.Requested(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, revocations.Request(ctx, "a"))
	revoked, err = revocations.Requested(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(25 * time.Hour)
	revoked, err = revocations.Requested(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)
}
