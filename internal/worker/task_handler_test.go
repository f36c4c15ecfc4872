package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskprogress/internal/progress"
	"taskprogress/internal/queue"

	"github.com/hibiken/asynq"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedState struct {
	state progress.State
	meta  any
}

type memoryStore struct {
	states []recordedState
	failAt int
}

func (m *memoryStore) UpdateState(ctx context.Context, state progress.State, meta any) error {
	if m.failAt > 0 && len(m.states)+1 == m.failAt {
		return errors.New("redis: connection refused")
	}
	m.states = append(m.states, recordedState{state: state, meta: meta})
	return nil
}

func (m *memoryStore) WriteResult(ctx context.Context, value any) error {
	return m.UpdateState(ctx, progress.StateSuccess, value)
}

func newTestWorker() *Worker {
	logger, _ := logtest.NewNullLogger()
	return &Worker{log: logger}
}

func TestProcessItemsReportsEveryItem(t *testing.T) {
	store := &memoryStore{}
	err := newTestWorker().processItems(context.Background(), "t1", store,
		[]byte(`{"total": 3, "description": "thumbnails"}`))
	require.NoError(t, err)

	require.Len(t, store.states, 5)
	for i, s := range store.states[:4] {
		assert.Equal(t, progress.StateProgress, s.state)
		doc := s.meta.(progress.Document)
		assert.Equal(t, i, doc.Current)
		assert.Equal(t, 3, doc.Total)
		assert.Equal(t, "thumbnails", *doc.Description)
	}
	assert.Equal(t, 100, *store.states[3].meta.(progress.Document).PercentInt)

	last := store.states[4]
	assert.Equal(t, progress.StateSuccess, last.state)
	assert.Equal(t, map[string]any{"processed": 3}, last.meta)
}

func TestProcessItemsRejectsBadPayload(t *testing.T) {
	for _, payload := range []string{`not json`, `{"total": -1}`, `{"total": 1000001}`} {
		store := &memoryStore{}
		err := newTestWorker().processItems(context.Background(), "t2", store, []byte(payload))

		require.Error(t, err, payload)
		assert.ErrorIs(t, err, asynq.SkipRetry, payload)
		assert.Empty(t, store.states, payload)
	}
}

func TestProcessItemsInterruptedIsRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestWorker().processItems(ctx, "t3", &memoryStore{}, []byte(`{"total": 10, "step_ms": 1000}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

type revokeAfter struct {
	checks int
	after  int
	err    error
}

func (r *revokeAfter) Requested(ctx context.Context, taskID string) (bool, error) {
	r.checks++
	if r.err != nil {
		return false, r.err
	}
	return r.checks > r.after, nil
}

func TestProcessItemsStopsOnRevokeRequest(t *testing.T) {
	w := newTestWorker()
	w.revocations = &revokeAfter{after: 2}
	store := &memoryStore{}

	err := w.processItems(context.Background(), "t5", store, []byte(`{"total": 10}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, queue.ErrRevoked)
	assert.True(t, strings.HasPrefix(err.Error(), "revoked: "))

	// initial report plus two items, no result
	require.Len(t, store.states, 3)
	assert.Equal(t, progress.StateProgress, store.states[2].state)
}

func TestProcessItemsIgnoresRevokeCheckFailure(t *testing.T) {
	w := newTestWorker()
	w.revocations = &revokeAfter{err: errors.New("redis: i/o timeout")}
	store := &memoryStore{}

	require.NoError(t, w.processItems(context.Background(), "t6", store, []byte(`{"total": 2}`)))
	assert.Equal(t, progress.StateSuccess, store.states[len(store.states)-1].state)
}

func TestProcessItemsPropagatesWriteFailure(t *testing.T) {
	store := &memoryStore{failAt: 2}
	err := newTestWorker().processItems(context.Background(), "t4", store, []byte(`{"total": 5}`))

	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Len(t, store.states, 1)
}

func TestNewProcessItemsTask(t *testing.T) {
	task, err := NewProcessItemsTask(ProcessItemsRequest{Total: 4, StepMS: 10}, "jobs")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeProcessItems, task.Type())
	assert.JSONEq(t, `{"total": 4, "step_ms": 10, "description": ""}`, string(task.Payload()))

	_, err = NewProcessItemsTask(ProcessItemsRequest{Total: -4}, "jobs")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
