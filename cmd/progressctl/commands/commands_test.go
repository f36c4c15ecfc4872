package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"taskprogress/internal/poller"
	"taskprogress/internal/progress"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	results []progress.Result
	calls   int
}

func (s *stubSource) Lookup(ctx context.Context, taskID string) (progress.Result, error) {
	if len(s.results) == 0 {
		return nil, poller.ErrNotFound
	}
	i := min(s.calls, len(s.results)-1)
	s.calls++
	return s.results[i], nil
}

func stubOpener(source *stubSource, opened *poller.Config) opener {
	return func(cfg poller.Config) (*poller.Service, func() error, error) {
		*opened = cfg
		logger, _ := logtest.NewNullLogger()
		reader := progress.NewReader(progress.WithLogger(logger))
		return poller.NewService(source, reader), func() error { return nil }, nil
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusPrintsResponse(t *testing.T) {
	var opened poller.Config
	source := &stubSource{results: []progress.Result{
		progress.NewKnownResult("t1", "done", progress.StateSuccess, ""),
	}}

	out, err := run(t, stubOpener(source, &opened), "status", "t1", "--backend", "celery")
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, "SUCCESS", body["state"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "done", body["result"])
	assert.Equal(t, poller.BackendCelery, opened.Backend)
}

func TestStatusNotFound(t *testing.T) {
	var opened poller.Config
	_, err := run(t, stubOpener(&stubSource{}, &opened), "status", "nope")
	assert.ErrorIs(t, err, poller.ErrNotFound)
}

func TestStatusRequiresTaskID(t *testing.T) {
	var opened poller.Config
	_, err := run(t, stubOpener(&stubSource{}, &opened), "status")
	assert.Error(t, err)
}

func TestWatchPrintsEveryPoll(t *testing.T) {
	var opened poller.Config
	source := &stubSource{results: []progress.Result{
		progress.NewKnownResult("t1", progress.Document{Current: 1, Total: 2}, progress.StateProgress, ""),
		progress.NewKnownResult("t1", "done", progress.StateSuccess, ""),
	}}

	out, err := run(t, stubOpener(source, &opened), "watch", "t1", "--interval", "1ms")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"state":"PROGRESS"`)
	assert.Contains(t, lines[1], `"state":"SUCCESS"`)
}

func TestWatchFailsOnFailedTask(t *testing.T) {
	var opened poller.Config
	source := &stubSource{results: []progress.Result{
		progress.NewKnownResult("t1", errors.New("boom"), progress.StateFailure, ""),
	}}

	_, err := run(t, stubOpener(source, &opened), "watch", "t1", "--interval", "1ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILURE")
}

func TestWatchRejectsZeroInterval(t *testing.T) {
	var opened poller.Config
	_, err := run(t, stubOpener(&stubSource{}, &opened), "watch", "t1", "--interval", "0s")
	assert.Error(t, err)
}

func TestSimulateConsole(t *testing.T) {
	var opened poller.Config
	out, err := run(t, stubOpener(&stubSource{}, &opened), "simulate", "--total", "2", "--step", "0s", "-d", "rows")
	require.NoError(t, err)
	assert.Equal(t, "processed 1 items of 2. rows\nprocessed 2 items of 2. rows\n", out)
}

func TestSimulateJSON(t *testing.T) {
	var out bytes.Buffer
	err := simulate(context.Background(), newSimulateRecorder(&out, true), 4, 0, "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)

	var last struct {
		State progress.State    `json:"state"`
		Meta  progress.Document `json:"meta"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &last))
	assert.Equal(t, progress.StateProgress, last.State)
	assert.Equal(t, 4, last.Meta.Current)
	assert.Equal(t, 100, *last.Meta.PercentInt)
}

func TestSimulateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := simulate(ctx, newSimulateRecorder(&out, false), 3, time.Hour, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}
