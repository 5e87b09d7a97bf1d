package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"

	"github.com/Ramsey-B/clover/pkg/result"
	"github.com/Ramsey-B/clover/pkg/transfer"
)

func getTestLogger(t *testing.T) ectologger.Logger {
	t.Helper()
	zapLogger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	requests []transfer.Request
	res      result.Result[transfer.Outcome]
}

func (f *fakeRunner) Transfer(ctx context.Context, req transfer.Request) result.Result[transfer.Outcome] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	return f.res
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSchedulerRunsImmediatelyOnStart(t *testing.T) {
	runner := &fakeRunner{res: result.Ok(transfer.Outcome{}, "ok")}
	sched := NewScheduler(runner, Config{PollInterval: time.Hour, Enqueue: true}, getTestLogger(t))

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runner.callCount() >= 1
	}, time.Second, 10*time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.requests, 1)
	req := runner.requests[0]
	assert.True(t, req.Start.IsZero())
	assert.True(t, req.End.IsZero())
	assert.True(t, req.Enqueue)
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	runner := &fakeRunner{res: result.Ok(transfer.Outcome{}, "ok")}
	sched := NewScheduler(runner, Config{PollInterval: 20 * time.Millisecond}, getTestLogger(t))

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runner.callCount() >= 3
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerStartTwice(t *testing.T) {
	runner := &fakeRunner{res: result.Ok(transfer.Outcome{}, "ok")}
	sched := NewScheduler(runner, Config{PollInterval: time.Hour}, getTestLogger(t))

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(context.Background())

	assert.ErrorIs(t, sched.Start(context.Background()), ErrSchedulerAlreadyRunning)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	runner := &fakeRunner{res: result.Ok(transfer.Outcome{}, "ok")}
	sched := NewScheduler(runner, Config{PollInterval: time.Hour}, getTestLogger(t))

	require.NoError(t, sched.Start(context.Background()))
	assert.True(t, sched.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(ctx))
	assert.False(t, sched.IsRunning())

	require.NoError(t, sched.Stop(ctx))
}

func TestSchedulerSurvivesFailedCycle(t *testing.T) {
	runner := &fakeRunner{res: result.Fail[transfer.Outcome](result.KindSourceTransport, 502, "cart unreachable")}
	sched := NewScheduler(runner, Config{PollInterval: 20 * time.Millisecond}, getTestLogger(t))

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runner.callCount() >= 2
	}, time.Second, 10*time.Millisecond)
}
