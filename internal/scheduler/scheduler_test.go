package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInitial = 300 * time.Second
	testDelay   = 24 * time.Hour
	waitFor     = 2 * time.Second
	tickEvery   = 5 * time.Millisecond
)

func newTestScheduler(job Job) (*Scheduler, *clock.Mock) {
	mock := clock.NewMock()
	s := New(Config{InitialDelay: testInitial, Delay: testDelay, CycleTimeout: time.Minute}, job, WithClock(mock))
	return s, mock
}

// waitIdle 等待第 n 次执行结束并回到 Idle
func waitIdle(t *testing.T, s *Scheduler, runs *atomic.Int32, n int32) {
	t.Helper()
	require.Eventually(t, func() bool {
		return runs.Load() == n && s.State() == StateIdle
	}, waitFor, tickEvery)
}

func TestScheduler_FixedDelay(t *testing.T) {
	var runs atomic.Int32
	s, mock := newTestScheduler(func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	mock.Add(testInitial - time.Second)
	assert.Zero(t, runs.Load(), "nothing runs before the initial delay")

	mock.Add(time.Second)
	waitIdle(t, s, &runs, 1)

	mock.Add(testDelay - time.Minute)
	assert.Equal(t, int32(1), runs.Load())

	mock.Add(time.Minute)
	waitIdle(t, s, &runs, 2)
}

func TestScheduler_DelayCountsFromCycleEnd(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})
	s, mock := newTestScheduler(func(context.Context) error {
		if runs.Add(1) == 1 {
			<-release
		}
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	mock.Add(testInitial)
	require.Eventually(t, func() bool { return s.State() == StateRunning }, waitFor, tickEvery)

	// 执行期间时间流逝超过 Delay，不会触发新的执行
	mock.Add(testDelay * 2)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	waitIdle(t, s, &runs, 1)

	mock.Add(testDelay - time.Second)
	assert.Equal(t, int32(1), runs.Load())
	mock.Add(time.Second)
	waitIdle(t, s, &runs, 2)
}

func TestScheduler_ErrorsAndPanicsDoNotStopScheduling(t *testing.T) {
	var runs atomic.Int32
	s, mock := newTestScheduler(func(context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.New("vendor down")
		case 2:
			panic("boom")
		}
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	mock.Add(testInitial)
	waitIdle(t, s, &runs, 1)
	mock.Add(testDelay)
	waitIdle(t, s, &runs, 2)
	mock.Add(testDelay)
	waitIdle(t, s, &runs, 3)
}

func TestScheduler_StopWaitsForCycle(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan error, 1)
	s, mock := newTestScheduler(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			finished <- ctx.Err()
		case <-release:
			finished <- ctx.Err()
		}
		return nil
	})
	require.NoError(t, s.Start(context.Background()))

	mock.Add(testInitial)
	require.Eventually(t, func() bool { return s.State() == StateRunning }, waitFor, tickEvery)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	// Stop 阻塞直到周期结束，周期的 ctx 不会被取消
	require.Eventually(t, func() bool { return s.State() == StateStopped }, waitFor, tickEvery)
	select {
	case <-stopped:
		t.Fatal("Stop returned before the running cycle finished")
	case <-finished:
		t.Fatal("running cycle was cancelled by Stop")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-finished)
	require.NoError(t, <-stopped)
	assert.Equal(t, StateStopped, s.State())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopBoundedByContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	s, mock := newTestScheduler(func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, s.Start(context.Background()))

	mock.Add(testInitial)
	require.Eventually(t, func() bool { return s.State() == StateRunning }, waitFor, tickEvery)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
	assert.Equal(t, StateStopped, s.State())
}

func TestScheduler_StopCancelsPendingTimer(t *testing.T) {
	var runs atomic.Int32
	s, mock := newTestScheduler(func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	mock.Add(testInitial * 2)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runs.Load())
}

func TestScheduler_Lifecycle(t *testing.T) {
	s, _ := newTestScheduler(func(context.Context) error { return nil })
	ctx := context.Background()

	assert.ErrorIs(t, s.RunNow(), ErrNotStarted)
	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrStopped)
	assert.ErrorIs(t, s.RunNow(), ErrStopped)
}

func TestScheduler_RunNow(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})
	s, mock := newTestScheduler(func(context.Context) error {
		if runs.Add(1) == 1 {
			<-release
		}
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.NoError(t, s.RunNow())
	require.Eventually(t, func() bool { return s.State() == StateRunning }, waitFor, tickEvery)
	assert.ErrorIs(t, s.RunNow(), ErrBusy)

	close(release)
	waitIdle(t, s, &runs, 1)

	// 初始定时器已被取消，下一次在 Delay 之后
	mock.Add(testInitial)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	mock.Add(testDelay - testInitial)
	waitIdle(t, s, &runs, 2)
}

func TestScheduler_StaleTimerIgnored(t *testing.T) {
	var runs atomic.Int32
	s, mock := newTestScheduler(func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	s.mu.Lock()
	initial := s.gen
	s.mu.Unlock()

	require.NoError(t, s.RunNow())
	waitIdle(t, s, &runs, 1)

	// 与 RunNow 同时触发的初始定时器在周期结束后才拿到锁
	s.tick(initial)
	assert.Equal(t, int32(1), runs.Load())

	// 只有一条定时器链：Delay 之后恰好执行一次
	mock.Add(testDelay)
	waitIdle(t, s, &runs, 2)
	mock.Add(testDelay - time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{InitialDelay: -1}, func(context.Context) error { return nil })
	assert.Equal(t, DefaultConfig(), s.cfg)
}
