package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("scheduler")

// Job 被调度执行的任务
type Job func(ctx context.Context) error

// Option 调度器选项
type Option func(*Scheduler)

// WithClock 替换时钟（测试使用 clock.NewMock）
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler 固定延迟调度器
//
// 同一时刻至多一个 Job 在执行。
type Scheduler struct {
	cfg   Config
	job   Job
	clock clock.Clock

	mu      sync.Mutex
	state   State
	started bool
	timer   *clock.Timer
	gen     uint64        // 定时器代数，过期的定时器不执行
	done    chan struct{} // 当前执行结束时关闭
}

// New 创建调度器
func New(cfg Config, job Job, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = def.CycleTimeout
	}

	s := &Scheduler{
		cfg:   cfg,
		job:   job,
		clock: clock.New(),
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State 返回当前状态
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start 启动调度，首次执行在 InitialDelay 之后
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateStopped:
		return ErrStopped
	case s.started:
		return ErrAlreadyStarted
	}
	s.started = true
	s.schedule(s.cfg.InitialDelay)

	logger.Info("发布调度已启动", "initialDelay", s.cfg.InitialDelay, "delay", s.cfg.Delay)
	return nil
}

// RunNow 取消等待中的定时器并立即执行一次
//
// 执行结束后照常在 Delay 之后安排下一次。
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	switch {
	case s.state == StateStopped:
		s.mu.Unlock()
		return ErrStopped
	case !s.started:
		s.mu.Unlock()
		return ErrNotStarted
	case s.state == StateRunning:
		s.mu.Unlock()
		return ErrBusy
	}
	s.stopTimer()
	gen := s.gen
	s.mu.Unlock()

	go s.tick(gen)
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
//
// 正在执行的任务不会被取消，只是不再安排下一次。等待受 ctx 限制，
// 超时返回 ctx 的错误，任务在后台继续直到结束。重复调用返回 nil。
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	s.state = StateStopped
	s.stopTimer()
	done := s.done
	s.mu.Unlock()

	logger.Info("正在停止发布调度", "state", prev.String())
	if prev != StateRunning || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn("等待发布周期结束超时")
		return ctx.Err()
	}
}

// schedule 安排下一次执行，调用方持有 mu
func (s *Scheduler) schedule(d time.Duration) {
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.tick(gen) })
}

// stopTimer 取消等待中的定时器，调用方持有 mu
//
// 已经触发但尚未拿到锁的 tick 因代数不符而放弃。
func (s *Scheduler) stopTimer() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if s.state != StateIdle || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.timer = nil
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	s.runJob()

	s.mu.Lock()
	defer s.mu.Unlock()
	close(done)
	if s.state == StateStopped {
		return
	}
	s.state = StateIdle
	s.schedule(s.cfg.Delay)
}

// runJob 执行一次任务，错误与 panic 都只记录日志
func (s *Scheduler) runJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("发布周期异常", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()

	if err := s.job(ctx); err != nil {
		logger.Warn("发布周期失败，等待下一次调度", "error", err, "next", s.cfg.Delay)
	}
}
