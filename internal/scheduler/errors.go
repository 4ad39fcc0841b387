package scheduler

import "errors"

// 预定义错误
var (
	// ErrStopped 调度器已停止
	ErrStopped = errors.New("scheduler: stopped")

	// ErrAlreadyStarted 调度器已启动
	ErrAlreadyStarted = errors.New("scheduler: already started")

	// ErrNotStarted 调度器尚未启动
	ErrNotStarted = errors.New("scheduler: not started")

	// ErrBusy 已有周期在执行
	ErrBusy = errors.New("scheduler: cycle in progress")
)
