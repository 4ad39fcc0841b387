package scheduler

import "fmt"

// State 调度器状态
type State int

const (
	// StateIdle 等待下一次执行
	StateIdle State = iota
	// StateRunning 正在执行
	StateRunning
	// StateStopped 已停止（终态）
	StateStopped
)

// String 返回状态名
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
