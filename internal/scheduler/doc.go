// Package scheduler 周期性地构建并发布发现树
//
// Scheduler 负责调度：启动后等待 InitialDelay 执行第一次，之后每次
// 执行结束再等待 Delay（固定延迟，不是固定频率）。任何一次执行中的
// 错误或 panic 都只记录日志，不影响后续调度。
//
// 状态机：
//
//	Idle ──tick──▶ Running ──done──▶ Idle
//	  │                │
//	  └──── Stop ──────┴──────────▶ Stopped
//
// Cycle 是被调度的一次发布：
//
//	PeerSource → dnstree.Merge → 序号决策 → MakeTree → publish.Sync → 保存状态
package scheduler
