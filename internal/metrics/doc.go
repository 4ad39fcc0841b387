// Package metrics 提供发布流程的监控指标
//
// 基于 prometheus/client_golang，记录：
//   - 发布周期结果（按 result 统计次数与耗时）
//   - 记录变更（按厂商、动作统计）
//   - 当前已发布的序号与树大小（按域名）
//
// # 快速开始
//
//	reporter := metrics.NewPrometheus(prometheus.DefaultRegisterer)
//	reporter.CycleFinished(metrics.ResultPublished, time.Second)
//	reporter.RecordChanges("aliyun", "create", 3)
//
// 未启用指标时使用 Nop()，调用方无需判空。
package metrics
