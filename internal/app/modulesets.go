// Package app 提供模块集合清单
//
// modulesets.go 集中维护"哪些模块属于哪个 Tier"，是 Bootstrap 组装的唯一模块来源。
package app

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-dnspub/internal/metrics"
	"github.com/dep2p/go-dnspub/internal/peersource"
	"github.com/dep2p/go-dnspub/internal/provider"
	"github.com/dep2p/go-dnspub/internal/publish"
	"github.com/dep2p/go-dnspub/internal/scheduler"
	"github.com/dep2p/go-dnspub/internal/store"
)

// FoundationModules 基础层模块组合 (Tier 1)
//
// 序号存储与指标，始终加载。指标未配置监听地址时为空实现。
func FoundationModules() fx.Option {
	return fx.Options(
		store.Module,
		metrics.Module,
	)
}

// PeerSourceModules 配置节点来源 (Tier 2)
func PeerSourceModules() fx.Option {
	return peersource.Module
}

// BackendModules 厂商后端 (Tier 2)
func BackendModules() fx.Option {
	return provider.Module
}

// PublishModules 发布层模块组合 (Tier 3)
//
// 差异同步与发布周期。
func PublishModules() fx.Option {
	return fx.Options(
		publish.Module,
		scheduler.CycleModule,
	)
}

// SchedulerModules 调度层 (Tier 4)
//
// 只在调度模式下加载。
func SchedulerModules() fx.Option {
	return fx.Options(
		fx.Provide(scheduler.ProvideScheduler),
		fx.Invoke(scheduler.RegisterLifecycle),
	)
}
