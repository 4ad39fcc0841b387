package scheduler

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"go.uber.org/fx"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/metrics"
	"github.com/dep2p/go-dnspub/internal/publish"
	"github.com/dep2p/go-dnspub/internal/store"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// Module 发布调度模块
//
// 提供:
//   - *dnstree.Builder: 使用 publish.private_key 签名
//   - *Cycle: 一次完整的发布
//   - *Scheduler: 固定延迟调度
//
// 生命周期:
//   - OnStart: 启动调度（首次执行在 initial_delay 之后）
//   - OnStop: 停止调度并等待正在执行的发布
var Module = fx.Module("scheduler",
	CycleModule,
	fx.Provide(ProvideScheduler),
	fx.Invoke(RegisterLifecycle),
)

// CycleModule 只提供构建器与发布周期，不启动调度
//
// 用于一次性命令（build / delete / 手动发布）。
var CycleModule = fx.Module("cycle",
	fx.Provide(
		ProvideBuilder,
		ProvideCycle,
	),
)

// ProvideBuilder 从发布配置创建树构建器
func ProvideBuilder(cfg *config.Config) (*dnstree.Builder, error) {
	return NewBuilderFromConfig(cfg.Publish)
}

// NewBuilderFromConfig 解析签名私钥与共享密钥并创建构建器
func NewBuilderFromConfig(cfg config.PublishConfig) (*dnstree.Builder, error) {
	raw, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	var opts []dnstree.BuilderOption
	if cfg.MaxRecordSize > 0 {
		opts = append(opts, dnstree.WithMaxRecordSize(cfg.MaxRecordSize))
	}
	if cfg.SharedSecret != "" {
		opts = append(opts, dnstree.WithSharedSecret([]byte(cfg.SharedSecret)))
	}
	return dnstree.NewBuilder(secp256k1.PrivKeyFromBytes(raw), opts...)
}

// CycleParams 发布周期依赖参数
type CycleParams struct {
	fx.In

	UnifiedCfg *config.Config
	Builder    *dnstree.Builder
	Peers      pkgif.PeerSource
	Publisher  *publish.Publisher
	Store      store.SequenceStore
	Metrics    metrics.Reporter `optional:"true"`
}

// ProvideCycle 创建发布周期
func ProvideCycle(p CycleParams) *Cycle {
	return NewCycle(
		CycleConfig{
			Domain:  p.UnifiedCfg.Publish.Domain,
			Links:   p.UnifiedCfg.Publish.KnownLinks,
			Private: p.UnifiedCfg.Publish.Private,
		},
		p.Builder, p.Peers, p.Publisher, p.Store,
		WithCycleMetrics(p.Metrics),
	)
}

// SchedulerParams 调度器依赖参数
type SchedulerParams struct {
	fx.In

	UnifiedCfg *config.Config
	Cycle      *Cycle
	Clock      clock.Clock `optional:"true"`
}

// ProvideScheduler 创建调度器
func ProvideScheduler(p SchedulerParams) *Scheduler {
	var opts []Option
	if p.Clock != nil {
		opts = append(opts, WithClock(p.Clock))
	}
	return New(ConfigFromUnified(p.UnifiedCfg), p.Cycle.Run, opts...)
}

// RegisterLifecycle 把调度器挂到 fx 生命周期
func RegisterLifecycle(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop: func(ctx context.Context) error {
			if err := s.Stop(ctx); err != nil {
				logger.Error("发布调度停止失败", "error", err)
				return err
			}
			logger.Info("发布调度已停止")
			return nil
		},
	})
}
