package publish

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/metrics"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// Module 发布模块
var Module = fx.Module("publish",
	fx.Provide(
		NewFromParams,
	),
)

// Params Publisher 依赖参数
type Params struct {
	fx.In

	Backend    pkgif.RecordBackend
	Metrics    metrics.Reporter `optional:"true"`
	UnifiedCfg *config.Config   `optional:"true"`
}

// Result Publisher 导出结果
type Result struct {
	fx.Out

	Publisher   *Publisher
	PublisherIf pkgif.Publisher
}

// NewFromParams 从 Fx 参数创建 Publisher
func NewFromParams(p Params) Result {
	pub := New(p.Backend, ConfigFromUnified(p.UnifiedCfg), WithMetrics(p.Metrics))
	return Result{
		Publisher:   pub,
		PublisherIf: pub,
	}
}
