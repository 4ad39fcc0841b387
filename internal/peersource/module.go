package peersource

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-dnspub/config"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// Module 配置节点来源模块
var Module = fx.Module("peersource",
	fx.Provide(ProvidePeerSource),
)

// Params 节点来源依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config
}

// ProvidePeerSource 从统一配置创建节点来源
func ProvidePeerSource(p Params) (pkgif.PeerSource, error) {
	return FromConfig(p.UnifiedCfg.Peers)
}
