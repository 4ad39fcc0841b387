package provider

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-dnspub/config"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("provider")

// Module 厂商后端模块
//
// 提供:
//   - pkgif.RecordBackend: 由 publish.type 选择
var Module = fx.Module("provider",
	fx.Provide(ProvideBackend),
)

// Params 厂商后端依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config
}

// ProvideBackend 从统一配置创建厂商后端
func ProvideBackend(p Params) (pkgif.RecordBackend, error) {
	backend, err := New(context.Background(), p.UnifiedCfg.Publish)
	if err != nil {
		logger.Error("创建 DNS 厂商后端失败", "type", p.UnifiedCfg.Publish.Type, "error", err)
		return nil, err
	}
	logger.Info("已选择 DNS 厂商", "vendor", backend.Vendor())
	return backend, nil
}
