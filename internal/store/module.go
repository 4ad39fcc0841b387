package store

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-dnspub/config"
)

// Module 序号存储模块
//
// 提供:
//   - SequenceStore: 配置了数据目录时为 BadgerStore，否则为 MemoryStore
//
// 生命周期:
//   - OnStart: 启动值日志回收
//   - OnStop: 关闭存储
var Module = fx.Module("store",
	fx.Provide(ProvideStore),
	fx.Invoke(registerLifecycle),
)

// Params 存储模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ProvideStore 按配置创建存储
func ProvideStore(p Params) (SequenceStore, error) {
	if p.UnifiedCfg == nil || !p.UnifiedCfg.Storage.Persistent() {
		logger.Info("未配置数据目录，使用内存序号存储")
		return NewMemory(), nil
	}
	return OpenBadger(p.UnifiedCfg.Storage.DBPath())
}

func registerLifecycle(lc fx.Lifecycle, s SequenceStore) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			bs, ok := s.(*BadgerStore)
			if !ok {
				return nil
			}
			logger.Info("正在启动序号存储")
			if err := bs.Start(); err != nil {
				logger.Error("序号存储启动失败", "error", err)
				return err
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭序号存储")
			if err := s.Close(); err != nil {
				logger.Error("序号存储关闭失败", "error", err)
				return err
			}
			logger.Info("序号存储已关闭")
			return nil
		},
	})
}
