package scheduler

import (
	"time"

	"github.com/dep2p/go-dnspub/config"
)

// DefaultCycleTimeout 单次发布的最长时间
const DefaultCycleTimeout = time.Hour

// Config 调度配置
type Config struct {
	// InitialDelay 启动后首次执行的延迟
	InitialDelay time.Duration

	// Delay 上一次执行结束到下一次开始的间隔
	Delay time.Duration

	// CycleTimeout 单次执行的超时
	CycleTimeout time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		InitialDelay: config.DefaultInitialDelay,
		Delay:        config.DefaultPublishDelay,
		CycleTimeout: DefaultCycleTimeout,
	}
}

// ConfigFromUnified 从统一配置创建调度配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if d := cfg.Publish.InitialDelay.Duration(); d >= 0 {
		c.InitialDelay = d
	}
	if d := cfg.Publish.Delay.Duration(); d > 0 {
		c.Delay = d
	}
	return c
}
