package publish

import (
	"github.com/dep2p/go-dnspub/config"
)

// Config Publisher 配置
type Config struct {
	// Concurrency 单个阶段内并发提交的批次数
	Concurrency int

	// BatchSize 单次提交给厂商的最大变更数
	BatchSize int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Concurrency: config.DefaultConcurrency,
		BatchSize:   config.DefaultBatchSize,
	}
}

// ConfigFromUnified 从统一配置创建 Publisher 配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Concurrency: cfg.Publish.Concurrency,
		BatchSize:   cfg.Publish.BatchSize,
	}
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
}
