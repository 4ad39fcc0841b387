// Package config 提供统一的配置管理
//
// 本包采用与 dep2p 相同的混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，带自己的默认值与 Validate
//   - 支持从 JSON 加载，并用 DNSPUB_ 前缀的环境变量覆盖
//
// 使用示例：
//
//	cfg, err := config.LoadFile("dnspub.json")
//	if err != nil {
//	    return err
//	}
//	cfg.ApplyEnv()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	if !cfg.PublishEnabled() {
//	    return nil // 发布未启用不是错误
//	}
package config

import (
	"go.uber.org/multierr"
)

// Config 是 dnspub 的完整配置结构
//
// 配置按照功能模块组织：
//   - Discovery: 节点发现开关（发布依赖发现服务）
//   - Publish: 发布目标、签名密钥、调度与厂商凭据
//   - Peers: 节点来源
//   - Storage: 序号存储
//   - Log: 日志
//   - Metrics: 指标
type Config struct {
	// Discovery 节点发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// Publish DNS 发布配置
	Publish PublishConfig `json:"publish"`

	// Peers 节点来源配置
	Peers PeersConfig `json:"peers"`

	// Storage 存储配置
	Storage StorageConfig `json:"storage"`

	// Log 日志配置
	Log LogConfig `json:"log"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
//
// 默认配置不启用发布，校验总能通过。
func NewConfig() *Config {
	return &Config{
		Discovery: DefaultDiscoveryConfig(),
		Publish:   DefaultPublishConfig(),
		Peers:     DefaultPeersConfig(),
		Storage:   DefaultStorageConfig(),
		Log:       DefaultLogConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// PublishEnabled 发布服务是否应当启动
//
// 发现服务与发布开关必须同时打开。
func (c *Config) PublishEnabled() bool {
	return c != nil && c.Discovery.Enable && c.Publish.Enable
}

// Validate 验证配置的有效性
//
// 收集全部问题后一次性返回，错误包装 ErrConfig。
// 发布未启用时不检查发布相关配置。
func (c *Config) Validate() error {
	if c == nil {
		return wrapConfigErr(errNilConfig)
	}

	var err error
	if c.PublishEnabled() {
		err = multierr.Append(err, c.Publish.Validate())
		err = multierr.Append(err, c.Peers.Validate())
	}
	err = multierr.Append(err, c.Storage.Validate())
	err = multierr.Append(err, c.Log.Validate())
	err = multierr.Append(err, c.Metrics.Validate())
	return wrapConfigErr(err)
}

// ValidatePublish 无视开关，按发布已启用的规则验证
//
// 一次性命令（build / delete）使用。
func (c *Config) ValidatePublish() error {
	if c == nil {
		return wrapConfigErr(errNilConfig)
	}
	return wrapConfigErr(multierr.Combine(
		c.Publish.Validate(),
		c.Peers.Validate(),
		c.Storage.Validate(),
		c.Log.Validate(),
		c.Metrics.Validate(),
	))
}

// ============================================================================
//                              小型子配置
// ============================================================================

// DiscoveryConfig 节点发现配置
type DiscoveryConfig struct {
	// Enable 是否启用发现服务
	Enable bool `json:"enable"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{Enable: true}
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug / info / warn / error
	Level string `json:"level"`

	// File 日志文件，空表示标准错误输出
	File string `json:"file,omitempty"`

	// JSON 是否输出 JSON 格式
	JSON bool `json:"json,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info"}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fieldErr("log.level", "unknown level %q", c.Level)
	}
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// ListenAddr /metrics 监听地址，空表示不启用
	ListenAddr string `json:"listen_addr,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{}
}

// Enabled 是否启用指标
func (c *MetricsConfig) Enabled() bool {
	return c.ListenAddr != ""
}

// Validate 验证指标配置
func (c *MetricsConfig) Validate() error {
	if c.ListenAddr == "" {
		return nil
	}
	if err := validateHostPort(c.ListenAddr); err != nil {
		return fieldErr("metrics.listen_addr", "%v", err)
	}
	return nil
}
