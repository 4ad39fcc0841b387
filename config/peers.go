package config

import (
	"go.uber.org/multierr"
)

// StaticPeer 静态配置的节点
type StaticPeer struct {
	// ID 节点身份（Base58）
	ID string `json:"id"`

	// IPv4 / IPv6 至少设置一个
	IPv4 string `json:"ipv4,omitempty"`
	IPv6 string `json:"ipv6,omitempty"`

	// Port 端口
	Port int `json:"port"`
}

// PeersConfig 节点来源配置
//
// File 与 Static 可以同时使用，结果合并。
type PeersConfig struct {
	// File JSON 节点列表文件，每个发布周期重新读取
	File string `json:"file,omitempty"`

	// Static 静态节点列表
	Static []StaticPeer `json:"static,omitempty"`
}

// DefaultPeersConfig 返回默认节点来源配置
func DefaultPeersConfig() PeersConfig {
	return PeersConfig{}
}

// Validate 验证节点来源配置
func (c *PeersConfig) Validate() error {
	var err error
	for i, p := range c.Static {
		if p.ID == "" {
			err = multierr.Append(err, fieldErr("peers.static", "entry %d has no id", i))
		}
		if p.IPv4 == "" && p.IPv6 == "" {
			err = multierr.Append(err, fieldErr("peers.static", "entry %d has no address", i))
		}
		if p.Port <= 0 || p.Port > 65535 {
			err = multierr.Append(err, fieldErr("peers.static", "entry %d has bad port %d", i, p.Port))
		}
	}
	return err
}
