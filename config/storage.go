package config

import (
	"path/filepath"
)

// StorageConfig 存储配置
//
// 保存每个域名最近一次发布的序号与顶层哈希，使节点集合不变时
// 重启后仍复用原序号。
//
// 数据目录结构：
//
//	${DataDir}/
//	└── dnspub.db/          # BadgerDB 数据库
//	    ├── 000001.vlog
//	    ├── 000001.sst
//	    └── MANIFEST
type StorageConfig struct {
	// DataDir 数据目录路径，空表示仅保存在内存中
	DataDir string `json:"data_dir,omitempty"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir: "./data",
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if c.DataDir != "" && filepath.Clean(c.DataDir) == string(filepath.Separator) {
		return fieldErr("storage.data_dir", "refusing to use filesystem root")
	}
	return nil
}

// Persistent 是否使用磁盘存储
func (c *StorageConfig) Persistent() bool {
	return c.DataDir != ""
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "dnspub.db")
}
