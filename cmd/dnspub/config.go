package main

import (
	"flag"
	"fmt"

	"github.com/dep2p/go-dnspub/config"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// configFlags 各子命令共用的配置参数
//
// 优先级（从高到低）：命令行参数 > DNSPUB_ 环境变量 > 配置文件 > 默认值
type configFlags struct {
	fs *flag.FlagSet

	file      *string
	dataDir   *string
	logFile   *string
	logLevel  *string
	metrics   *string
	domain    *string
	dnsType   *string
	peersFile *string
}

func registerConfigFlags(fs *flag.FlagSet) *configFlags {
	return &configFlags{
		fs:        fs,
		file:      fs.String("config", "", "配置文件路径（JSON）"),
		dataDir:   fs.String("data-dir", "", "数据目录（空表示只保存在内存中）"),
		logFile:   fs.String("log", "", "日志文件路径"),
		logLevel:  fs.String("log-level", "", "日志级别 (debug/info/warn/error)"),
		metrics:   fs.String("metrics", "", "/metrics 监听地址"),
		domain:    fs.String("domain", "", "发布域名"),
		dnsType:   fs.String("type", "", "DNS 服务类型 (aliyun/route53/rfc2136/memory)"),
		peersFile: fs.String("peers", "", "节点列表文件（JSON）"),
	}
}

// load 加载配置文件、应用环境变量与命令行覆盖
func (f *configFlags) load() (*config.Config, error) {
	cfg := config.NewConfig()
	if *f.file != "" {
		loaded, err := config.LoadFile(*f.file)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if f.isSet("data-dir") {
		cfg.Storage.DataDir = *f.dataDir
	}
	if f.isSet("log") {
		cfg.Log.File = *f.logFile
	}
	if f.isSet("log-level") {
		cfg.Log.Level = *f.logLevel
	}
	if f.isSet("metrics") {
		cfg.Metrics.ListenAddr = *f.metrics
	}
	if f.isSet("domain") {
		cfg.Publish.Domain = *f.domain
	}
	if f.isSet("type") {
		cfg.Publish.Type = *f.dnsType
	}
	if f.isSet("peers") {
		cfg.Peers.File = *f.peersFile
	}
	return cfg, nil
}

// isSet 检查命令行参数是否被显式设置
func (f *configFlags) isSet(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}
