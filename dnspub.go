package dnspub

import (
	"context"
	"fmt"

	"github.com/dep2p/go-dnspub/internal/app"
)

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.1.0"

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "dnspub " + Version
	if GitCommit != "" {
		info += " (" + GitCommit[:min(8, len(GitCommit))] + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}

// ════════════════════════════════════════════════════════════════════════════
//                              入口
// ════════════════════════════════════════════════════════════════════════════

// New 创建节点（不启动）
//
// 配置会被校验；调度模式下发布未启用时返回 ErrPublishDisabled。
func New(opts ...Option) (*Node, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if o.config == nil {
		return nil, ErrNoConfig
	}

	boot := app.NewBootstrap(o.config, o.bootstrapOptions()...)
	rt, err := boot.Build()
	if err != nil {
		return nil, err
	}
	return &Node{
		config:    o.config,
		bootstrap: boot,
		runtime:   rt,
	}, nil
}

// Start 创建并启动节点
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	n, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := n.Start(ctx); err != nil {
		return nil, err
	}
	return n, nil
}
