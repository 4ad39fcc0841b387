// Package provider 按配置选择 DNS 厂商后端
//
// 厂商只在构造时选择一次，之后核心流程只依赖 pkgif.RecordBackend。
//
// 支持的类型：
//
//	aliyun   阿里云解析
//	route53  AWS Route53
//	rfc2136  RFC 2136 动态更新
//	memory   进程内记录（测试与演练）
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/provider/aliyun"
	"github.com/dep2p/go-dnspub/internal/provider/memory"
	"github.com/dep2p/go-dnspub/internal/provider/rfc2136"
	"github.com/dep2p/go-dnspub/internal/provider/route53"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// ErrUnknownType 未知的 DNS 类型
var ErrUnknownType = errors.New("provider: unknown dns type")

// New 按发布配置创建厂商后端
func New(ctx context.Context, cfg config.PublishConfig) (pkgif.RecordBackend, error) {
	switch cfg.Type {
	case config.DNSTypeAliYun:
		return aliyun.NewFromConfig(cfg.AliYun)
	case config.DNSTypeRoute53:
		return route53.NewFromConfig(ctx, cfg.Route53)
	case config.DNSTypeRFC2136:
		return rfc2136.New(cfg.RFC2136), nil
	case config.DNSTypeMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
