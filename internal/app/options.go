package app

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// BootstrapOption Bootstrap 配置选项
type BootstrapOption func(*Bootstrap)

// WithPeerSource 替换配置中的节点来源
//
// 嵌入到节点管理器时使用。
func WithPeerSource(ps pkgif.PeerSource) BootstrapOption {
	return func(b *Bootstrap) {
		b.peers = ps
	}
}

// WithBackend 替换按 publish.type 选择的厂商后端
func WithBackend(backend pkgif.RecordBackend) BootstrapOption {
	return func(b *Bootstrap) {
		b.backend = backend
	}
}

// WithClock 替换调度时钟
func WithClock(clk clock.Clock) BootstrapOption {
	return func(b *Bootstrap) {
		b.clock = clk
	}
}

// WithManual 不装配调度器，发布由调用方触发
func WithManual() BootstrapOption {
	return func(b *Bootstrap) {
		b.manual = true
	}
}

// WithFxOptions 追加 fx 选项
func WithFxOptions(opts ...fx.Option) BootstrapOption {
	return func(b *Bootstrap) {
		b.extra = append(b.extra, opts...)
	}
}
