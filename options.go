package dnspub

import (
	"errors"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/app"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	peers   pkgif.PeerSource
	backend pkgif.RecordBackend
	clock   clock.Clock
	manual  bool
	fxOpts  []fx.Option
}

func defaultOptions() *options {
	return &options{}
}

func (o *options) bootstrapOptions() []app.BootstrapOption {
	var opts []app.BootstrapOption
	if o.peers != nil {
		opts = append(opts, app.WithPeerSource(o.peers))
	}
	if o.backend != nil {
		opts = append(opts, app.WithBackend(o.backend))
	}
	if o.clock != nil {
		opts = append(opts, app.WithClock(o.clock))
	}
	if o.manual {
		opts = append(opts, app.WithManual())
	}
	if len(o.fxOpts) > 0 {
		opts = append(opts, app.WithFxOptions(o.fxOpts...))
	}
	return opts
}

// WithConfig 使用给定配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return ErrNoConfig
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置并应用 DNSPUB_ 环境变量
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		cfg.ApplyEnv()
		o.config = cfg
		return nil
	}
}

// WithPeerSource 提供可连接节点，替换配置中的 peers
func WithPeerSource(ps pkgif.PeerSource) Option {
	return func(o *options) error {
		if ps == nil {
			return errors.New("nil peer source")
		}
		o.peers = ps
		return nil
	}
}

// WithBackend 提供厂商后端，替换 publish.type 的选择
func WithBackend(backend pkgif.RecordBackend) Option {
	return func(o *options) error {
		if backend == nil {
			return errors.New("nil record backend")
		}
		o.backend = backend
		return nil
	}
}

// WithClock 替换调度时钟（测试）
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithManual 不启动调度器，发布由 PublishNow 触发
//
// 手动模式忽略 discovery.enable / publish.enable 开关。
func WithManual() Option {
	return func(o *options) error {
		o.manual = true
		return nil
	}
}

// WithFxOptions 追加 fx 选项（高级用法）
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOpts = append(o.fxOpts, opts...)
		return nil
	}
}
