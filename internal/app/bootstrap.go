// Package app 提供 dnspub 应用编排层
//
// app 包负责：
// - fx 模块组装
// - 依赖注入协调
// - 生命周期管理
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-dnspub/config"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("app")

// 默认超时
const (
	DefaultStartTimeout = 30 * time.Second
	DefaultStopTimeout  = 30 * time.Second
)

// 预定义错误
var (
	// ErrPublishDisabled 发现或发布开关未打开
	ErrPublishDisabled = errors.New("app: dns publish disabled")

	// ErrNilConfig 未提供配置
	ErrNilConfig = errors.New("app: nil config")

	// ErrNotBuilt 尚未调用 Build
	ErrNotBuilt = errors.New("app: not built")
)

// Bootstrap 应用引导程序
//
// Bootstrap 负责：
// - 校验配置并设置日志
// - 组装 fx 模块
// - 管理应用生命周期
type Bootstrap struct {
	config *config.Config

	peers   pkgif.PeerSource
	backend pkgif.RecordBackend
	clock   clock.Clock
	manual  bool
	extra   []fx.Option

	fxApp     *fx.App
	runtime   *Runtime
	logCloser io.Closer
}

// NewBootstrap 创建引导程序
func NewBootstrap(cfg *config.Config, opts ...BootstrapOption) *Bootstrap {
	b := &Bootstrap{config: cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 校验配置并组装 fx 应用（不启动）
//
// 调度模式下发布未启用时返回 ErrPublishDisabled；手动模式忽略开关。
func (b *Bootstrap) Build() (*Runtime, error) {
	if b.runtime != nil {
		return b.runtime, nil
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	// 应用日志配置（必须在所有模块初始化之前）
	if err := b.setupLogging(); err != nil {
		return nil, fmt.Errorf("设置日志失败: %w", err)
	}

	rt := &Runtime{Manual: b.manual, stop: b.Stop}
	populate := []any{&rt.Publisher, &rt.Cycle, &rt.Builder, &rt.Store, &rt.Peers}
	if !b.manual {
		populate = append(populate, &rt.Scheduler)
	}

	b.fxApp = fx.New(
		fx.Options(b.setupModules()...),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.Populate(populate...),
	)
	if err := b.fxApp.Err(); err != nil {
		b.closeLog()
		b.fxApp = nil
		return nil, fmt.Errorf("组装模块失败: %w", err)
	}

	b.runtime = rt
	return rt, nil
}

// Start 构建并启动应用
//
// 调度模式下首次发布在 initial_delay 之后执行。
func (b *Bootstrap) Start(ctx context.Context) (*Runtime, error) {
	rt, err := b.Build()
	if err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, DefaultStartTimeout)
	defer cancel()

	if err := b.fxApp.Start(startCtx); err != nil {
		b.closeLog()
		return nil, fmt.Errorf("启动应用失败: %w", err)
	}
	logger.Info("dnspub 已启动",
		"domain", b.config.Publish.Domain,
		"type", b.config.Publish.Type,
		"manual", b.manual)
	return rt, nil
}

// Stop 停止应用
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.fxApp == nil {
		return nil
	}
	defer b.closeLog()

	stopCtx, cancel := context.WithTimeout(ctx, DefaultStopTimeout)
	defer cancel()

	return b.fxApp.Stop(stopCtx)
}

// Config 返回配置
func (b *Bootstrap) Config() *config.Config {
	return b.config
}

func (b *Bootstrap) validate() error {
	if b.config == nil {
		return ErrNilConfig
	}
	if b.manual {
		return b.config.ValidatePublish()
	}
	if err := b.config.Validate(); err != nil {
		return err
	}
	if !b.config.PublishEnabled() {
		return ErrPublishDisabled
	}
	return nil
}

// setupModules 组装所有 fx 模块
func (b *Bootstrap) setupModules() []fx.Option {
	modules := []fx.Option{
		// 配置（Tier 0）
		fx.Supply(b.config),

		// 基础层（Tier 1: store, metrics）
		FoundationModules(),

		// 来源层（Tier 2: peers, vendor backend）
		b.setupSourceLayer(),

		// 发布层（Tier 3: publish, cycle）
		PublishModules(),
	}

	// 调度层（Tier 4）
	if !b.manual {
		modules = append(modules, SchedulerModules())
	}
	if b.clock != nil {
		clk := b.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}
	return append(modules, b.extra...)
}

// setupSourceLayer 节点来源与厂商后端，可由选项替换
func (b *Bootstrap) setupSourceLayer() fx.Option {
	var opts []fx.Option
	if b.peers != nil {
		peers := b.peers
		opts = append(opts, fx.Provide(func() pkgif.PeerSource { return peers }))
	} else {
		opts = append(opts, PeerSourceModules())
	}
	if b.backend != nil {
		backend := b.backend
		opts = append(opts, fx.Provide(func() pkgif.RecordBackend { return backend }))
	} else {
		opts = append(opts, BackendModules())
	}
	return fx.Options(opts...)
}

// setupLogging 按配置重建默认 logger
//
// 指定了日志文件时所有组件的日志都写入该文件。
func (b *Bootstrap) setupLogging() error {
	closer, err := log.Setup(log.Options{
		Level: b.config.Log.Level,
		File:  b.config.Log.File,
		JSON:  b.config.Log.JSON,
	})
	if err != nil {
		return err
	}
	b.logCloser = closer
	if b.config.Log.File != "" {
		logger.Info("日志文件初始化成功", "path", b.config.Log.File)
	}
	return nil
}

func (b *Bootstrap) closeLog() {
	if b.logCloser != nil {
		_ = b.logCloser.Close()
		b.logCloser = nil
	}
}
