package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("metrics")

const shutdownTimeout = 5 * time.Second

// Module 指标模块
//
// 提供:
//   - Reporter: 启用指标时为 Prometheus，否则为 Nop
//
// 生命周期:
//   - OnStart: 在 metrics.listen_addr 上启动 /metrics
//   - OnStop: 关闭 HTTP 服务
var Module = fx.Module("metrics",
	fx.Provide(ProvideReporter),
)

// Params 指标模块依赖参数
type Params struct {
	fx.In

	LC         fx.Lifecycle
	UnifiedCfg *config.Config `optional:"true"`
}

// Result 指标模块导出结果
type Result struct {
	fx.Out

	Reporter Reporter
}

// ProvideReporter 按配置创建 Reporter，并注册 /metrics 服务
func ProvideReporter(p Params) Result {
	if p.UnifiedCfg == nil || !p.UnifiedCfg.Metrics.Enabled() {
		return Result{Reporter: Nop()}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reporter := NewPrometheus(reg)

	srv := NewServer(p.UnifiedCfg.Metrics.ListenAddr, reg)
	p.LC.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  srv.Stop,
	})
	return Result{Reporter: reporter}
}

// Server /metrics HTTP 服务
type Server struct {
	addr string
	srv  *http.Server
	ln   net.Listener
}

// NewServer 创建指标服务
func NewServer(addr string, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start 监听并在后台提供服务
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		logger.Error("指标服务监听失败", "addr", s.addr, "error", err)
		return err
	}
	s.ln = ln
	logger.Info("指标服务已启动", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("指标服务退出", "error", err)
		}
	}()
	return nil
}

// Addr 返回实际监听地址，未启动时为空
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop 关闭服务
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
