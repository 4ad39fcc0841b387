package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 周期结果
const (
	// ResultPublished 树有变化并已部署
	ResultPublished = "published"
	// ResultUnchanged 树无变化，未写入任何记录
	ResultUnchanged = "unchanged"
	// ResultSkipped 没有可发布的节点
	ResultSkipped = "skipped"
	// ResultFailed 周期失败
	ResultFailed = "failed"
)

// Reporter 发布指标记录接口
type Reporter interface {
	// CycleFinished 记录一次发布周期
	CycleFinished(result string, elapsed time.Duration)

	// RecordChanges 记录一批成功的记录变更
	RecordChanges(vendor, action string, n int)

	// TreePublished 记录已发布树的序号与条目数
	TreePublished(domain string, seq uint64, entries int)
}

// 确保 Prometheus 实现 Reporter 接口
var _ Reporter = (*Prometheus)(nil)

// ============================================================================
//                              Prometheus
// ============================================================================

// Prometheus 基于 prometheus 的 Reporter
type Prometheus struct {
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	changes       *prometheus.CounterVec
	sequence      *prometheus.GaugeVec
	entries       *prometheus.GaugeVec
}

// NewPrometheus 创建并注册指标
//
// 重复注册时复用已存在的收集器。
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Prometheus{
		cycles: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnspub_cycles_total",
				Help: "publish cycles by result",
			},
			[]string{"result"},
		)),
		cycleDuration: mustRegister(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dnspub_cycle_duration_seconds",
				Help:    "publish cycle duration",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"result"},
		)),
		changes: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnspub_record_changes_total",
				Help: "applied TXT record changes",
			},
			[]string{"vendor", "action"},
		)),
		sequence: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dnspub_published_sequence",
				Help: "sequence number of the live root",
			},
			[]string{"domain"},
		)),
		entries: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dnspub_tree_entries",
				Help: "entries of the published tree, root excluded",
			},
			[]string{"domain"},
		)),
	}
}

// CycleFinished 实现 Reporter
func (p *Prometheus) CycleFinished(result string, elapsed time.Duration) {
	p.cycles.WithLabelValues(result).Inc()
	p.cycleDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// RecordChanges 实现 Reporter
func (p *Prometheus) RecordChanges(vendor, action string, n int) {
	if n <= 0 {
		return
	}
	p.changes.WithLabelValues(vendor, action).Add(float64(n))
}

// TreePublished 实现 Reporter
func (p *Prometheus) TreePublished(domain string, seq uint64, entries int) {
	p.sequence.WithLabelValues(domain).Set(float64(seq))
	p.entries.WithLabelValues(domain).Set(float64(entries))
}

func mustRegister[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	are := prometheus.AlreadyRegisteredError{}
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
		return c
	}
	if err != nil {
		panic(err)
	}
	return c
}

// ============================================================================
//                              Nop
// ============================================================================

type nopReporter struct{}

func (nopReporter) CycleFinished(string, time.Duration) {}
func (nopReporter) RecordChanges(string, string, int)   {}
func (nopReporter) TreePublished(string, uint64, int)   {}

// Nop 返回不记录任何内容的 Reporter
func Nop() Reporter {
	return nopReporter{}
}

// OrNop r 为 nil 时返回 Nop()
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop()
	}
	return r
}
