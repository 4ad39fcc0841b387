package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/metrics"
	"github.com/dep2p/go-dnspub/internal/publish"
	"github.com/dep2p/go-dnspub/internal/store"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// Syncer 把树同步到 DNS 并返回执行的计划
//
// 由 *publish.Publisher 实现。
type Syncer interface {
	Sync(ctx context.Context, domain string, tree pkgif.RecordTree) (publish.Plan, error)
}

// CycleConfig 发布周期配置
type CycleConfig struct {
	// Domain 发布域名
	Domain string

	// Links 链接到其他树的 tree:// 地址
	Links []string

	// Private 是否加密叶子
	Private bool
}

// Cycle 一次完整的发布
type Cycle struct {
	cfg     CycleConfig
	builder *dnstree.Builder
	peers   pkgif.PeerSource
	syncer  Syncer
	store   store.SequenceStore
	metrics metrics.Reporter
	clock   clock.Clock

	running atomic.Bool
}

// CycleOption Cycle 选项
type CycleOption func(*Cycle)

// WithCycleMetrics 设置指标记录器
func WithCycleMetrics(r metrics.Reporter) CycleOption {
	return func(c *Cycle) { c.metrics = metrics.OrNop(r) }
}

// WithCycleClock 替换时钟
func WithCycleClock(clk clock.Clock) CycleOption {
	return func(c *Cycle) { c.clock = clk }
}

// NewCycle 创建发布周期
func NewCycle(cfg CycleConfig, builder *dnstree.Builder, peers pkgif.PeerSource, syncer Syncer, st store.SequenceStore, opts ...CycleOption) *Cycle {
	c := &Cycle{
		cfg:     cfg,
		builder: builder,
		peers:   peers,
		syncer:  syncer,
		store:   st,
		metrics: metrics.Nop(),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run 执行一次发布，可直接作为 Job 使用
//
// 没有可发布的节点时跳过，不视为错误。
func (c *Cycle) Run(ctx context.Context) error {
	_, err := c.RunResult(ctx)
	return err
}

// RunResult 执行一次发布并返回结果分类（metrics.Result*）
//
// 同一时刻只允许一次发布，已有发布在执行时返回 ErrBusy。
func (c *Cycle) RunResult(ctx context.Context) (result string, err error) {
	if !c.running.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer c.running.Store(false)

	start := c.clock.Now()
	l := logger.With("cycle", uuid.NewString(), "domain", c.cfg.Domain)

	result = metrics.ResultFailed
	defer func() {
		c.metrics.CycleFinished(result, c.clock.Since(start))
	}()

	nodes, err := c.peers.ConnectableNodes(ctx)
	if err != nil {
		return result, fmt.Errorf("query peers: %w", err)
	}
	descriptors := dnstree.Merge(nodes)
	if len(descriptors) == 0 && len(c.cfg.Links) == 0 {
		l.Warn("没有可发布的节点，跳过本次发布", "peers", len(nodes))
		result = metrics.ResultSkipped
		return result, nil
	}

	state, found, err := c.store.Load(ctx, c.cfg.Domain)
	if err != nil {
		return result, fmt.Errorf("load sequence: %w", err)
	}

	tree, err := c.build(state, descriptors)
	if err != nil {
		return result, err
	}
	l.Info("发现树已构建",
		"peers", len(nodes),
		"nodes", len(tree.Nodes()),
		"entries", tree.Len(),
		"seq", tree.Seq(),
		"stored", found)

	plan, err := c.syncer.Sync(ctx, c.cfg.Domain, tree)
	var stale *publish.StaleSequenceError
	if errors.As(err, &stale) {
		tree, plan, err = c.retryStale(ctx, l, stale, descriptors)
	}
	if err != nil {
		return result, err
	}

	if err := c.store.Save(ctx, c.cfg.Domain, store.State{
		Seq:       tree.Seq(),
		Top:       tree.Root().E,
		UpdatedAt: c.clock.Now(),
	}); err != nil {
		l.Warn("保存发布状态失败", "error", err)
	}
	c.metrics.TreePublished(c.cfg.Domain, tree.Seq(), tree.Len())

	if plan.Empty() {
		result = metrics.ResultUnchanged
	} else {
		result = metrics.ResultPublished
	}
	l.Info("发布周期完成", "result", result, "seq", tree.Seq(), "changes", plan.Len())
	return result, nil
}

// Preview 按当前节点与存储的状态构建树，不部署
//
// 返回的树与下一次 Run 将部署的树相同（线上序号领先时除外）。
func (c *Cycle) Preview(ctx context.Context) (*dnstree.Tree, error) {
	nodes, err := c.peers.ConnectableNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("query peers: %w", err)
	}
	state, _, err := c.store.Load(ctx, c.cfg.Domain)
	if err != nil {
		return nil, fmt.Errorf("load sequence: %w", err)
	}
	return c.build(state, dnstree.Merge(nodes))
}

// Domain 返回发布域名
func (c *Cycle) Domain() string { return c.cfg.Domain }

// build 按存储的状态决定序号：顶层哈希不变复用原序号，否则加一
func (c *Cycle) build(state store.State, descriptors []string) (*dnstree.Tree, error) {
	tree, err := c.makeTree(max(state.Seq, 1), descriptors)
	if err != nil {
		return nil, err
	}
	seq := state.Next(tree.Root().E)
	if seq == tree.Seq() {
		return tree, nil
	}
	return c.makeTree(seq, descriptors)
}

// retryStale 线上序号领先于本地状态时重试一次
//
// 线上树内容相同则沿用线上序号（签名确定，根记录不变），否则越过线上序号。
func (c *Cycle) retryStale(ctx context.Context, l *slog.Logger, stale *publish.StaleSequenceError, descriptors []string) (*dnstree.Tree, publish.Plan, error) {
	seq := stale.Published + 1
	probe, err := c.makeTree(stale.Published, descriptors)
	if err != nil {
		return nil, publish.Plan{}, err
	}
	if probe.Root().E == stale.PublishedTop {
		seq = stale.Published
	}
	l.Warn("线上序号领先于本地状态，重试", "published", stale.Published, "attempted", stale.Attempted, "seq", seq)

	tree := probe
	if seq != probe.Seq() {
		if tree, err = c.makeTree(seq, descriptors); err != nil {
			return nil, publish.Plan{}, err
		}
	}
	plan, err := c.syncer.Sync(ctx, c.cfg.Domain, tree)
	return tree, plan, err
}

func (c *Cycle) makeTree(seq uint64, descriptors []string) (*dnstree.Tree, error) {
	tree, err := c.builder.MakeTree(seq, descriptors, c.cfg.Links, c.cfg.Private)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	return tree, nil
}
