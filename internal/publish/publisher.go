package publish

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/metrics"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("publish")

// 确保 Publisher 实现 pkgif.Publisher 接口
var _ pkgif.Publisher = (*Publisher)(nil)

// Publisher 基于 RecordBackend 的发现树同步器
//
// Publisher 本身无状态，每次 Deploy 都从厂商读取线上记录重新计算差异。
type Publisher struct {
	backend pkgif.RecordBackend
	cfg     Config
	metrics metrics.Reporter
}

// Option Publisher 选项
type Option func(*Publisher)

// WithMetrics 设置指标记录器
func WithMetrics(r metrics.Reporter) Option {
	return func(p *Publisher) {
		p.metrics = metrics.OrNop(r)
	}
}

// New 创建 Publisher
func New(backend pkgif.RecordBackend, cfg Config, opts ...Option) *Publisher {
	cfg.normalize()
	p := &Publisher{
		backend: backend,
		cfg:     cfg,
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Vendor 返回厂商名
func (p *Publisher) Vendor() string {
	return p.backend.Vendor()
}

// Deploy 实现 pkgif.Publisher
func (p *Publisher) Deploy(ctx context.Context, domain string, tree pkgif.RecordTree) error {
	_, err := p.Sync(ctx, domain, tree)
	return err
}

// Sync 把 domain 下的记录同步为 tree，返回实际执行的计划
//
// 执行顺序：
//  1. 新增记录（根尚未指向它们，对解析方不可见）
//  2. 根记录（原子切换到新树）
//  3. 删除不再被引用的记录
//
// 任一阶段失败立即返回，已完成的阶段不回滚；此时线上根仍指向
// 一棵完整的树。
func (p *Publisher) Sync(ctx context.Context, domain string, tree pkgif.RecordTree) (Plan, error) {
	domain, err := normalizeDomain(domain)
	if err != nil {
		return Plan{}, err
	}
	next := tree.ToTXT()
	if _, ok := next[pkgif.RootName]; !ok {
		return Plan{}, ErrMissingRoot
	}

	current, err := p.records(ctx, domain)
	if err != nil {
		return Plan{}, err
	}
	if err := checkSequence(current, next); err != nil {
		return Plan{}, err
	}

	plan := Diff(current, next)
	if plan.Empty() {
		logger.Info("记录已是最新，无需写入", "domain", domain, "vendor", p.Vendor())
		return plan, nil
	}

	logger.Info("开始部署发现树",
		"domain", domain,
		"vendor", p.Vendor(),
		"add", len(plan.Add),
		"root", plan.Root != nil,
		"remove", len(plan.Remove))

	if err := p.apply(ctx, domain, plan.Add); err != nil {
		return plan, err
	}
	if plan.Root != nil {
		if err := p.apply(ctx, domain, []pkgif.RecordChange{*plan.Root}); err != nil {
			return plan, err
		}
	}
	if err := p.apply(ctx, domain, plan.Remove); err != nil {
		return plan, err
	}

	logger.Info("发现树部署完成", "domain", domain, "changes", plan.Len())
	return plan, nil
}

// DeleteDomain 实现 pkgif.Publisher
//
// 先删除根，使整棵树立即对解析方不可见，再删除其余条目。
func (p *Publisher) DeleteDomain(ctx context.Context, domain string) (bool, error) {
	domain, err := normalizeDomain(domain)
	if err != nil {
		return false, err
	}
	current, err := p.records(ctx, domain)
	if err != nil {
		return false, err
	}

	var root, rest []pkgif.RecordChange
	for _, name := range sortedKeys(current) {
		if !dnstree.IsEntryName(name) {
			continue
		}
		old := current[name]
		change := pkgif.RecordChange{Action: pkgif.ChangeDelete, Name: name, Value: old.Value, TTL: old.TTL, Old: old}
		if name == pkgif.RootName {
			root = append(root, change)
		} else {
			rest = append(rest, change)
		}
	}
	if len(root)+len(rest) == 0 {
		logger.Info("域名下没有发现树记录", "domain", domain)
		return false, nil
	}

	if err := p.apply(ctx, domain, root); err != nil {
		return true, err
	}
	if err := p.apply(ctx, domain, rest); err != nil {
		return true, err
	}
	logger.Info("已删除发现树", "domain", domain, "records", len(root)+len(rest))
	return true, nil
}

// CollectRecords 实现 pkgif.Publisher
func (p *Publisher) CollectRecords(ctx context.Context, domain string) (map[string]string, error) {
	domain, err := normalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	current, err := p.records(ctx, domain)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(current))
	for name, r := range current {
		out[name] = r.Value
	}
	return out, nil
}

// ============================================================================
//                              内部实现
// ============================================================================

func (p *Publisher) records(ctx context.Context, domain string) (map[string]pkgif.Record, error) {
	current, err := p.backend.Records(ctx, domain)
	if err != nil {
		return nil, p.vendorErr("list", err)
	}
	return current, nil
}

// apply 分批执行一个阶段的变更，批次之间可并发
func (p *Publisher) apply(ctx context.Context, domain string, changes []pkgif.RecordChange) error {
	if len(changes) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for start := 0; start < len(changes); start += p.cfg.BatchSize {
		batch := changes[start:min(start+p.cfg.BatchSize, len(changes))]
		g.Go(func() error {
			if err := p.backend.Apply(gctx, domain, batch); err != nil {
				return p.vendorErr(batch[0].Action.String(), err)
			}
			p.countChanges(batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("记录写入失败", "domain", domain, "vendor", p.Vendor(), "error", err)
		return err
	}
	return nil
}

func (p *Publisher) countChanges(batch []pkgif.RecordChange) {
	counts := make(map[pkgif.ChangeAction]int, 3)
	for _, c := range batch {
		counts[c.Action]++
	}
	for action, n := range counts {
		p.metrics.RecordChanges(p.Vendor(), action.String(), n)
	}
}

func (p *Publisher) vendorErr(op string, err error) error {
	var ve *VendorError
	if errors.As(err, &ve) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &VendorError{Vendor: p.Vendor(), Op: op, Err: err}
}

// checkSequence 拒绝让线上根倒退
func checkSequence(current map[string]pkgif.Record, next map[string]string) error {
	live, ok := current[pkgif.RootName]
	if !ok {
		return nil
	}
	liveRoot, err := dnstree.ParseRoot(live.Value)
	if err != nil {
		logger.Warn("线上根记录无法解析，将被覆盖", "error", err)
		return nil
	}
	newRoot, err := dnstree.ParseRoot(next[pkgif.RootName])
	if err != nil {
		return err
	}
	if liveRoot.Seq > newRoot.Seq || (liveRoot.Seq == newRoot.Seq && live.Value != next[pkgif.RootName]) {
		return &StaleSequenceError{Published: liveRoot.Seq, PublishedTop: liveRoot.E, Attempted: newRoot.Seq}
	}
	return nil
}

func normalizeDomain(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if domain == "" {
		return "", ErrInvalidDomain
	}
	return domain, nil
}
