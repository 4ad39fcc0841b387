package dnspub

import (
	"context"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/app"
	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/scheduler"
	"github.com/dep2p/go-dnspub/internal/store"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("dnspub")

// nodeState 节点生命周期状态
type nodeState int

const (
	nodeCreated nodeState = iota
	nodeStarted
	nodeClosed
)

// Node dnspub 节点门面
//
// 调度模式下 Start 之后按固定延迟周期发布；手动模式下由 PublishNow 触发。
type Node struct {
	config    *config.Config
	bootstrap *app.Bootstrap
	runtime   *app.Runtime

	mu    sync.Mutex
	state nodeState
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动节点
//
// 打开序号存储、指标服务，调度模式下开始等待首次发布。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case nodeStarted:
		return ErrAlreadyStarted
	case nodeClosed:
		return ErrNodeClosed
	}
	if _, err := n.bootstrap.Start(ctx); err != nil {
		return err
	}
	n.state = nodeStarted
	return nil
}

// Stop 停止节点，等待正在执行的发布结束
//
// 重复调用返回 nil。
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == nodeClosed {
		return nil
	}
	wasStarted := n.state == nodeStarted
	n.state = nodeClosed
	if !wasStarted {
		return nil
	}
	if err := n.runtime.Stop(ctx); err != nil {
		logger.Warn("停止节点失败", "error", err)
		return err
	}
	return nil
}

func (n *Node) checkStarted() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case nodeCreated:
		return ErrNotStarted
	case nodeClosed:
		return ErrNodeClosed
	}
	return nil
}

// ============================================================================
//                              查询
// ============================================================================

// Config 返回节点配置
func (n *Node) Config() *config.Config {
	return n.config
}

// Domain 返回发布域名
func (n *Node) Domain() string {
	return n.runtime.Cycle.Domain()
}

// PublicKey 返回根签名公钥
func (n *Node) PublicKey() *secp256k1.PublicKey {
	return n.runtime.Builder.PublicKey()
}

// URL 返回客户端使用的 tree:// 地址
func (n *Node) URL() string {
	return (&dnstree.LinkEntry{Domain: n.Domain(), PubKey: n.PublicKey()}).String()
}

// Manual 是否为手动模式
func (n *Node) Manual() bool {
	return n.runtime.Manual
}

// SchedulerState 返回调度器状态
func (n *Node) SchedulerState() (scheduler.State, error) {
	if n.runtime.Scheduler == nil {
		return 0, ErrManualMode
	}
	return n.runtime.Scheduler.State(), nil
}

// LastPublished 返回最近一次成功发布的序号与顶层哈希
func (n *Node) LastPublished(ctx context.Context) (store.State, bool, error) {
	if err := n.checkStarted(); err != nil {
		return store.State{}, false, err
	}
	return n.runtime.Store.Load(ctx, n.Domain())
}

// Records 返回域名下线上的 名字 -> 值
func (n *Node) Records(ctx context.Context) (map[string]string, error) {
	return n.runtime.Publisher.CollectRecords(ctx, n.Domain())
}

// ============================================================================
//                              发布
// ============================================================================

// Preview 按当前节点构建下一次将部署的树，不写入 DNS
func (n *Node) Preview(ctx context.Context) (*dnstree.Tree, error) {
	if err := n.checkStarted(); err != nil {
		return nil, err
	}
	return n.runtime.Cycle.Preview(ctx)
}

// PublishNow 执行一次发布并返回结果（published / unchanged / skipped）
//
// 调度模式下改为触发调度器立即执行，结果为空字符串。
// 两种模式下已有发布在执行时都返回 scheduler.ErrBusy。
func (n *Node) PublishNow(ctx context.Context) (string, error) {
	if err := n.checkStarted(); err != nil {
		return "", err
	}
	if s := n.runtime.Scheduler; s != nil {
		return "", s.RunNow()
	}
	return n.runtime.Cycle.RunResult(ctx)
}

// DeleteDomain 删除域名下全部树记录，返回是否存在过记录
//
// 不属于发现树的记录保留，本地序号状态不清除。
func (n *Node) DeleteDomain(ctx context.Context) (bool, error) {
	if err := n.checkStarted(); err != nil {
		return false, err
	}
	existed, err := n.runtime.Publisher.DeleteDomain(ctx, n.Domain())
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", n.Domain(), err)
	}
	logger.Info("已删除域名下的发现树", "domain", n.Domain(), "existed", existed)
	return existed, nil
}
