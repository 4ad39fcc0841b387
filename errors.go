package dnspub

import (
	"errors"

	"github.com/dep2p/go-dnspub/internal/app"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 配置错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrPublishDisabled 发现或发布开关未打开（不是故障）
	ErrPublishDisabled = app.ErrPublishDisabled

	// ErrNoConfig 未提供配置
	ErrNoConfig = errors.New("dnspub: no config")

	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("dnspub: node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("dnspub: node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("dnspub: node closed")

	// ErrManualMode 手动模式没有调度器
	ErrManualMode = errors.New("dnspub: node has no scheduler")
)
