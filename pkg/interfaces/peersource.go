package interfaces

import (
	"context"

	"github.com/dep2p/go-dnspub/pkg/types"
)

// PeerSource 当前可连接节点的来源
//
// 由节点管理器提供，每个发布周期查询一次。
type PeerSource interface {
	ConnectableNodes(ctx context.Context) ([]types.NodeRecord, error)
}

// PeerSourceFunc 函数适配器
type PeerSourceFunc func(ctx context.Context) ([]types.NodeRecord, error)

// ConnectableNodes 实现 PeerSource
func (f PeerSourceFunc) ConnectableNodes(ctx context.Context) ([]types.NodeRecord, error) {
	return f(ctx)
}

// TXTLookup TXT 记录查询能力
//
// 实现位置：internal/resolver（真实 DNS）与 dnstree.RecordsLookup（内存记录）
type TXTLookup interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}
