package peersource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dnspub/config"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
	"github.com/dep2p/go-dnspub/pkg/types"
)

var logger = log.Logger("peersource")

// ErrNoSource 没有配置任何节点来源
var ErrNoSource = errors.New("peersource: no peer source configured")

// 确保实现接口
var (
	_ pkgif.PeerSource = (*StaticSource)(nil)
	_ pkgif.PeerSource = (*FileSource)(nil)
	_ pkgif.PeerSource = Multi(nil)
)

// ============================================================================
//                              Static
// ============================================================================

// StaticSource 固定的节点列表
type StaticSource struct {
	nodes []types.NodeRecord
}

// Static 从配置构造静态来源，任何一条无效都返回错误
func Static(peers []config.StaticPeer) (*StaticSource, error) {
	nodes, err := convert(peers)
	if err != nil {
		return nil, err
	}
	return &StaticSource{nodes: nodes}, nil
}

// ConnectableNodes 实现 pkgif.PeerSource
func (s *StaticSource) ConnectableNodes(ctx context.Context) ([]types.NodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]types.NodeRecord, len(s.nodes))
	copy(out, s.nodes)
	return out, nil
}

func convert(peers []config.StaticPeer) ([]types.NodeRecord, error) {
	var (
		nodes = make([]types.NodeRecord, 0, len(peers))
		errs  error
	)
	for i, p := range peers {
		rec, err := types.NewNodeRecord(p.ID, p.IPv4, p.IPv6, p.Port)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("peer %d: %w", i, err))
			continue
		}
		nodes = append(nodes, rec)
	}
	return nodes, errs
}

// ============================================================================
//                              File
// ============================================================================

// FileSource 从 JSON 文件读取节点列表
//
// 文件内容为 config.StaticPeer 数组。无效条目记录警告后跳过，
// 文件缺失或格式错误时返回错误。
type FileSource struct {
	path string
}

// File 创建文件来源
func File(path string) *FileSource {
	return &FileSource{path: path}
}

// ConnectableNodes 实现 pkgif.PeerSource
func (f *FileSource) ConnectableNodes(ctx context.Context) ([]types.NodeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read peers file: %w", err)
	}

	var peers []config.StaticPeer
	if err := json.Unmarshal(data, &peers); err != nil {
		return nil, fmt.Errorf("parse peers file %s: %w", f.path, err)
	}

	nodes, err := convert(peers)
	for _, e := range multierr.Errors(err) {
		logger.Warn("跳过无效节点", "file", f.path, "error", e)
	}
	return nodes, nil
}

// ============================================================================
//                              Multi
// ============================================================================

// Multi 依次查询多个来源并按身份去重，先出现者优先
//
// 任一来源失败则整体失败，避免以不完整的列表发布。
type Multi []pkgif.PeerSource

// ConnectableNodes 实现 pkgif.PeerSource
func (m Multi) ConnectableNodes(ctx context.Context) ([]types.NodeRecord, error) {
	var (
		out  []types.NodeRecord
		seen = make(map[string]bool)
	)
	for _, src := range m {
		nodes, err := src.ConnectableNodes(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if seen[n.ID.Key()] {
				continue
			}
			seen[n.ID.Key()] = true
			out = append(out, n)
		}
	}
	return out, nil
}

// FromConfig 按配置组装节点来源
func FromConfig(cfg config.PeersConfig) (pkgif.PeerSource, error) {
	var sources Multi
	if len(cfg.Static) > 0 {
		s, err := Static(cfg.Static)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	if cfg.File != "" {
		sources = append(sources, File(cfg.File))
	}

	switch len(sources) {
	case 0:
		return nil, ErrNoSource
	case 1:
		return sources[0], nil
	default:
		return sources, nil
	}
}
