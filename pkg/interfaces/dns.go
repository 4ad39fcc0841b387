// Package interfaces 定义 dnspub 公共接口
//
// 本文件定义 DNS 发布能力接口，对应 internal/publish/ 与
// internal/provider/ 实现。
package interfaces

import (
	"context"
	"fmt"
)

// 记录 TTL（秒）
const (
	// RootTTL 根记录 TTL：30 分钟
	RootTTL uint32 = 30 * 60

	// TreeNodeTTL 分支/叶子/链接记录 TTL：4 周
	TreeNodeTTL uint32 = 4 * 7 * 24 * 60 * 60

	// RootName 根记录在记录集合中的名字（部署在域名顶点）
	RootName = "root"
)

// ════════════════════════════════════════════════════════════════════════════
// Publisher 接口
// ════════════════════════════════════════════════════════════════════════════

// RecordTree 可以展开为 TXT 记录集合的树
//
// ToTXT 返回 名字 -> TXT 值，名字为 RootName 或小写的条目哈希。
type RecordTree interface {
	ToTXT() map[string]string
}

// Publisher DNS 发现树发布能力
//
// 每个 DNS 厂商一种实现，核心流程只依赖本接口。
//
// 使用示例:
//
//	pub := publish.New(backend, publish.DefaultConfig())
//	if err := pub.Deploy(ctx, "nodes.example.org", tree); err != nil {
//	    logger.Warn("发布失败", "error", err)
//	}
type Publisher interface {
	// Deploy 幂等地把 domain 下的记录同步为 tree
	Deploy(ctx context.Context, domain string, tree RecordTree) error

	// DeleteDomain 删除 domain 下全部树记录，返回是否存在过记录
	DeleteDomain(ctx context.Context, domain string) (bool, error)

	// CollectRecords 返回 domain 下当前的 名字 -> 值 映射
	CollectRecords(ctx context.Context, domain string) (map[string]string, error)
}

// ════════════════════════════════════════════════════════════════════════════
// RecordBackend 接口（厂商 CRUD）
// ════════════════════════════════════════════════════════════════════════════

// Record 一条已发布的 TXT 记录
type Record struct {
	// Name 相对名字（RootName 或小写哈希）
	Name string

	// Value TXT 值（已拼接多段字符串）
	Value string

	// TTL 记录 TTL（秒）
	TTL uint32
}

// ChangeAction 记录变更动作
type ChangeAction int

const (
	// ChangeCreate 新建记录
	ChangeCreate ChangeAction = iota
	// ChangeUpdate 修改已有记录
	ChangeUpdate
	// ChangeDelete 删除记录
	ChangeDelete
)

// String 返回动作名
func (a ChangeAction) String() string {
	switch a {
	case ChangeCreate:
		return "create"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return fmt.Sprintf("ChangeAction(%d)", int(a))
	}
}

// RecordChange 一次记录变更
//
// Update 与 Delete 携带 Old（厂商 API 可能需要旧值或旧 TTL 才能定位记录）。
type RecordChange struct {
	Action ChangeAction
	Name   string
	Value  string
	TTL    uint32
	Old    Record
}

// RecordBackend 厂商记录 CRUD 能力
//
// 实现位置：internal/provider/{aliyun,route53,rfc2136,memory}
type RecordBackend interface {
	// Vendor 返回厂商名，用于日志和指标
	Vendor() string

	// Records 列出 domain 下全部 TXT 记录，键为相对名字
	Records(ctx context.Context, domain string) (map[string]Record, error)

	// Apply 执行一批变更；失败时已执行的部分不回滚
	Apply(ctx context.Context, domain string, changes []RecordChange) error
}
