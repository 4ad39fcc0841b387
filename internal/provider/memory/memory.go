// Package memory 提供进程内的 TXT 记录后端
//
// 用于测试与演练：记录保存在内存中，统计每类写入次数，
// 并支持按变更注入失败。同时实现 pkgif.TXTLookup，可直接
// 用 dnstree.Resolve 解析已部署的树。
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dep2p/go-dnspub/internal/dnstree"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// Vendor 厂商名
const Vendor = "memory"

// 预定义错误
var (
	// ErrExists 创建已存在的记录
	ErrExists = errors.New("memory: record already exists")

	// ErrNotFound 修改或删除不存在的记录
	ErrNotFound = errors.New("memory: record not found")
)

// 确保 Backend 实现接口
var (
	_ pkgif.RecordBackend = (*Backend)(nil)
	_ pkgif.TXTLookup     = (*Backend)(nil)
)

// Counts 写入统计
type Counts struct {
	Create int
	Update int
	Delete int
}

// Total 返回写入总数
func (c Counts) Total() int {
	return c.Create + c.Update + c.Delete
}

// Backend 内存记录后端
type Backend struct {
	mu     sync.RWMutex
	zones  map[string]map[string]pkgif.Record // domain -> name -> record
	counts Counts
	failOn func(pkgif.RecordChange) error
	lists  int
}

// New 创建空的内存后端
func New() *Backend {
	return &Backend{zones: make(map[string]map[string]pkgif.Record)}
}

// Vendor 实现 pkgif.RecordBackend
func (b *Backend) Vendor() string { return Vendor }

// Records 实现 pkgif.RecordBackend
func (b *Backend) Records(ctx context.Context, domain string) (map[string]pkgif.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists++

	zone := b.zones[normalize(domain)]
	out := make(map[string]pkgif.Record, len(zone))
	for name, r := range zone {
		out[name] = r
	}
	return out, nil
}

// Apply 实现 pkgif.RecordBackend
//
// 变更逐条执行；遇到失败时，之前的变更保留。
func (b *Backend) Apply(ctx context.Context, domain string, changes []pkgif.RecordChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	domain = normalize(domain)
	zone := b.zones[domain]
	if zone == nil {
		zone = make(map[string]pkgif.Record)
		b.zones[domain] = zone
	}

	for _, c := range changes {
		if b.failOn != nil {
			if err := b.failOn(c); err != nil {
				return err
			}
		}
		_, exists := zone[c.Name]
		switch c.Action {
		case pkgif.ChangeCreate:
			if exists {
				return fmt.Errorf("%w: %s", ErrExists, c.Name)
			}
			zone[c.Name] = pkgif.Record{Name: c.Name, Value: c.Value, TTL: c.TTL}
			b.counts.Create++
		case pkgif.ChangeUpdate:
			if !exists {
				return fmt.Errorf("%w: %s", ErrNotFound, c.Name)
			}
			zone[c.Name] = pkgif.Record{Name: c.Name, Value: c.Value, TTL: c.TTL}
			b.counts.Update++
		case pkgif.ChangeDelete:
			if !exists {
				return fmt.Errorf("%w: %s", ErrNotFound, c.Name)
			}
			delete(zone, c.Name)
			b.counts.Delete++
		default:
			return fmt.Errorf("memory: unknown action %v", c.Action)
		}
	}
	return nil
}

// LookupTXT 实现 pkgif.TXTLookup
func (b *Backend) LookupTXT(_ context.Context, name string) ([]string, error) {
	name = normalize(name)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for domain, zone := range b.zones {
		rel := pkgif.RootName
		if name != domain {
			sub, ok := strings.CutSuffix(name, "."+domain)
			if !ok {
				continue
			}
			rel = sub
		}
		if r, ok := zone[rel]; ok {
			return []string{r.Value}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", dnstree.ErrNoRecords, name)
}

// ============================================================================
//                              测试辅助
// ============================================================================

// Seed 直接写入记录，不计入统计
func (b *Backend) Seed(domain string, records map[string]string, ttl uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	domain = normalize(domain)
	zone := b.zones[domain]
	if zone == nil {
		zone = make(map[string]pkgif.Record)
		b.zones[domain] = zone
	}
	for name, value := range records {
		zone[name] = pkgif.Record{Name: name, Value: value, TTL: ttl}
	}
}

// TXT 返回 domain 下的 名字 -> 值
func (b *Backend) TXT(domain string) map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	zone := b.zones[normalize(domain)]
	out := make(map[string]string, len(zone))
	for name, r := range zone {
		out[name] = r.Value
	}
	return out
}

// FailOn 设置失败注入函数，nil 表示取消
func (b *Backend) FailOn(fn func(pkgif.RecordChange) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOn = fn
}

// Counts 返回写入统计
func (b *Backend) Counts() Counts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counts
}

// Lists 返回 Records 调用次数
func (b *Backend) Lists() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lists
}

// ResetCounts 清零写入统计
func (b *Backend) ResetCounts() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts = Counts{}
	b.lists = 0
}

func normalize(domain string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
}
