package dnstree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/types"
)

// ErrNoRecords 名字下没有 TXT 记录
var ErrNoRecords = errors.New("dnstree: no TXT records")

// maxResolveEntries 单棵树最多遍历的条目数
const maxResolveEntries = 1 << 16

// ResolvedTree 解析得到的树内容
type ResolvedTree struct {
	Domain  string
	Root    *RootEntry
	Nodes   []types.NodeRecord
	Links   []string
	Entries int
}

// ResolveOption 解析选项
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	cipher *LeafCipher
}

// WithResolveSecret 使用共享密钥解密私有叶子
func WithResolveSecret(c *LeafCipher) ResolveOption {
	return func(o *resolveOptions) { o.cipher = c }
}

// Resolve 通过 TXT 查询完整遍历 url 指向的树
//
// 校验根签名、每个条目的哈希以及引用完整性；链接不递归解析，
// 只在结果中返回。
func Resolve(ctx context.Context, lookup pkgif.TXTLookup, url string, opts ...ResolveOption) (*ResolvedTree, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	link, err := ParseLink(url)
	if err != nil {
		return nil, err
	}

	root, err := resolveRoot(ctx, lookup, link.Domain)
	if err != nil {
		return nil, err
	}
	if !root.Verify(link.PubKey) {
		return nil, ErrInvalidSignature
	}

	out := &ResolvedTree{Domain: link.Domain, Root: root}
	queue := []string{root.E}
	visited := make(map[string]bool)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := queue[0]
		queue = queue[1:]
		if visited[h] {
			continue
		}
		visited[h] = true
		if len(visited) > maxResolveEntries {
			return nil, fmt.Errorf("%w: more than %d entries", ErrTreeTooLarge, maxResolveEntries)
		}

		e, err := resolveEntry(ctx, lookup, link.Domain, h, o.cipher)
		if err != nil {
			return nil, err
		}
		switch e := e.(type) {
		case *BranchEntry:
			queue = append(queue, e.Children...)
		case *LeafEntry:
			out.Nodes = append(out.Nodes, e.Node)
		case *LinkEntry:
			out.Links = append(out.Links, e.String())
		case *RootEntry:
			return nil, fmt.Errorf("%w: root entry at %s", ErrDecode, h)
		}
	}

	out.Entries = len(visited)
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID.Key() < out.Nodes[j].ID.Key() })
	sort.Strings(out.Links)
	return out, nil
}

func resolveRoot(ctx context.Context, lookup pkgif.TXTLookup, domain string) (*RootEntry, error) {
	txts, err := lookup.LookupTXT(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("lookup root %s: %w", domain, err)
	}
	for _, txt := range txts {
		if strings.HasPrefix(txt, rootPrefix) {
			return ParseRoot(txt)
		}
	}
	return nil, fmt.Errorf("%w: no root at %s", ErrMissingEntry, domain)
}

func resolveEntry(ctx context.Context, lookup pkgif.TXTLookup, domain, hash string, cipher *LeafCipher) (Entry, error) {
	name := strings.ToLower(hash) + "." + domain
	txts, err := lookup.LookupTXT(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNoRecords) {
			return nil, fmt.Errorf("%w: %s", ErrMissingEntry, name)
		}
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	}
	for _, txt := range txts {
		if entryHash(txt) != strings.ToUpper(hash) {
			continue
		}
		return ParseEntry(txt, cipher)
	}
	if len(txts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingEntry, name)
	}
	return nil, fmt.Errorf("%w: %s", ErrHashMismatch, name)
}

// ============================================================================
//                              RecordsLookup
// ============================================================================

// RecordsLookup 基于 名字 -> 值 映射的 TXTLookup（CollectRecords 的结果）
type RecordsLookup struct {
	domain  string
	records map[string]string
}

// NewRecordsLookup 创建内存查询器
func NewRecordsLookup(domain string, records map[string]string) *RecordsLookup {
	return &RecordsLookup{domain: strings.ToLower(strings.TrimSuffix(domain, ".")), records: records}
}

// LookupTXT 实现 pkgif.TXTLookup
func (l *RecordsLookup) LookupTXT(_ context.Context, name string) ([]string, error) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	key := rootName
	if name != l.domain {
		sub, ok := strings.CutSuffix(name, "."+l.domain)
		if !ok {
			return nil, fmt.Errorf("%w: %s outside %s", ErrNoRecords, name, l.domain)
		}
		key = sub
	}
	v, ok := l.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRecords, name)
	}
	return []string{v}, nil
}
