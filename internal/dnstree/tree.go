package dnstree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/dep2p/go-dnspub/pkg/lib/log"
	"github.com/dep2p/go-dnspub/pkg/types"
)

var logger = log.Logger("dnstree")

// DefaultMaxRecordSize 单条 TXT 记录内容的默认上限（字节）
//
// 370 字节在 512 字节 UDP 响应内留出了名字和头部的空间，
// 一条分支最多容纳 13 个子哈希。
const DefaultMaxRecordSize = 370

// ============================================================================
//                              Builder
// ============================================================================

// Builder 发现树构建器
//
// 同一 Builder 可并发调用 MakeTree。
type Builder struct {
	key           *secp256k1.PrivateKey
	maxRecordSize int
	cipher        *LeafCipher
}

// BuilderOption 构建器选项
type BuilderOption func(*Builder) error

// WithMaxRecordSize 设置单条记录上限
func WithMaxRecordSize(n int) BuilderOption {
	return func(b *Builder) error {
		if n <= 0 {
			return fmt.Errorf("%w: max record size must be positive", ErrInvalidInput)
		}
		b.maxRecordSize = n
		return nil
	}
}

// WithSharedSecret 设置私有叶子的共享密钥
func WithSharedSecret(secret []byte) BuilderOption {
	return func(b *Builder) error {
		c, err := NewLeafCipher(secret)
		if err != nil {
			return err
		}
		b.cipher = c
		return nil
	}
}

// NewBuilder 创建构建器，key 用于签名根条目
func NewBuilder(key *secp256k1.PrivateKey, opts ...BuilderOption) (*Builder, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: signing key required", ErrInvalidInput)
	}
	b := &Builder{key: key, maxRecordSize: DefaultMaxRecordSize}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// PublicKey 返回签名公钥
func (b *Builder) PublicKey() *secp256k1.PublicKey {
	return b.key.PubKey()
}

// MaxChildren 一条分支能容纳的最大子哈希数
func (b *Builder) MaxChildren() int {
	return (b.maxRecordSize - len(branchPrefix) + 1) / (HashLen + 1)
}

// MakeTree 构建一棵新的发现树
//
// nodes 为 node: 文本，格式错误的条目记录日志后跳过；同一身份的
// 多个变体合并为地址最完整的一条。links 为 tree:// 文本。
// private 为 true 时叶子使用共享密钥加密。
func (b *Builder) MakeTree(seq uint64, nodes, links []string, private bool) (*Tree, error) {
	if private && b.cipher == nil {
		return nil, fmt.Errorf("%w: private tree needs a shared secret", ErrInvalidInput)
	}
	if b.MaxChildren() < 2 {
		return nil, fmt.Errorf("%w: max record size %d cannot hold two hashes", ErrTreeTooLarge, b.maxRecordSize)
	}

	records := dedupeNodes(nodes)
	linkEntries, err := parseLinks(links)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 && len(linkEntries) == 0 {
		return nil, fmt.Errorf("%w: no nodes and no links", ErrInvalidInput)
	}

	t := &Tree{entries: make(map[string]Entry), signer: b.key.PubKey()}
	tb := treeBuilder{tree: t, maxChildren: b.MaxChildren(), maxSize: b.maxRecordSize}

	leafHashes := make([]string, 0, len(records))
	for _, rec := range records {
		leaf := &LeafEntry{Node: rec, Private: private}
		if private {
			leaf.text, err = b.cipher.EncodeNode(rec)
		} else {
			leaf.text, err = EncodeNode(rec)
		}
		if err != nil {
			return nil, err
		}
		h, err := tb.add(leaf)
		if err != nil {
			return nil, err
		}
		leafHashes = append(leafHashes, h)
	}

	linkHashes := make([]string, 0, len(linkEntries))
	for _, l := range linkEntries {
		h, err := tb.add(l)
		if err != nil {
			return nil, err
		}
		linkHashes = append(linkHashes, h)
	}

	top, err := tb.layout(leafHashes, linkHashes)
	if err != nil {
		return nil, err
	}

	t.root = &RootEntry{E: top, Seq: seq}
	t.root.sign(b.key)
	return t, nil
}

// dedupeNodes 解析并按身份合并节点，结果按身份排序
func dedupeNodes(nodes []string) []types.NodeRecord {
	sorted := append([]string(nil), nodes...)
	sort.Strings(sorted)

	byID := make(map[string]types.NodeRecord, len(sorted))
	for _, s := range sorted {
		rec, err := DecodeNode(s)
		if err != nil {
			logger.Warn("跳过无法解析的节点", "node", log.TruncateID(s, 24), "error", err)
			continue
		}
		key := rec.ID.Key()
		if prev, ok := byID[key]; ok {
			rec = foldRecords(prev, rec)
		}
		byID[key] = rec
	}

	out := make([]types.NodeRecord, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Key() < out[j].ID.Key() })
	return out
}

// foldRecords 合并同一身份的两个变体，保留地址更完整的一条并补齐缺失的地址族
func foldRecords(a, b types.NodeRecord) types.NodeRecord {
	base, other := a, b
	if addrCount(b) > addrCount(a) {
		base, other = b, a
	}
	if !base.HasIPv4() && other.HasIPv4() {
		base.IPv4 = other.IPv4
	}
	if !base.HasIPv6() && other.HasIPv6() {
		base.IPv6 = other.IPv6
	}
	return base
}

func addrCount(r types.NodeRecord) int {
	n := 0
	if r.HasIPv4() {
		n++
	}
	if r.HasIPv6() {
		n++
	}
	return n
}

func parseLinks(links []string) ([]*LinkEntry, error) {
	seen := make(map[string]bool, len(links))
	out := make([]*LinkEntry, 0, len(links))
	for _, s := range links {
		l, err := ParseLink(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: link %q: %v", ErrInvalidInput, s, err)
		}
		if seen[l.String()] {
			continue
		}
		seen[l.String()] = true
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// ============================================================================
//                              树形布局
// ============================================================================

type treeBuilder struct {
	tree        *Tree
	maxChildren int
	maxSize     int
}

// add 把条目加入树，返回其哈希
func (tb *treeBuilder) add(e Entry) (string, error) {
	text := e.String()
	if len(text) > tb.maxSize {
		return "", fmt.Errorf("%w: %d bytes > %d", ErrTreeTooLarge, len(text), tb.maxSize)
	}
	h := entryHash(text)
	tb.tree.entries[h] = e
	return h, nil
}

// branch 以排序后的 children 创建分支
func (tb *treeBuilder) branch(children []string) (string, error) {
	sorted := append([]string(nil), children...)
	sort.Strings(sorted)
	return tb.add(&BranchEntry{Children: sorted})
}

// pack 把任意数量的哈希收拢为一个分支引用
func (tb *treeBuilder) pack(hashes []string) (string, error) {
	if len(hashes) <= tb.maxChildren {
		return tb.branch(hashes)
	}
	sorted := append([]string(nil), hashes...)
	sort.Strings(sorted)

	parents := make([]string, 0, len(sorted)/tb.maxChildren+1)
	for start := 0; start < len(sorted); start += tb.maxChildren {
		end := min(start+tb.maxChildren, len(sorted))
		h, err := tb.branch(sorted[start:end])
		if err != nil {
			return "", err
		}
		parents = append(parents, h)
	}
	return tb.pack(parents)
}

// layout 构建叶子之上的分支层，返回顶层哈希
func (tb *treeBuilder) layout(leaves, links []string) (string, error) {
	m := tb.maxChildren

	var level []string
	if len(leaves) > 0 {
		buckets := (len(leaves) + m - 1) / m
		groups := make([][]string, buckets)
		for _, h := range leaves {
			i := bucketOf(h, buckets)
			groups[i] = append(groups[i], h)
		}
		level = make([]string, buckets)
		for i, g := range groups {
			if len(g) == 0 {
				continue
			}
			h, err := tb.pack(g)
			if err != nil {
				return "", err
			}
			level[i] = h
		}
	}

	linkRefs := links
	if len(linkRefs) >= m {
		h, err := tb.pack(linkRefs)
		if err != nil {
			return "", err
		}
		linkRefs = []string{h}
	}

	for len(nonEmpty(level))+len(linkRefs) > m {
		next, err := tb.groupByIndex(level)
		if err != nil {
			return "", err
		}
		level = next
	}

	refs := nonEmpty(level)
	if len(linkRefs) == 0 && len(refs) == 1 {
		return refs[0], nil
	}
	return tb.branch(append(refs, linkRefs...))
}

// groupByIndex 按位置把相邻的 m 个引用收拢为一个父分支
func (tb *treeBuilder) groupByIndex(level []string) ([]string, error) {
	m := tb.maxChildren
	next := make([]string, (len(level)+m-1)/m)
	for i := range next {
		end := min((i+1)*m, len(level))
		members := nonEmpty(level[i*m : end])
		if len(members) == 0 {
			continue
		}
		h, err := tb.branch(members)
		if err != nil {
			return nil, err
		}
		next[i] = h
	}
	return next, nil
}

func nonEmpty(hashes []string) []string {
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// ============================================================================
//                              Tree
// ============================================================================

// Tree 一棵完整的发现树：根条目加 哈希 -> 条目 映射
//
// Tree 构建后不再修改。
type Tree struct {
	root    *RootEntry
	entries map[string]Entry
	signer  *secp256k1.PublicKey
}

// Root 返回根条目
func (t *Tree) Root() *RootEntry { return t.root }

// Seq 返回序号
func (t *Tree) Seq() uint64 { return t.root.Seq }

// Signer 返回签名公钥
func (t *Tree) Signer() *secp256k1.PublicKey { return t.signer }

// URL 返回指向本树的 tree:// 链接
func (t *Tree) URL(domain string) string {
	return (&LinkEntry{Domain: strings.TrimSuffix(domain, "."), PubKey: t.signer}).String()
}

// Entry 按哈希查找条目
func (t *Tree) Entry(hash string) (Entry, bool) {
	e, ok := t.entries[strings.ToUpper(hash)]
	return e, ok
}

// Len 返回条目数（不含根）
func (t *Tree) Len() int { return len(t.entries) }

// Nodes 返回全部叶子中的节点记录，按身份排序
func (t *Tree) Nodes() []types.NodeRecord {
	var out []types.NodeRecord
	for _, e := range t.entries {
		if l, ok := e.(*LeafEntry); ok {
			out = append(out, l.Node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Key() < out[j].ID.Key() })
	return out
}

// Links 返回全部链接文本，已排序
func (t *Tree) Links() []string {
	var out []string
	for _, e := range t.entries {
		if l, ok := e.(*LinkEntry); ok {
			out = append(out, l.String())
		}
	}
	sort.Strings(out)
	return out
}

// Branches 返回分支条目数
func (t *Tree) Branches() int {
	n := 0
	for _, e := range t.entries {
		if _, ok := e.(*BranchEntry); ok {
			n++
		}
	}
	return n
}

// ToTXT 返回 名字 -> TXT 值，根使用 "root"，其余为小写哈希
func (t *Tree) ToTXT() map[string]string {
	records := make(map[string]string, len(t.entries)+1)
	records[rootName] = t.root.String()
	for h, e := range t.entries {
		records[strings.ToLower(h)] = e.String()
	}
	return records
}

// Verify 检查树的引用完整性：根指向存在的分支，分支的子条目都存在
func (t *Tree) Verify() error {
	top, ok := t.entries[t.root.E]
	if !ok {
		return fmt.Errorf("%w: root references %s", ErrMissingEntry, t.root.E)
	}
	if _, ok := top.(*BranchEntry); !ok {
		return fmt.Errorf("%w: root must reference a branch", ErrDecode)
	}
	for h, e := range t.entries {
		br, ok := e.(*BranchEntry)
		if !ok {
			continue
		}
		for _, c := range br.Children {
			if _, ok := t.entries[c]; !ok {
				return fmt.Errorf("%w: branch %s references %s", ErrMissingEntry, h, c)
			}
		}
	}
	if !t.root.Verify(t.signer) {
		return ErrInvalidSignature
	}
	return nil
}
